package purchasing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	orders map[int64]PurchaseOrder
	items  map[int64]OrderItem
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[int64]PurchaseOrder),
		items:  make(map[int64]OrderItem),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return order, nil
}

func (r *memoryRepo) orderItems(orderID int64) []OrderItem {
	var items []OrderItem
	for _, it := range r.items {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *memoryRepo) GetOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error) {
	order, err := r.GetOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return order, r.orderItems(id), nil
}

func (r *memoryRepo) GetItemWithOrder(ctx context.Context, itemID int64) (OrderItem, PurchaseOrder, error) {
	item, ok := r.items[itemID]
	if !ok {
		return OrderItem{}, PurchaseOrder{}, ErrNotFound
	}
	order, err := r.GetOrder(ctx, item.OrderID)
	if err != nil {
		return OrderItem{}, PurchaseOrder{}, err
	}
	return item, order, nil
}

func (r *memoryRepo) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var latest string
	for _, order := range r.orders {
		if strings.HasPrefix(order.Number, prefix) && order.Number > latest {
			latest = order.Number
		}
	}
	return latest, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	var list []OrderListItem
	for _, order := range r.orders {
		if filters.Status != nil && order.Status != *filters.Status {
			continue
		}
		if filters.SupplierID != nil && order.SupplierID != *filters.SupplierID {
			continue
		}
		list = append(list, OrderListItem{
			ID:          order.ID,
			Number:      order.Number,
			SupplierID:  order.SupplierID,
			OrderDate:   order.OrderDate,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			ItemCount:   len(r.orderItems(order.ID)),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, len(list), nil
}

func (tx *memoryTx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	for _, existing := range tx.repo.orders {
		if existing.Number == order.Number {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, order.Number)
		}
	}
	id := tx.nextID()
	order.ID = id
	order.RowVersion = 1
	tx.repo.orders[id] = order
	return id, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	stored, ok := tx.repo.orders[order.ID]
	if !ok || stored.RowVersion != order.RowVersion {
		return 0, ErrConflict
	}
	order.RowVersion++
	tx.repo.orders[order.ID] = order
	return order.RowVersion, nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := tx.repo.orders[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.orders, id)
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	id := tx.nextID()
	item.ID = id
	tx.repo.items[id] = item
	return id, nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := tx.repo.items[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.items, id)
	return nil
}

func (tx *memoryTx) DeleteItemsForOrder(ctx context.Context, orderID int64) error {
	for id, item := range tx.repo.items {
		if item.OrderID == orderID {
			delete(tx.repo.items, id)
		}
	}
	return nil
}

func (tx *memoryTx) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return tx.repo.orderItems(orderID), nil
}

func (tx *memoryTx) LockOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error) {
	return tx.repo.GetOrderWithItems(ctx, id)
}

func (tx *memoryTx) UpdateItemReceived(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	item, ok := tx.repo.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.QuantityReceived = qty
	tx.repo.items[itemID] = item
	return nil
}

type stubSuppliers struct {
	defaults SupplierDefaults
}

func (s *stubSuppliers) SupplierDefaults(ctx context.Context, supplierID int64) (SupplierDefaults, error) {
	if supplierID == 404 {
		return SupplierDefaults{}, ErrNotFound
	}
	return s.defaults, nil
}

type stubProducts struct{}

func (stubProducts) ProductDefaults(ctx context.Context, productID int64) (ProductDefaults, error) {
	if productID == 404 {
		return ProductDefaults{}, ErrNotFound
	}
	return ProductDefaults{Name: fmt.Sprintf("Product %d", productID), SKU: fmt.Sprintf("SKU-%d", productID), DefaultUnitID: 1}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, stubProducts{}, &stubSuppliers{defaults: SupplierDefaults{
		Name:            "Northline Supplies",
		DefaultCurrency: "ILS",
		PaymentTerms:    "Net 30",
		LeadTimeDays:    7,
	}}, nil, ServiceConfig{})
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestOrderLifecycleFlow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	require.Equal(t, "PO-202603-0001", order.Number)
	require.Equal(t, StatusDraft, order.Status)
	require.Equal(t, "ILS", order.Currency)
	require.Equal(t, "Net 30", order.PaymentTerms)
	require.NotNil(t, order.ExpectedDeliveryDate)
	require.Equal(t, time.Date(2026, 3, 22, 10, 0, 0, 0, time.UTC), *order.ExpectedDeliveryDate)

	item1, err := svc.AddItem(ctx, AddItemInput{
		OrderID:   order.ID,
		ProductID: 11,
		Quantity:  dec("10"),
		UnitPrice: dec("25.00"),
	}, 10)
	require.NoError(t, err)
	require.Equal(t, "Product 11", item1.Description)
	require.True(t, item1.LineTotal.Equal(dec("250.00")), "line total %s", item1.LineTotal)

	item2, err := svc.AddItem(ctx, AddItemInput{
		OrderID:         order.ID,
		ProductID:       12,
		Quantity:        dec("3"),
		UnitPrice:       dec("19.99"),
		DiscountPercent: dec("17.5"),
	}, 10)
	require.NoError(t, err)
	require.True(t, item2.LineTotal.Equal(dec("49.48")), "line total %s", item2.LineTotal)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, order.Subtotal.Equal(dec("299.48")), "subtotal %s", order.Subtotal)
	require.True(t, order.TaxAmount.Equal(dec("50.91")), "tax %s", order.TaxAmount)
	require.True(t, order.TotalAmount.Equal(dec("350.39")), "total %s", order.TotalAmount)

	require.NoError(t, svc.Send(ctx, order.ID, 10))
	require.NoError(t, svc.Confirm(ctx, order.ID, 20))
	require.NoError(t, svc.MarkShipped(ctx, order.ID, 20))

	// Partial receipt: half of item1, all of item2.
	err = svc.Receive(ctx, ReceiveInput{
		OrderID: order.ID,
		Notes:   "first pallet",
		Lines: []ReceiveLine{
			{ItemID: item1.ID, Quantity: dec("5")},
			{ItemID: item2.ID, Quantity: dec("3")},
		},
	}, 30)
	require.NoError(t, err)

	order, items, err := svc.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, order.Status)
	require.Nil(t, order.ActualDeliveryDate)
	require.Contains(t, order.InternalNotes, "Received (2026-03-15): first pallet")
	require.True(t, items[0].QuantityReceived.Equal(dec("5")))
	require.True(t, items[1].IsFullyReceived())

	// Second receipt completes the order even though item2 is not mentioned.
	err = svc.Receive(ctx, ReceiveInput{
		OrderID: order.ID,
		Lines:   []ReceiveLine{{ItemID: item1.ID, Quantity: dec("5")}},
	}, 30)
	require.NoError(t, err)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, order.Status)
	require.NotNil(t, order.ActualDeliveryDate)
	require.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), *order.ActualDeliveryDate)
}

func TestDisallowedTransitions(t *testing.T) {
	seed := func(t *testing.T, status Status) (*Service, int64) {
		t.Helper()
		repo := newMemoryRepo()
		svc := newTestService(repo)
		ctx := context.Background()
		order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
		require.NoError(t, err)
		_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("1"), UnitPrice: dec("10")}, 10)
		require.NoError(t, err)
		stored := repo.orders[order.ID]
		stored.Status = status
		repo.orders[order.ID] = stored
		return svc, order.ID
	}

	ctx := context.Background()
	cases := []struct {
		name string
		from Status
		call func(svc *Service, id int64) error
	}{
		{"send sent", StatusSent, func(svc *Service, id int64) error { return svc.Send(ctx, id, 1) }},
		{"send received", StatusReceived, func(svc *Service, id int64) error { return svc.Send(ctx, id, 1) }},
		{"confirm draft", StatusDraft, func(svc *Service, id int64) error { return svc.Confirm(ctx, id, 1) }},
		{"confirm cancelled", StatusCancelled, func(svc *Service, id int64) error { return svc.Confirm(ctx, id, 1) }},
		{"ship draft", StatusDraft, func(svc *Service, id int64) error { return svc.MarkShipped(ctx, id, 1) }},
		{"ship partially received", StatusPartiallyReceived, func(svc *Service, id int64) error { return svc.MarkShipped(ctx, id, 1) }},
		{"cancel received", StatusReceived, func(svc *Service, id int64) error { return svc.Cancel(ctx, id, "x", 1) }},
		{"cancel cancelled", StatusCancelled, func(svc *Service, id int64) error { return svc.Cancel(ctx, id, "x", 1) }},
		{"receive draft", StatusDraft, func(svc *Service, id int64) error {
			return svc.Receive(ctx, ReceiveInput{OrderID: id}, 1)
		}},
		{"receive sent", StatusSent, func(svc *Service, id int64) error {
			return svc.Receive(ctx, ReceiveInput{OrderID: id}, 1)
		}},
		{"delete confirmed", StatusConfirmed, func(svc *Service, id int64) error { return svc.Delete(ctx, id, 1) }},
		{"edit sent", StatusSent, func(svc *Service, id int64) error {
			return svc.UpdateDraftOrder(ctx, id, UpdateOrderInput{}, 1)
		}},
		{"add item to confirmed", StatusConfirmed, func(svc *Service, id int64) error {
			_, err := svc.AddItem(ctx, AddItemInput{OrderID: id, ProductID: 11, Quantity: dec("1"), UnitPrice: dec("1")}, 1)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, id := seed(t, tc.from)
			require.ErrorIs(t, tc.call(svc, id), ErrInvalidState)
		})
	}
}

func TestSendRequiresItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Send(ctx, order.ID, 10), ErrInvalidState)
}

func TestAddRemoveItemRecalculatesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)

	item, err := svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("2.5"), UnitPrice: dec("3.99")}, 10)
	require.NoError(t, err)
	require.True(t, item.LineTotal.Equal(dec("9.98")))

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, order.Subtotal.Equal(dec("9.98")))
	require.True(t, order.TaxAmount.Equal(dec("1.70")))
	require.True(t, order.TotalAmount.Equal(dec("11.68")))

	require.NoError(t, svc.RemoveItem(ctx, item.ID, 10))
	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, order.Subtotal.IsZero())
	require.True(t, order.TaxAmount.IsZero())
	require.True(t, order.TotalAmount.IsZero())
}

func TestAddItemValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("0"), UnitPrice: dec("1")}, 10)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("1"), UnitPrice: dec("-1")}, 10)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("1"), UnitPrice: dec("1"), DiscountPercent: dec("101")}, 10)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 404, Quantity: dec("1"), UnitPrice: dec("1")}, 10)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReceiveRejectsBadQuantities(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("10"), UnitPrice: dec("5")}, 10)
	require.NoError(t, err)
	require.NoError(t, svc.Send(ctx, order.ID, 10))
	require.NoError(t, svc.Confirm(ctx, order.ID, 10))

	err = svc.Receive(ctx, ReceiveInput{OrderID: order.ID, Lines: []ReceiveLine{{ItemID: item.ID, Quantity: dec("11")}}}, 10)
	require.ErrorIs(t, err, ErrValidation)

	err = svc.Receive(ctx, ReceiveInput{OrderID: order.ID, Lines: []ReceiveLine{{ItemID: item.ID, Quantity: dec("-1")}}}, 10)
	require.ErrorIs(t, err, ErrValidation)

	err = svc.Receive(ctx, ReceiveInput{OrderID: order.ID, Lines: []ReceiveLine{{ItemID: 9999, Quantity: dec("1")}}}, 10)
	require.ErrorIs(t, err, ErrNotFound)

	// Rejected receipts must not leave partial state behind.
	order, items, err := svc.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, order.Status)
	require.True(t, items[0].QuantityReceived.IsZero())
}

func TestReceiveOverMultipleDeliveries(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("10"), UnitPrice: dec("5")}, 10)
	require.NoError(t, err)
	require.NoError(t, svc.Send(ctx, order.ID, 10))
	require.NoError(t, svc.Confirm(ctx, order.ID, 10))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Receive(ctx, ReceiveInput{OrderID: order.ID, Lines: []ReceiveLine{{ItemID: item.ID, Quantity: dec("3")}}}, 10))
		got, err := svc.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, StatusPartiallyReceived, got.Status)
	}
	require.NoError(t, svc.Receive(ctx, ReceiveInput{OrderID: order.ID, Lines: []ReceiveLine{{ItemID: item.ID, Quantity: dec("1")}}}, 10))
	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, got.Status)
}

func TestCancelAppendsReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1, InternalNotes: "rush order"}, 10)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, order.ID, "supplier out of stock", 10))

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Equal(t, "rush order\n\nCancelled: supplier out of stock", got.InternalNotes)
}

func TestDeleteCascadesItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("1"), UnitPrice: dec("1")}, 10)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, order.ID, 10))
	_, err = svc.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.items)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{}, 10)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 404}, 10)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1, Currency: "SHEKELS"}, 10)
	require.ErrorIs(t, err, ErrValidation)
}

func TestNumbersIncrementWithinMonth(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	require.Equal(t, "PO-202603-0001", first.Number)
	require.Equal(t, "PO-202603-0002", second.Number)
}

func TestUpdateDraftOrderTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: 1}, 10)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddItemInput{OrderID: order.ID, ProductID: 11, Quantity: dec("4"), UnitPrice: dec("25")}, 10)
	require.NoError(t, err)

	current, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	err = svc.UpdateDraftOrder(ctx, order.ID, UpdateOrderInput{
		ShippingCost:   dec("25.00"),
		DiscountAmount: dec("10.00"),
		RowVersion:     current.RowVersion,
	}, 10)
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	// 100 + 17 tax + 25 shipping - 10 discount
	require.True(t, got.TotalAmount.Equal(dec("132.00")), "total %s", got.TotalAmount)

	// A stale row version is rejected.
	err = svc.UpdateDraftOrder(ctx, order.ID, UpdateOrderInput{RowVersion: current.RowVersion}, 10)
	require.ErrorIs(t, err, ErrConflict)
}
