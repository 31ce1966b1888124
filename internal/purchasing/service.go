package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian/internal/money"
	"github.com/meridian-erp/meridian/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error)
	GetItemWithOrder(ctx context.Context, itemID int64) (OrderItem, PurchaseOrder, error)
	LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	UpdateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	DeleteOrder(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	DeleteItem(ctx context.Context, id int64) error
	DeleteItemsForOrder(ctx context.Context, orderID int64) error
	OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	LockOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error)
	UpdateItemReceived(ctx context.Context, itemID int64, qty decimal.Decimal) error
}

// ProductPort exposes the product fields item creation defaults from.
type ProductPort interface {
	ProductDefaults(ctx context.Context, productID int64) (ProductDefaults, error)
}

// ProductDefaults carries description/unit defaults for new items.
type ProductDefaults struct {
	Name          string
	SKU           string
	DefaultUnitID int64
}

// SupplierPort exposes the supplier fields order creation defaults from.
type SupplierPort interface {
	SupplierDefaults(ctx context.Context, supplierID int64) (SupplierDefaults, error)
}

// SupplierDefaults carries ordering defaults configured on the supplier.
type SupplierDefaults struct {
	Name            string
	DefaultCurrency string
	PaymentTerms    string
	LeadTimeDays    int
}

// AuditPort records mutation history.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig tunes order arithmetic.
type ServiceConfig struct {
	// TaxRate applied to order subtotals, e.g. 0.17.
	TaxRate decimal.Decimal
}

// Service owns the purchase order lifecycle: status transitions, line item
// management, total recalculation and goods receipt reconciliation.
type Service struct {
	repo      RepositoryPort
	products  ProductPort
	suppliers SupplierPort
	audit     AuditPort
	numbers   *NumberGenerator
	taxRate   decimal.Decimal
	now       func() time.Time
}

// NewService constructs a purchasing service.
func NewService(repo RepositoryPort, products ProductPort, suppliers SupplierPort, audit AuditPort, cfg ServiceConfig) *Service {
	rate := cfg.TaxRate
	if rate.IsZero() {
		rate = decimal.NewFromFloat(0.17)
	}
	return &Service{
		repo:      repo,
		products:  products,
		suppliers: suppliers,
		audit:     audit,
		numbers:   NewNumberGenerator(repo),
		taxRate:   rate,
		now:       time.Now,
	}
}

// CreateOrderInput describes the order creation payload.
type CreateOrderInput struct {
	SupplierID           int64
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	Currency             string
	PaymentTerms         string
	Notes                string
	InternalNotes        string
}

// CreateOrder opens a new Draft order with zero totals and a generated number.
// Currency, payment terms and the expected delivery date default from the
// supplier when left empty; the lead time drives the delivery estimate.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput, actorID int64) (PurchaseOrder, error) {
	if input.SupplierID <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	sup, err := s.suppliers.SupplierDefaults(ctx, input.SupplierID)
	if err != nil {
		return PurchaseOrder{}, err
	}

	if input.OrderDate.IsZero() {
		input.OrderDate = s.now()
	}
	if input.Currency == "" {
		input.Currency = sup.DefaultCurrency
	}
	if _, err := currency.ParseISO(input.Currency); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: unknown currency %q", ErrValidation, input.Currency)
	}
	if input.PaymentTerms == "" {
		input.PaymentTerms = sup.PaymentTerms
	}
	if input.ExpectedDeliveryDate == nil && sup.LeadTimeDays > 0 {
		expected := input.OrderDate.AddDate(0, 0, sup.LeadTimeDays)
		input.ExpectedDeliveryDate = &expected
	}

	number, err := s.numbers.Next(ctx, input.OrderDate)
	if err != nil {
		return PurchaseOrder{}, err
	}

	now := s.now()
	order := PurchaseOrder{
		Number:               number,
		SupplierID:           input.SupplierID,
		OrderDate:            input.OrderDate,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		Status:               StatusDraft,
		Currency:             input.Currency,
		PaymentTerms:         input.PaymentTerms,
		Notes:                input.Notes,
		InternalNotes:        input.InternalNotes,
		CreatedBy:            actorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "PO_CREATE", order.ID, map[string]any{"number": order.Number})
	return order, nil
}

// UpdateOrderInput carries editable header fields for Draft orders.
type UpdateOrderInput struct {
	SupplierID           int64
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	Currency             string
	PaymentTerms         string
	Notes                string
	InternalNotes        string
	ShippingCost         decimal.Decimal
	DiscountAmount       decimal.Decimal
	RowVersion           int64
}

// UpdateDraftOrder edits order-level fields and recalculates totals. Only
// Draft orders are editable.
func (s *Service) UpdateDraftOrder(ctx context.Context, orderID int64, input UpdateOrderInput, actorID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: only Draft orders are editable", ErrInvalidState)
	}
	if !money.NonNegative(input.ShippingCost) || !money.NonNegative(input.DiscountAmount) {
		return fmt.Errorf("%w: shipping and discount must be non-negative", ErrValidation)
	}
	if input.Currency != "" {
		if _, err := currency.ParseISO(input.Currency); err != nil {
			return fmt.Errorf("%w: unknown currency %q", ErrValidation, input.Currency)
		}
		order.Currency = input.Currency
	}
	if input.SupplierID > 0 {
		order.SupplierID = input.SupplierID
	}
	if !input.OrderDate.IsZero() {
		order.OrderDate = input.OrderDate
	}
	order.ExpectedDeliveryDate = input.ExpectedDeliveryDate
	order.PaymentTerms = input.PaymentTerms
	order.Notes = input.Notes
	order.InternalNotes = input.InternalNotes
	order.ShippingCost = money.Round2(input.ShippingCost)
	order.DiscountAmount = money.Round2(input.DiscountAmount)
	order.RowVersion = input.RowVersion

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.recalculate(ctx, tx, &order)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_UPDATE", order.ID, map[string]any{"number": order.Number})
	return nil
}

// AddItemInput describes a new order line.
type AddItemInput struct {
	OrderID         int64
	ProductID       int64
	VariantID       int64
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	Notes           string
}

// AddItem appends a line to a Draft order, defaulting description and unit
// from the product, and recalculates order totals.
func (s *Service) AddItem(ctx context.Context, input AddItemInput, actorID int64) (OrderItem, error) {
	order, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return OrderItem{}, err
	}
	if order.Status != StatusDraft {
		return OrderItem{}, fmt.Errorf("%w: items can only be added to Draft orders", ErrInvalidState)
	}
	if !input.Quantity.IsPositive() {
		return OrderItem{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if !money.NonNegative(input.UnitPrice) {
		return OrderItem{}, fmt.Errorf("%w: unit price must be non-negative", ErrValidation)
	}
	if !money.ValidDiscountPercent(input.DiscountPercent) {
		return OrderItem{}, fmt.Errorf("%w: discount percent must be between 0 and 100", ErrValidation)
	}

	product, err := s.products.ProductDefaults(ctx, input.ProductID)
	if err != nil {
		return OrderItem{}, err
	}

	item := OrderItem{
		OrderID:         order.ID,
		ProductID:       input.ProductID,
		VariantID:       input.VariantID,
		Description:     product.Name,
		UnitID:          product.DefaultUnitID,
		Quantity:        input.Quantity,
		UnitPrice:       money.Round2(input.UnitPrice),
		DiscountPercent: input.DiscountPercent,
		Notes:           input.Notes,
	}
	item.LineTotal = money.LineTotal(item.Quantity, item.UnitPrice, item.DiscountPercent)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return s.recalculate(ctx, tx, &order)
	})
	if err != nil {
		return OrderItem{}, err
	}
	s.recordAudit(ctx, actorID, "PO_ITEM_ADD", order.ID, map[string]any{"item_id": item.ID, "product_id": item.ProductID})
	return item, nil
}

// RemoveItem deletes a line from a Draft order and recalculates totals.
func (s *Service) RemoveItem(ctx context.Context, itemID int64, actorID int64) error {
	item, order, err := s.repo.GetItemWithOrder(ctx, itemID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: items can only be removed from Draft orders", ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, &order)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_ITEM_REMOVE", order.ID, map[string]any{"item_id": item.ID})
	return nil
}

// Send transitions a Draft order with at least one item to Sent.
func (s *Service) Send(ctx context.Context, orderID int64, actorID int64) error {
	order, items, err := s.repo.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft || !order.Status.CanTransition(StatusSent) {
		return fmt.Errorf("%w: only Draft orders can be sent", ErrInvalidState)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: cannot send an order without items", ErrInvalidState)
	}
	if err := s.setStatus(ctx, &order, StatusSent); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_SEND", order.ID, map[string]any{"number": order.Number})
	return nil
}

// Confirm marks a Sent order as confirmed by the supplier.
func (s *Service) Confirm(ctx context.Context, orderID int64, actorID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusSent {
		return fmt.Errorf("%w: only Sent orders can be confirmed", ErrInvalidState)
	}
	if err := s.setStatus(ctx, &order, StatusConfirmed); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_CONFIRM", order.ID, map[string]any{"number": order.Number})
	return nil
}

// MarkShipped records that a Confirmed order left the supplier.
func (s *Service) MarkShipped(ctx context.Context, orderID int64, actorID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusConfirmed {
		return fmt.Errorf("%w: only Confirmed orders can be marked shipped", ErrInvalidState)
	}
	if err := s.setStatus(ctx, &order, StatusShipped); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_SHIP", order.ID, map[string]any{"number": order.Number})
	return nil
}

// Cancel aborts an order that has not been fully received, appending the
// reason to the internal notes.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string, actorID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransition(StatusCancelled) {
		return fmt.Errorf("%w: %s orders cannot be cancelled", ErrInvalidState, order.Status)
	}
	order.Status = StatusCancelled
	order.InternalNotes = appendNote(order.InternalNotes, fmt.Sprintf("Cancelled: %s", reason))
	order.UpdatedAt = s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		version, err := tx.UpdateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.RowVersion = version
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_CANCEL", order.ID, map[string]any{"number": order.Number, "reason": reason})
	return nil
}

// ReceiveLine requests a quantity delta against one order item.
type ReceiveLine struct {
	ItemID   int64
	Quantity decimal.Decimal
}

// ReceiveInput describes a goods receipt against an order.
type ReceiveInput struct {
	OrderID     int64
	ReceiveDate time.Time
	Notes       string
	Lines       []ReceiveLine
}

// Receive reconciles delivered quantities against the order. The order row is
// locked for the duration of the transaction so concurrent receipts against
// the same order serialize. The order becomes Received only when every item,
// including ones not mentioned in the receipt, is fully received; otherwise it
// becomes PartiallyReceived. Full receipt stamps the actual delivery date.
func (s *Service) Receive(ctx context.Context, input ReceiveInput, actorID int64) error {
	if input.ReceiveDate.IsZero() {
		input.ReceiveDate = s.now()
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, items, err := tx.LockOrderWithItems(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.Receivable() {
			return fmt.Errorf("%w: goods cannot be received for %s orders", ErrInvalidState, order.Status)
		}
		number = order.Number

		byID := make(map[int64]*OrderItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		changed := make(map[int64]decimal.Decimal)
		for _, line := range input.Lines {
			item, ok := byID[line.ItemID]
			if !ok {
				return fmt.Errorf("%w: item %d is not on order %s", ErrNotFound, line.ItemID, order.Number)
			}
			if line.Quantity.IsNegative() {
				return fmt.Errorf("%w: received quantity must be non-negative", ErrValidation)
			}
			if line.Quantity.IsZero() {
				continue
			}
			if line.Quantity.GreaterThan(item.RemainingQuantity()) {
				return fmt.Errorf("%w: receipt of %s exceeds remaining %s on item %d",
					ErrValidation, line.Quantity, item.RemainingQuantity(), item.ID)
			}
			item.QuantityReceived = item.QuantityReceived.Add(line.Quantity)
			changed[item.ID] = item.QuantityReceived
		}

		allReceived := true
		for i := range items {
			if !items[i].IsFullyReceived() {
				allReceived = false
				break
			}
		}

		for itemID, qty := range changed {
			if err := tx.UpdateItemReceived(ctx, itemID, qty); err != nil {
				return err
			}
		}

		if allReceived {
			order.Status = StatusReceived
			receiveDate := input.ReceiveDate
			order.ActualDeliveryDate = &receiveDate
		} else {
			order.Status = StatusPartiallyReceived
		}
		if input.Notes != "" {
			stamp := fmt.Sprintf("Received (%s): %s", input.ReceiveDate.Format("2006-01-02"), input.Notes)
			order.InternalNotes = appendNote(order.InternalNotes, stamp)
		}
		order.UpdatedAt = s.now()
		if _, err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_RECEIVE", input.OrderID, map[string]any{"number": number, "lines": len(input.Lines)})
	return nil
}

// Delete removes a Draft or Cancelled order together with its items.
func (s *Service) Delete(ctx context.Context, orderID int64, actorID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.Deletable() {
		return fmt.Errorf("%w: only Draft or Cancelled orders can be deleted", ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItemsForOrder(ctx, order.ID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_DELETE", order.ID, map[string]any{"number": order.Number})
	return nil
}

// GetOrder fetches an order header.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetOrderWithItems fetches an order and its lines.
func (s *Service) GetOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error) {
	return s.repo.GetOrderWithItems(ctx, id)
}

// ListOrders returns a filtered page of orders.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// recalculate recomputes subtotal, tax and total from the current item set and
// persists the order. Callers mutate the order header first.
func (s *Service) recalculate(ctx context.Context, tx TxRepository, order *PurchaseOrder) error {
	items, err := tx.OrderItems(ctx, order.ID)
	if err != nil {
		return err
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	order.Subtotal = subtotal
	order.TaxAmount = money.Tax(subtotal, s.taxRate)
	order.TotalAmount = money.OrderTotal(order.Subtotal, order.TaxAmount, order.ShippingCost, order.DiscountAmount)
	order.UpdatedAt = s.now()
	version, err := tx.UpdateOrder(ctx, *order)
	if err != nil {
		return err
	}
	order.RowVersion = version
	return nil
}

// setStatus persists a bare status change.
func (s *Service) setStatus(ctx context.Context, order *PurchaseOrder, to Status) error {
	order.Status = to
	order.UpdatedAt = s.now()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		version, err := tx.UpdateOrder(ctx, *order)
		if err != nil {
			return err
		}
		order.RowVersion = version
		return nil
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n\n" + note
}
