package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/platform/db"
)

// ListFilters narrow the order listing.
type ListFilters struct {
	Status     *Status
	SupplierID *int64
	Search     string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// OrderListItem is a denormalized listing row.
type OrderListItem struct {
	ID                   int64
	Number               string
	SupplierID           int64
	SupplierName         string
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	Status               Status
	TotalAmount          decimal.Decimal
	Currency             string
	ItemCount            int
	CreatedByName        string
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, supplier_id, order_date, expected_delivery_date, actual_delivery_date,
	status, subtotal, tax_amount, discount_amount, shipping_cost, total_amount,
	currency, payment_terms, notes, internal_notes, created_by, row_version, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var o PurchaseOrder
	var status string
	err := row.Scan(
		&o.ID, &o.Number, &o.SupplierID, &o.OrderDate, &o.ExpectedDeliveryDate, &o.ActualDeliveryDate,
		&status, &o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.ShippingCost, &o.TotalAmount,
		&o.Currency, &o.PaymentTerms, &o.Notes, &o.InternalNotes, &o.CreatedBy, &o.RowVersion, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	o.Status = Status(status)
	return o, nil
}

const itemColumns = `id, order_id, product_id, COALESCE(variant_id,0), description, unit_id,
	quantity, unit_price, discount_percent, line_total, quantity_received, notes`

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Description, &it.UnitID,
			&it.Quantity, &it.UnitPrice, &it.DiscountPercent, &it.LineTotal, &it.QuantityReceived, &it.Notes,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetOrder fetches an order header.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id)
	return scanOrder(row)
}

// GetOrderWithItems fetches an order and its lines.
func (r *Repository) GetOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error) {
	order, err := r.GetOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return order, items, nil
}

// GetItemWithOrder fetches a line together with its order header.
func (r *Repository) GetItemWithOrder(ctx context.Context, itemID int64) (OrderItem, PurchaseOrder, error) {
	var it OrderItem
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE id=$1`, itemID).Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Description, &it.UnitID,
		&it.Quantity, &it.UnitPrice, &it.DiscountPercent, &it.LineTotal, &it.QuantityReceived, &it.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderItem{}, PurchaseOrder{}, ErrNotFound
		}
		return OrderItem{}, PurchaseOrder{}, err
	}
	order, err := r.GetOrder(ctx, it.OrderID)
	if err != nil {
		return OrderItem{}, PurchaseOrder{}, err
	}
	return it, order, nil
}

// LatestNumberWithPrefix returns the greatest allocated order number with the
// given prefix, or "" when the month has no orders yet.
func (r *Repository) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT number FROM purchase_orders WHERE number LIKE $1 ORDER BY number DESC LIMIT 1`,
		prefix+"-%").Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return number, nil
}

// ListOrders returns a filtered page plus the unpaged total.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("po.status = $%d", argPos))
		args = append(args, string(*filters.Status))
		argPos++
	}
	if filters.SupplierID != nil {
		conditions = append(conditions, fmt.Sprintf("po.supplier_id = $%d", argPos))
		args = append(args, *filters.SupplierID)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(po.number ILIKE $%d OR s.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("po.order_date >= $%d", argPos))
		args = append(args, *filters.DateFrom)
		argPos++
	}
	if filters.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("po.order_date <= $%d", argPos))
		args = append(args, *filters.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM purchase_orders po JOIN suppliers s ON po.supplier_id = s.id %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT po.id, po.number, po.supplier_id, s.name, po.order_date, po.expected_delivery_date,
		       po.status, po.total_amount, po.currency,
		       (SELECT COUNT(*) FROM purchase_order_items i WHERE i.order_id = po.id),
		       u.full_name
		FROM purchase_orders po
		JOIN suppliers s ON po.supplier_id = s.id
		JOIN users u ON po.created_by = u.id
		%s
		ORDER BY po.order_date DESC, po.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []OrderListItem
	for rows.Next() {
		var row OrderListItem
		var status string
		err := rows.Scan(
			&row.ID, &row.Number, &row.SupplierID, &row.SupplierName, &row.OrderDate, &row.ExpectedDeliveryDate,
			&status, &row.TotalAmount, &row.Currency, &row.ItemCount, &row.CreatedByName,
		)
		if err != nil {
			return nil, 0, err
		}
		row.Status = Status(status)
		list = append(list, row)
	}
	return list, total, rows.Err()
}

// Transactional operations

func (tx *txRepo) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (
			number, supplier_id, order_date, expected_delivery_date, actual_delivery_date,
			status, subtotal, tax_amount, discount_amount, shipping_cost, total_amount,
			currency, payment_terms, notes, internal_notes, created_by, row_version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,1,$17,$18)
		RETURNING id`,
		order.Number, order.SupplierID, order.OrderDate, order.ExpectedDeliveryDate, order.ActualDeliveryDate,
		string(order.Status), order.Subtotal, order.TaxAmount, order.DiscountAmount, order.ShippingCost, order.TotalAmount,
		order.Currency, order.PaymentTerms, order.Notes, order.InternalNotes, order.CreatedBy, order.CreatedAt, order.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, order.Number)
		}
		return 0, err
	}
	return id, nil
}

// UpdateOrder writes the header guarded by the row version and returns the new
// version. A missing match means the row changed underneath the caller.
func (tx *txRepo) UpdateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var version int64
	err := tx.tx.QueryRow(ctx, `
		UPDATE purchase_orders SET
			supplier_id=$1, order_date=$2, expected_delivery_date=$3, actual_delivery_date=$4,
			status=$5, subtotal=$6, tax_amount=$7, discount_amount=$8, shipping_cost=$9, total_amount=$10,
			currency=$11, payment_terms=$12, notes=$13, internal_notes=$14,
			row_version=row_version+1, updated_at=$15
		WHERE id=$16 AND row_version=$17
		RETURNING row_version`,
		order.SupplierID, order.OrderDate, order.ExpectedDeliveryDate, order.ActualDeliveryDate,
		string(order.Status), order.Subtotal, order.TaxAmount, order.DiscountAmount, order.ShippingCost, order.TotalAmount,
		order.Currency, order.PaymentTerms, order.Notes, order.InternalNotes,
		order.UpdatedAt, order.ID, order.RowVersion,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (tx *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO purchase_order_items (
			order_id, product_id, variant_id, description, unit_id,
			quantity, unit_price, discount_percent, line_total, quantity_received, notes
		) VALUES ($1,$2,NULLIF($3,0),$4,$5,$6,$7,$8,$9,0,$10)
		RETURNING id`,
		item.OrderID, item.ProductID, item.VariantID, item.Description, item.UnitID,
		item.Quantity, item.UnitPrice, item.DiscountPercent, item.LineTotal, item.Notes,
	).Scan(&id)
	return id, err
}

func (tx *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) DeleteItemsForOrder(ctx context.Context, orderID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id=$1`, orderID)
	return err
}

func (tx *txRepo) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := tx.tx.Query(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// LockOrderWithItems takes a row lock on the order so concurrent receipts
// against it serialize, then loads the item set.
func (tx *txRepo) LockOrderWithItems(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, error) {
	row := tx.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := tx.tx.Query(ctx, `SELECT `+itemColumns+` FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return order, items, nil
}

func (tx *txRepo) UpdateItemReceived(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_order_items SET quantity_received=$1 WHERE id=$2`, qty, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
