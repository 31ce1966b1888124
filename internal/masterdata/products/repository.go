package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	SearchActive(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product, actorID int64) error
	PriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, sku, name, description, category_id, unit_id, price, cost, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		clause := ` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		clause := ` AND category_id = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.CategoryID)
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		var p Product
		err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitID,
			&p.Price, &p.Cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitID,
			&p.Price, &p.Cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) SearchActive(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, name, price FROM products
		WHERE is_active AND (name ILIKE $1 OR sku ILIKE $1)
		ORDER BY name LIMIT $2`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.ID, &res.SKU, &res.Name, &res.Price); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, category_id, unit_id, price, cost, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.UnitID,
		product.Price, product.Cost, product.IsActive, now, now,
	).Scan(&product.ID)
	if err != nil {
		return Product{}, mapPgError(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

// Update writes the product and, when the price changed, appends a price
// history row within the same transaction.
func (r *repository) Update(ctx context.Context, id int64, product Product, actorID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var oldPrice Product
	err = tx.QueryRow(ctx, `SELECT id, price FROM products WHERE id = $1 FOR UPDATE`, id).
		Scan(&oldPrice.ID, &oldPrice.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE products SET sku=$1, name=$2, description=$3, category_id=$4, unit_id=$5,
			price=$6, cost=$7, is_active=$8, updated_at=$9
		WHERE id=$10`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.UnitID,
		product.Price, product.Cost, product.IsActive, now, id)
	if err != nil {
		return mapPgError(err)
	}

	if !oldPrice.Price.Equal(product.Price) {
		_, err = tx.Exec(ctx, `
			INSERT INTO product_price_history (product_id, old_price, new_price, changed_by, changed_at)
			VALUES ($1,$2,$3,$4,$5)`,
			id, oldPrice.Price, product.Price, actorID, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) PriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, old_price, new_price, changed_by, changed_at
		FROM product_price_history WHERE product_id = $1 ORDER BY changed_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PriceHistoryEntry
	for rows.Next() {
		var e PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OldPrice, &e.NewPrice, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrInUse
		}
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "price":
		return "price " + dir
	default:
		return "name " + dir
	}
}
