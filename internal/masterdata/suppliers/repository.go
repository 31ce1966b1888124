package suppliers

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
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	GetMetric(ctx context.Context, supplierID int64) (Metric, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const supplierColumns = `id, code, name, contact_name, email, phone, address, city, country, tax_id,
	default_currency, payment_terms, lead_time_days, is_active, notes, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.ContactName, &s.Email, &s.Phone, &s.Address, &s.City, &s.Country, &s.TaxID,
		&s.DefaultCurrency, &s.PaymentTerms, &s.LeadTimeDays, &s.IsActive, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM suppliers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		clause := ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + ` OR contact_name ILIKE $` + n + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
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

	var list []Supplier
	for rows.Next() {
		var s Supplier
		err := rows.Scan(
			&s.ID, &s.Code, &s.Name, &s.ContactName, &s.Email, &s.Phone, &s.Address, &s.City, &s.Country, &s.TaxID,
			&s.DefaultCurrency, &s.PaymentTerms, &s.LeadTimeDays, &s.IsActive, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
}

func (r *repository) GetMetric(ctx context.Context, supplierID int64) (Metric, error) {
	var m Metric
	err := r.pool.QueryRow(ctx,
		`SELECT supplier_id, orders_total, orders_on_time, on_time_percentage, calculated_at
		 FROM supplier_metrics WHERE supplier_id = $1`, supplierID).
		Scan(&m.SupplierID, &m.OrdersTotal, &m.OrdersOnTime, &m.OnTimePercentage, &m.CalculatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Metric{}, shared.ErrNotFound
	}
	return m, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, contact_name, email, phone, address, city, country, tax_id,
			default_currency, payment_terms, lead_time_days, is_active, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		supplier.Code, supplier.Name, supplier.ContactName, supplier.Email, supplier.Phone,
		supplier.Address, supplier.City, supplier.Country, supplier.TaxID,
		supplier.DefaultCurrency, supplier.PaymentTerms, supplier.LeadTimeDays,
		supplier.IsActive, supplier.Notes, now, now,
	).Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, mapPgError(err)
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE suppliers SET code=$1, name=$2, contact_name=$3, email=$4, phone=$5, address=$6,
			city=$7, country=$8, tax_id=$9, default_currency=$10, payment_terms=$11,
			lead_time_days=$12, is_active=$13, notes=$14, updated_at=$15
		WHERE id=$16`,
		supplier.Code, supplier.Name, supplier.ContactName, supplier.Email, supplier.Phone, supplier.Address,
		supplier.City, supplier.Country, supplier.TaxID, supplier.DefaultCurrency, supplier.PaymentTerms,
		supplier.LeadTimeDays, supplier.IsActive, supplier.Notes, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE suppliers SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), id)
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
	case "code":
		return "code " + dir
	case "lead_time":
		return "lead_time_days " + dir
	default:
		return "name " + dir
	}
}
