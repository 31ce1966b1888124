package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// metricWorkers bounds how many suppliers are recalculated concurrently.
const metricWorkers = 4

// SupplierMetricsJob recomputes on-time delivery percentages from completed
// purchase orders. An order counts as on time when its actual delivery date
// is no later than the expected one; orders without an expected date are
// counted as on time since there was no commitment to miss.
type SupplierMetricsJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSupplierMetricsJob constructs the job.
func NewSupplierMetricsJob(pool *pgxpool.Pool, logger *slog.Logger) *SupplierMetricsJob {
	return &SupplierMetricsJob{pool: pool, logger: logger}
}

// Handle processes TaskSupplierMetrics tasks.
func (j *SupplierMetricsJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SupplierMetricsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	supplierIDs, err := j.targets(ctx, payload.SupplierID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metricWorkers)
	for _, id := range supplierIDs {
		g.Go(func() error {
			return j.recalculate(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("supplier metrics: %w", err)
	}
	j.logger.Info("supplier metrics recalculated", slog.Int("suppliers", len(supplierIDs)))
	return nil
}

func (j *SupplierMetricsJob) targets(ctx context.Context, supplierID int64) ([]int64, error) {
	if supplierID > 0 {
		return []int64{supplierID}, nil
	}
	rows, err := j.pool.Query(ctx, `SELECT id FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan supplier id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *SupplierMetricsJob) recalculate(ctx context.Context, supplierID int64) error {
	const statsQuery = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE expected_delivery_date IS NULL
		                           OR actual_delivery_date <= expected_delivery_date)
		FROM purchase_orders
		WHERE supplier_id = $1 AND status = 'Received' AND actual_delivery_date IS NOT NULL`

	var total, onTime int
	if err := j.pool.QueryRow(ctx, statsQuery, supplierID).Scan(&total, &onTime); err != nil {
		return fmt.Errorf("supplier %d stats: %w", supplierID, err)
	}

	pct := 0.0
	if total > 0 {
		pct = float64(onTime) / float64(total) * 100
	}

	const upsert = `
		INSERT INTO supplier_metrics (supplier_id, orders_total, orders_on_time, on_time_percentage, calculated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (supplier_id) DO UPDATE SET
			orders_total = EXCLUDED.orders_total,
			orders_on_time = EXCLUDED.orders_on_time,
			on_time_percentage = EXCLUDED.on_time_percentage,
			calculated_at = EXCLUDED.calculated_at`

	if _, err := j.pool.Exec(ctx, upsert, supplierID, total, onTime, pct); err != nil {
		return fmt.Errorf("supplier %d upsert: %w", supplierID, err)
	}
	return nil
}
