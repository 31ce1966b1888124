package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSupplierMetrics recomputes supplier delivery performance.
	TaskSupplierMetrics = "suppliers:metrics"
	// TaskSessionPurge removes expired session records.
	TaskSessionPurge = "sessions:purge"
)

// SupplierMetricsPayload narrows recalculation to one supplier when set.
type SupplierMetricsPayload struct {
	SupplierID int64 `json:"supplier_id,omitempty"`
}

// NewSupplierMetricsTask constructs a metrics recalculation task. A zero
// supplier ID recalculates every supplier.
func NewSupplierMetricsTask(supplierID int64) (*asynq.Task, error) {
	body, err := json.Marshal(SupplierMetricsPayload{SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierMetrics, body, asynq.Queue(QueueDefault)), nil
}

// SessionPurgePayload carries scheduling metadata.
type SessionPurgePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionPurgeTask constructs a session purge task.
func NewSessionPurgeTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionPurgePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, body, asynq.Queue(QueueDefault)), nil
}
