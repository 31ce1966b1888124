package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SessionPurger removes expired session rows.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionPurgeJob keeps the session table from accumulating stale rows.
type SessionPurgeJob struct {
	sessions SessionPurger
	logger   *slog.Logger
}

// NewSessionPurgeJob constructs the job.
func NewSessionPurgeJob(sessions SessionPurger, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{sessions: sessions, logger: logger}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	purged, err := j.sessions.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	j.logger.Info("expired sessions purged", slog.Int64("count", purged))
	return nil
}
