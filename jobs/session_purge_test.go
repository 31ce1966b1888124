package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	purged int64
	err    error
	calls  int
}

func (s *stubPurger) PurgeExpired(ctx context.Context) (int64, error) {
	s.calls++
	return s.purged, s.err
}

func TestSessionPurgeJob(t *testing.T) {
	purger := &stubPurger{purged: 3}
	job := NewSessionPurgeJob(purger, slog.New(slog.DiscardHandler))

	task, err := NewSessionPurgeTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, purger.calls)
}

func TestSessionPurgeJobPropagatesError(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	job := NewSessionPurgeJob(purger, slog.New(slog.DiscardHandler))

	task, err := NewSessionPurgeTask(time.Now())
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
}

func TestSessionPurgeJobSkipsBadPayload(t *testing.T) {
	purger := &stubPurger{}
	job := NewSessionPurgeJob(purger, slog.New(slog.DiscardHandler))

	task := asynq.NewTask(TaskSessionPurge, []byte("not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, purger.calls)
}
