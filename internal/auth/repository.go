package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository keeps a Postgres record of active sessions so administrators can
// see who is signed in and revoke access.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a session row, replacing any previous row with the same ID.
func (r *Repository) Insert(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	const query = `
		INSERT INTO user_sessions (session_id, user_id, created_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
		ON CONFLICT (session_id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`

	if _, err := r.pool.Exec(ctx, query, sessionID, userID, expiresAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Delete removes a session row.
func (r *Repository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose expiry has passed and reports the count.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
