package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/users"
)

// UserSource resolves accounts for authentication.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// SessionStore records which server side sessions belong to which user.
type SessionStore interface {
	Insert(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error
	Delete(ctx context.Context, sessionID string) error
}

// AuditPort records sign-in activity.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service authenticates users and tracks their sessions.
type Service struct {
	users    UserSource
	sessions SessionStore
	audit    AuditPort
}

// NewService constructs a Service.
func NewService(userSource UserSource, sessions SessionStore, audit AuditPort) *Service {
	return &Service{users: userSource, sessions: sessions, audit: audit}
}

// Authenticate checks the credentials and returns the matching active user.
// Unknown emails, wrong passwords and blocked accounts all map to the same
// error so the login page cannot be used to probe for accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return users.User{}, shared.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession records a successful login against its session ID.
func (s *Service) RegisterSession(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	if err := s.sessions.Insert(ctx, sessionID, userID, time.Now().Add(ttl)); err != nil {
		return err
	}
	s.recordAudit(ctx, userID, "LOGIN")
	return nil
}

// RemoveSession drops the session record on logout.
func (s *Service) RemoveSession(ctx context.Context, sessionID string, userID int64) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.recordAudit(ctx, userID, "LOGOUT")
	return nil
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "session",
		EntityID: fmt.Sprintf("user:%d", userID),
	})
}
