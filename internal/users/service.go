package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian/internal/shared"
)

// Sentinel errors surfaced by the users service.
var (
	ErrNotFound       = errors.New("users: user not found")
	ErrDuplicateEmail = errors.New("users: email already registered")
	ErrInvalidID      = errors.New("users: invalid identifier")
	ErrValidation     = errors.New("users: validation failed")
)

func init() {
	shared.MarkSafe(ErrNotFound)
	shared.MarkSafe(ErrDuplicateEmail)
	shared.MarkSafe(ErrInvalidID)
	shared.MarkSafe(ErrValidation)
}

const minPasswordLength = 8

// RepositoryPort abstracts user persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, search string, limit, offset int) ([]UserWithRoles, int, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, user User) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort records administrative changes.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// CreateUserInput carries the fields needed to open a new account.
type CreateUserInput struct {
	Email    string
	FullName string
	Password string
}

// Service provides user account management.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns users matching the search term with their role names.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]UserWithRoles, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, strings.TrimSpace(search), limit, offset)
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create validates the input, hashes the password and stores the account.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateUserInput) (int64, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return 0, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if input.FullName == "" {
		return 0, fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return 0, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.Create(ctx, User{
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "USER_CREATE", id)
	return id, nil
}

// Update changes a user's email and full name.
func (s *Service) Update(ctx context.Context, actorID int64, user User) error {
	if user.ID <= 0 {
		return ErrInvalidID
	}
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	user.FullName = strings.TrimSpace(user.FullName)
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if user.FullName == "" {
		return fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "USER_UPDATE", user.ID)
	return nil
}

// ChangePassword replaces a user's password.
func (s *Service) ChangePassword(ctx context.Context, actorID, userID int64, password string) error {
	if userID <= 0 {
		return ErrInvalidID
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "USER_PASSWORD_CHANGE", userID)
	return nil
}

// Deactivate blocks a user from signing in. Accounts are never hard deleted.
func (s *Service) Deactivate(ctx context.Context, actorID, userID int64) error {
	return s.setActive(ctx, actorID, userID, false, "USER_DEACTIVATE")
}

// Activate re-enables a blocked account.
func (s *Service) Activate(ctx context.Context, actorID, userID int64) error {
	return s.setActive(ctx, actorID, userID, true, "USER_ACTIVATE")
}

func (s *Service) setActive(ctx context.Context, actorID, userID int64, active bool, action string) error {
	if userID <= 0 {
		return ErrInvalidID
	}
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, action, userID)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
}
