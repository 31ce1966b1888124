package roles

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meridian-erp/meridian/internal/rbac"
	"github.com/meridian-erp/meridian/internal/shared"
)

// Sentinel errors surfaced by the roles service.
var (
	ErrNotFound   = errors.New("roles: role not found")
	ErrDuplicate  = errors.New("roles: role name already exists")
	ErrInUse      = errors.New("roles: role is assigned to users")
	ErrInvalidID  = errors.New("roles: invalid identifier")
	ErrValidation = errors.New("roles: validation failed")
)

func init() {
	shared.MarkSafe(ErrNotFound)
	shared.MarkSafe(ErrDuplicate)
	shared.MarkSafe(ErrInUse)
	shared.MarkSafe(ErrInvalidID)
	shared.MarkSafe(ErrValidation)
}

// RepositoryPort abstracts role persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context) ([]RoleWithCounts, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, role Role) (int64, error)
	Update(ctx context.Context, role Role) error
	Delete(ctx context.Context, id int64) error
	PermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	UserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	AssignToUser(ctx context.Context, userID, roleID int64) error
	RemoveFromUser(ctx context.Context, userID, roleID int64) error
}

// PermissionCatalog lists the known permissions for assignment forms.
type PermissionCatalog interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// AuditPort records administrative changes.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service provides role management.
type Service struct {
	repo        RepositoryPort
	permissions PermissionCatalog
	audit       AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, permissions PermissionCatalog, audit AuditPort) *Service {
	return &Service{repo: repo, permissions: permissions, audit: audit}
}

// List returns all roles with usage counts.
func (s *Service) List(ctx context.Context) ([]RoleWithCounts, error) {
	return s.repo.List(ctx)
}

// Get returns a role together with its assigned permission IDs.
func (s *Service) Get(ctx context.Context, id int64) (Role, []int64, error) {
	if id <= 0 {
		return Role{}, nil, ErrInvalidID
	}
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	ids, err := s.repo.PermissionIDs(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	return role, ids, nil
}

// Permissions returns the full permission catalog.
func (s *Service) Permissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.permissions.ListPermissions(ctx)
}

// Create validates and stores a new role, then sets its permissions.
func (s *Service) Create(ctx context.Context, actorID int64, role Role, permissionIDs []int64) (int64, error) {
	if err := validate(&role); err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, role)
	if err != nil {
		return 0, err
	}
	if err := s.repo.ReplacePermissions(ctx, id, permissionIDs); err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "ROLE_CREATE", id)
	return id, nil
}

// Update changes a role and replaces its permission set.
func (s *Service) Update(ctx context.Context, actorID int64, role Role, permissionIDs []int64) error {
	if role.ID <= 0 {
		return ErrInvalidID
	}
	if err := validate(&role); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, role); err != nil {
		return err
	}
	if err := s.repo.ReplacePermissions(ctx, role.ID, permissionIDs); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_UPDATE", role.ID)
	return nil
}

// Delete removes an unassigned role.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_DELETE", id)
	return nil
}

// UserRoles returns the role IDs assigned to a user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]int64, error) {
	if userID <= 0 {
		return nil, ErrInvalidID
	}
	return s.repo.UserRoleIDs(ctx, userID)
}

// Assign links a role to a user.
func (s *Service) Assign(ctx context.Context, actorID, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return ErrInvalidID
	}
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignToUser(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_ASSIGN", roleID)
	return nil
}

// Remove unlinks a role from a user.
func (s *Service) Remove(ctx context.Context, actorID, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return ErrInvalidID
	}
	if err := s.repo.RemoveFromUser(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_REMOVE", roleID)
	return nil
}

func validate(role *Role) error {
	role.Name = strings.TrimSpace(role.Name)
	role.Description = strings.TrimSpace(role.Description)
	if role.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(role.Name) > 100 {
		return fmt.Errorf("%w: name is too long", ErrValidation)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, roleID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
	})
}
