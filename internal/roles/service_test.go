package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/rbac"
)

type memoryRoles struct {
	nextID int64
	roles  map[int64]Role
	perms  map[int64][]int64
	users  map[int64][]int64
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{
		nextID: 1,
		roles:  map[int64]Role{},
		perms:  map[int64][]int64{},
		users:  map[int64][]int64{},
	}
}

func (m *memoryRoles) List(ctx context.Context) ([]RoleWithCounts, error) {
	var out []RoleWithCounts
	for _, role := range m.roles {
		rc := RoleWithCounts{Role: role, PermissionCount: len(m.perms[role.ID])}
		for _, assigned := range m.users {
			for _, id := range assigned {
				if id == role.ID {
					rc.UserCount++
				}
			}
		}
		out = append(out, rc)
	}
	return out, nil
}

func (m *memoryRoles) Get(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *memoryRoles) Create(ctx context.Context, role Role) (int64, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return 0, ErrDuplicate
		}
	}
	role.ID = m.nextID
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	m.nextID++
	m.roles[role.ID] = role
	return role.ID, nil
}

func (m *memoryRoles) Update(ctx context.Context, role Role) error {
	existing, ok := m.roles[role.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = role.Name
	existing.Description = role.Description
	m.roles[role.ID] = existing
	return nil
}

func (m *memoryRoles) Delete(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	for _, assigned := range m.users {
		for _, roleID := range assigned {
			if roleID == id {
				return ErrInUse
			}
		}
	}
	delete(m.roles, id)
	delete(m.perms, id)
	return nil
}

func (m *memoryRoles) PermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return m.perms[roleID], nil
}

func (m *memoryRoles) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	m.perms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (m *memoryRoles) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	return m.users[userID], nil
}

func (m *memoryRoles) AssignToUser(ctx context.Context, userID, roleID int64) error {
	for _, id := range m.users[userID] {
		if id == roleID {
			return nil
		}
	}
	m.users[userID] = append(m.users[userID], roleID)
	return nil
}

func (m *memoryRoles) RemoveFromUser(ctx context.Context, userID, roleID int64) error {
	kept := m.users[userID][:0]
	for _, id := range m.users[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.users[userID] = kept
	return nil
}

type staticCatalog []rbac.Permission

func (c staticCatalog) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return c, nil
}

func newTestRoleService() (*Service, *memoryRoles) {
	repo := newMemoryRoles()
	catalog := staticCatalog{
		{ID: 1, Name: "purchasing.view"},
		{ID: 2, Name: "purchasing.edit"},
	}
	return NewService(repo, catalog, nil), repo
}

func TestRoleCreateAndPermissions(t *testing.T) {
	svc, _ := newTestRoleService()
	ctx := context.Background()

	id, err := svc.Create(ctx, 1, Role{Name: "  Buyer ", Description: "places orders"}, []int64{1, 2})
	require.NoError(t, err)

	role, perms, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Buyer", role.Name)
	require.ElementsMatch(t, []int64{1, 2}, perms)

	require.NoError(t, svc.Update(ctx, 1, Role{ID: id, Name: "Buyer", Description: "places orders"}, []int64{1}))
	_, perms, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, perms)
}

func TestRoleValidation(t *testing.T) {
	svc, _ := newTestRoleService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, Role{Name: "   "}, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Get(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.Create(ctx, 1, Role{Name: "Buyer"}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, Role{Name: "Buyer"}, nil)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestRoleAssignmentLifecycle(t *testing.T) {
	svc, _ := newTestRoleService()
	ctx := context.Background()

	roleID, err := svc.Create(ctx, 1, Role{Name: "Buyer"}, []int64{1})
	require.NoError(t, err)

	require.NoError(t, svc.Assign(ctx, 1, 7, roleID))
	require.NoError(t, svc.Assign(ctx, 1, 7, roleID))

	assigned, err := svc.UserRoles(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{roleID}, assigned)

	require.ErrorIs(t, svc.Delete(ctx, 1, roleID), ErrInUse)

	require.NoError(t, svc.Remove(ctx, 1, 7, roleID))
	require.NoError(t, svc.Delete(ctx, 1, roleID))

	_, _, err = svc.Get(ctx, roleID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignUnknownRole(t *testing.T) {
	svc, _ := newTestRoleService()
	require.ErrorIs(t, svc.Assign(context.Background(), 1, 7, 99), ErrNotFound)
}
