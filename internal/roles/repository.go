package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists roles and their permission and user links.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns every role with permission and member counts.
func (r *Repository) List(ctx context.Context) ([]RoleWithCounts, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM role_permissions rp WHERE rp.role_id = r.id),
		       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id)
		FROM roles r
		ORDER BY r.name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []RoleWithCounts
	for rows.Next() {
		var role RoleWithCounts
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt,
			&role.PermissionCount, &role.UserCount); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Get returns a role by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`

	var role Role
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// Create inserts a role and returns its ID.
func (r *Repository) Create(ctx context.Context, role Role) (int64, error) {
	const query = `
		INSERT INTO roles (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id`

	var id int64
	if err := r.pool.QueryRow(ctx, query, role.Name, role.Description).Scan(&id); err != nil {
		return 0, mapPgError("create role", err)
	}
	return id, nil
}

// Update changes a role's name and description.
func (r *Repository) Update(ctx context.Context, role Role) error {
	const query = `UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, role.ID, role.Name, role.Description)
	if err != nil {
		return mapPgError("update role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a role. Roles still assigned to users cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	var assigned int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id).Scan(&assigned); err != nil {
		return fmt.Errorf("count role assignments: %w", err)
	}
	if assigned > 0 {
		return ErrInUse
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete role: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return fmt.Errorf("detach role permissions: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// PermissionIDs returns the IDs of permissions attached to a role.
func (r *Repository) PermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan permission id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplacePermissions attaches and detaches permission links so the role ends
// up with exactly the given set.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := r.PermissionIDs(ctx, roleID)
	if err != nil {
		return err
	}

	wanted := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		wanted[id] = struct{}{}
	}
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace permissions: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range current {
		if _, keep := wanted[id]; !keep {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, id); err != nil {
				return fmt.Errorf("detach permission: %w", err)
			}
		}
	}
	for _, id := range permissionIDs {
		if _, have := existing[id]; !have {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, id); err != nil {
				return mapPgError("attach permission", err)
			}
		}
	}
	return tx.Commit(ctx)
}

// UserRoleIDs returns the IDs of roles assigned to a user.
func (r *Repository) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AssignToUser links a role to a user. Duplicate links are ignored.
func (r *Repository) AssignToUser(ctx context.Context, userID, roleID int64) error {
	const query = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, userID, roleID); err != nil {
		return mapPgError("assign role", err)
	}
	return nil
}

// RemoveFromUser unlinks a role from a user.
func (r *Repository) RemoveFromUser(ctx context.Context, userID, roleID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
