package roles

import "time"

// Role groups permissions that can be granted to users together.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleWithCounts decorates a role with usage numbers for listing pages.
type RoleWithCounts struct {
	Role
	PermissionCount int
	UserCount       int
}
