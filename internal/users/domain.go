package users

import "time"

// User is an account that can sign in to the application.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRoles decorates a user with assigned role names for listings.
type UserWithRoles struct {
	User
	RoleNames []string
}
