package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	nextID int64
	users  map[int64]User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{nextID: 1, users: map[int64]User{}}
}

func (m *memoryUsers) List(ctx context.Context, search string, limit, offset int) ([]UserWithRoles, int, error) {
	var out []UserWithRoles
	for _, u := range m.users {
		if search != "" && !strings.Contains(u.Email, search) && !strings.Contains(u.FullName, search) {
			continue
		}
		out = append(out, UserWithRoles{User: u})
	}
	return out, len(out), nil
}

func (m *memoryUsers) Get(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryUsers) Create(ctx context.Context, user User) (int64, error) {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return 0, ErrDuplicateEmail
		}
	}
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.nextID++
	m.users[user.ID] = user
	return user.ID, nil
}

func (m *memoryUsers) Update(ctx context.Context, user User) error {
	existing, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Email = user.Email
	existing.FullName = user.FullName
	m.users[user.ID] = existing
	return nil
}

func (m *memoryUsers) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memoryUsers) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryUsers()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.Create(ctx, 1, CreateUserInput{
		Email:    "  Dana@Example.COM ",
		FullName: "Dana Weiss",
		Password: "correct horse",
	})
	require.NoError(t, err)

	user, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", user.Email)
	require.True(t, user.IsActive)
	require.NotEqual(t, "correct horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemoryUsers(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateUserInput
	}{
		{"missing email", CreateUserInput{FullName: "Dana", Password: "long enough"}},
		{"malformed email", CreateUserInput{Email: "not-an-email", FullName: "Dana", Password: "long enough"}},
		{"missing name", CreateUserInput{Email: "dana@example.com", Password: "long enough"}},
		{"short password", CreateUserInput{Email: "dana@example.com", FullName: "Dana", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, 1, tc.input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUsers(), nil)
	ctx := context.Background()

	input := CreateUserInput{Email: "dana@example.com", FullName: "Dana Weiss", Password: "long enough"}
	_, err := svc.Create(ctx, 1, input)
	require.NoError(t, err)

	input.Email = "DANA@example.com"
	_, err = svc.Create(ctx, 1, input)
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestChangePassword(t *testing.T) {
	repo := newMemoryUsers()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.Create(ctx, 1, CreateUserInput{Email: "dana@example.com", FullName: "Dana Weiss", Password: "first password"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.ChangePassword(ctx, 1, id, "short"), ErrValidation)
	require.NoError(t, svc.ChangePassword(ctx, 1, id, "second password"))

	user, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("second password")))
}

func TestDeactivateActivate(t *testing.T) {
	repo := newMemoryUsers()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.Create(ctx, 1, CreateUserInput{Email: "dana@example.com", FullName: "Dana Weiss", Password: "long enough"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, 1, id))
	user, _ := svc.Get(ctx, id)
	require.False(t, user.IsActive)

	require.NoError(t, svc.Activate(ctx, 1, id))
	user, _ = svc.Get(ctx, id)
	require.True(t, user.IsActive)

	require.ErrorIs(t, svc.Deactivate(ctx, 1, 99), ErrNotFound)
}
