package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/users"
)

type stubUsers struct {
	user *users.User
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (users.User, error) {
	if s.user == nil || s.user.Email != email {
		return users.User{}, users.ErrNotFound
	}
	return *s.user, nil
}

type memorySessions struct {
	rows map[string]int64
}

func (m *memorySessions) Insert(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	if m.rows == nil {
		m.rows = map[string]int64{}
	}
	m.rows[sessionID] = userID
	return nil
}

func (m *memorySessions) Delete(ctx context.Context, sessionID string) error {
	delete(m.rows, sessionID)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	active := &users.User{ID: 7, Email: "dana@example.com", PasswordHash: hashOf(t, "correctpass"), IsActive: true}
	blocked := &users.User{ID: 8, Email: "gone@example.com", PasswordHash: hashOf(t, "correctpass"), IsActive: false}

	cases := []struct {
		name     string
		user     *users.User
		email    string
		password string
		wantErr  bool
	}{
		{"valid", active, "dana@example.com", "correctpass", false},
		{"uppercase email", active, "DANA@example.com", "correctpass", false},
		{"wrong password", active, "dana@example.com", "wrongpass", true},
		{"unknown email", active, "nobody@example.com", "correctpass", true},
		{"blocked account", blocked, "gone@example.com", "correctpass", true},
		{"empty password", active, "dana@example.com", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&stubUsers{user: tc.user}, &memorySessions{}, nil)
			user, err := svc.Authenticate(context.Background(), tc.email, tc.password)
			if tc.wantErr {
				require.ErrorIs(t, err, shared.ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.user.ID, user.ID)
		})
	}
}

func TestSessionRegistration(t *testing.T) {
	store := &memorySessions{}
	svc := NewService(&stubUsers{}, store, nil)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sess-1", 7, time.Hour))
	require.Equal(t, int64(7), store.rows["sess-1"])

	require.NoError(t, svc.RemoveSession(ctx, "sess-1", 7))
	require.NotContains(t, store.rows, "sess-1")
}
