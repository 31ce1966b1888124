package auth_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian/internal/auth"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/users"
	"github.com/meridian-erp/meridian/internal/view"
	_ "github.com/meridian-erp/meridian/testing"
)

type stubUserSource struct {
	user *users.User
}

func (s *stubUserSource) GetByEmail(ctx context.Context, email string) (users.User, error) {
	if s.user == nil || s.user.Email != email {
		return users.User{}, users.ErrNotFound
	}
	return *s.user, nil
}

type noopSessions struct{}

func (noopSessions) Insert(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	return nil
}

func (noopSessions) Delete(ctx context.Context, sessionID string) error { return nil }

func newAuthHandler(t *testing.T, source auth.UserSource) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	handler := auth.NewHandler(logger, auth.NewService(source, noopSessions{}, nil), templates, csrfManager, sessionManager)
	return handler, sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubUserSource{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.LoginForm(res, req)
	require.NoError(t, sessionManager.Commit(req.Context(), res, req, sess))

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "<form")
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	handler, sessionManager := newAuthHandler(t, &stubUserSource{
		user: &users.User{ID: 1, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true},
	})

	form := url.Values{}
	form.Set("email", "user@test.local")
	form.Set("password", "wrongpass")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.Login(res, req)
	require.NoError(t, sessionManager.Commit(req.Context(), res, req, sess))

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "Invalid email or password")
	require.Empty(t, sess.User())
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	handler, sessionManager := newAuthHandler(t, &stubUserSource{
		user: &users.User{ID: 42, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true},
	})

	form := url.Values{}
	form.Set("email", "user@test.local")
	form.Set("password", "correctpass")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, sess := withSession(t, sessionManager, req)

	res := httptest.NewRecorder()
	handler.Login(res, req)
	require.NoError(t, sessionManager.Commit(req.Context(), res, req, sess))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/", res.Header().Get("Location"))
	require.Equal(t, "42", sess.User())
}

func TestLogoutDestroysSession(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubUserSource{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req, sess := withSession(t, sessionManager, req)
	sess.SetUser("42")

	res := httptest.NewRecorder()
	handler.Logout(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/login", res.Header().Get("Location"))

	// In production the session middleware commits before the handler's
	// redirect is written. Commit to a separate recorder here so the
	// resulting Set-Cookie header is observable.
	commit := httptest.NewRecorder()
	require.NoError(t, sessionManager.Commit(req.Context(), commit, req, sess))

	var cleared bool
	for _, c := range commit.Result().Cookies() {
		if c.Name == sessionManager.CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared, "session cookie should be expired")
}
