package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "test-secret", time.Hour, false)
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sess.Set("theme", "dark")
	sess.SetUser("42")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))
	cookie := sessionCookie(t, res, sm.CookieName())

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "dark", loaded.Get("theme"))
	require.Equal(t, "42", loaded.User())
}

func TestTamperedCookieYieldsFreshSession(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("42")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))
	cookie := sessionCookie(t, res, sm.CookieName())

	// Swap the session ID but keep the original signature.
	id, sig, found := strings.Cut(cookie.Value, ".")
	require.True(t, found)
	lead := "0"
	if id[0] == '0' {
		lead = "1"
	}
	forged := *cookie
	forged.Value = lead + id[1:] + "." + sig

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&forged)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.NotEqual(t, sess.ID, loaded.ID)
	require.Empty(t, loaded.User())
}

func TestDestroyRemovesSession(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("7")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))
	cookie := sessionCookie(t, res, sm.CookieName())

	sm.Destroy(sess)
	clear := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, clear, req, sess))
	cleared := sessionCookie(t, clear, sm.CookieName())
	require.Negative(t, cleared.MaxAge)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Empty(t, loaded.User())
}

func TestFlashPopsOnce(t *testing.T) {
	sess := &Session{}
	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "saved", flash.Message)
	require.Nil(t, sess.PopFlash())
}

func TestCSRFTokens(t *testing.T) {
	cm := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess := &Session{ID: "abc"}

	token, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, cm.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, cm.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, cm.VerifyToken(ctx, sess, "bogus"), ErrCSRFTokenMismatch)
}
