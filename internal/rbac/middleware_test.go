package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/shared"
)

type stubPermissions struct {
	byUser map[int64][]string
}

func (s stubPermissions) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.byUser[userID], nil
}

func requestAs(t *testing.T, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireAny(t *testing.T) {
	m := Middleware{Service: stubPermissions{byUser: map[int64][]string{
		42: {"purchasing.view", "masterdata.view"},
	}}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		user   string
		perms  []string
		status int
	}{
		{"granted one of several", "42", []string{"purchasing.edit", "purchasing.view"}, http.StatusOK},
		{"granted none", "42", []string{"users.edit"}, http.StatusForbidden},
		{"anonymous", "", []string{"purchasing.view"}, http.StatusForbidden},
		{"unknown user", "99", []string{"purchasing.view"}, http.StatusForbidden},
		{"case insensitive", "42", []string{"Purchasing.View"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.RequireAny(tc.perms...)(next).ServeHTTP(rec, requestAs(t, tc.user))
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireAll(t *testing.T) {
	m := Middleware{Service: stubPermissions{byUser: map[int64][]string{
		42: {"purchasing.view", "purchasing.edit"},
	}}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	m.RequireAll("purchasing.view", "purchasing.edit")(next).ServeHTTP(rec, requestAs(t, "42"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	m.RequireAll("purchasing.view", "purchasing.delete")(next).ServeHTTP(rec, requestAs(t, "42"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
