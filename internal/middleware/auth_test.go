package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/logging"
)

type stubProvider struct {
	identity.Provider
	tokens map[string]string
}

func (s stubProvider) VerifyToken(_ context.Context, token string) (*identity.Identity, error) {
	uid, ok := s.tokens[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Identity{UID: uid}, nil
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen string
	err := mw(func(c echo.Context) error {
		seen, _ = c.Get(ContextUID).(string)
		return c.NoContent(http.StatusNoContent)
	})(c)
	require.NoError(t, err)
	return rec, seen
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(stubProvider{tokens: map[string]string{"good": "u1"}}, logging.Discard())

	tests := []struct {
		name    string
		header  string
		query   string
		upgrade bool
		status  int
		uid     string
	}{
		{"bearer", "Bearer good", "", false, http.StatusNoContent, "u1"},
		{"missing", "", "", false, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", "", false, http.StatusUnauthorized, ""},
		{"query token on websocket", "", "good", true, http.StatusNoContent, "u1"},
		{"query token on plain request", "", "good", false, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec, uid := run(t, m.RequireAuth, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.uid, uid)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := NewAuthMiddleware(stubProvider{tokens: map[string]string{"good": "u1"}}, logging.Discard())

	rec, uid := run(t, m.OptionalAuth, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, uid)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer good")
	_, uid = run(t, m.OptionalAuth, req)
	assert.Equal(t, "u1", uid)

	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec, _ = run(t, m.OptionalAuth, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
