package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/handler"
	"github.com/arfaar/swapfinity/internal/identity"
)

const (
	// ContextUID holds the verified caller id.
	ContextUID = "uid"
	// ContextIdentity holds the verified *identity.Identity.
	ContextIdentity = "identity"
)

func unauthorized(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusUnauthorized, handler.NewErrorResponse(code, msg))
}

type AuthMiddleware struct {
	provider identity.Provider
	log      *slog.Logger
}

func NewAuthMiddleware(provider identity.Provider, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{provider: provider, log: log.With("component", "auth")}
}

// RequireAuth verifies the bearer token and stores the caller in the echo
// context. Websocket upgrades may pass the token as ?token= since browsers
// cannot set headers on them.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return unauthorized(c, "unauthorized", "must be logged in")
		}
		id, err := m.provider.VerifyToken(c.Request().Context(), token)
		if err != nil {
			if !errors.Is(err, identity.ErrInvalidToken) {
				m.log.Warn("token verification failed", "error", err)
			}
			return unauthorized(c, "invalid_token", "invalid or expired token")
		}
		c.Set(ContextUID, id.UID)
		c.Set(ContextIdentity, id)
		return next(c)
	}
}

// OptionalAuth behaves like RequireAuth when a token is present and lets
// anonymous requests through otherwise.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	required := m.RequireAuth(next)
	return func(c echo.Context) error {
		if bearerToken(c.Request()) == "" {
			return next(c)
		}
		return required(c)
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
