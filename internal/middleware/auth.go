package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/ctxkeys"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// SessionCookie is the httpOnly cookie that carries the session token
const SessionCookie = "token"

// Authenticator resolves a session token to the current account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Account, *services.Claims, error)
}

// RequireAuth loads the principal from a Bearer token or the session cookie.
// Role, stage and status come from the stored account, not the token.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, claims, err := auth.Authenticate(r.Context(), TokenFrom(r))
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := ctxkeys.WithPrincipal(r.Context(), acct, claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles admits principals whose role is one of roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := services.Authorize(ctxkeys.PrincipalFrom(r.Context()), roles...); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly admits the admin role
func AdminOnly() func(http.Handler) http.Handler {
	return RequireRoles(models.RoleAdmin)
}

// StaffOnly admits any principal acting for the back office
func StaffOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct := ctxkeys.PrincipalFrom(r.Context())
			if acct == nil {
				writeError(w, apperr.Auth("Not authorized, please login"))
				return
			}
			if !acct.IsStaff() {
				writeError(w, apperr.Forbidden("Access denied. Insufficient permissions."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFrom returns the Bearer token, falling back to the session cookie
func TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
