package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the request principal, or nil when anonymous.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	return p
}

// Middleware resolves the session cookie into a Principal on the request
// context. Unknown or expired cookies leave the request anonymous.
func Middleware(sessions *Sessions, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := sessions.Resolve(r.Context(), c.Value)
			if err != nil {
				log.Error().Err(err).Msg("resolve session")
			}
			if p != nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose principal holds none of roles. With no
// roles, any signed-in principal passes. Anonymous page requests are
// redirected to the login page of the first role; API requests get 401, and
// signed-in principals with the wrong role get 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p == nil {
				if isAPI(r) {
					jsonError(w, "authentication required", http.StatusUnauthorized)
					return
				}
				role := RoleStudent
				if len(roles) > 0 {
					role = roles[0]
				}
				http.Redirect(w, r, LoginPath(role), http.StatusSeeOther)
				return
			}
			if len(roles) > 0 && !hasRole(p, roles) {
				if isAPI(r) {
					jsonError(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginPath returns the login page for role.
func LoginPath(role string) string {
	if role == RoleAdmin {
		return "/admin/login"
	}
	return "/login/" + role
}

// DashboardPath returns the dashboard page for role.
func DashboardPath(role string) string {
	return "/" + role
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, r *http.Request, name, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func hasRole(p *Principal, roles []string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
