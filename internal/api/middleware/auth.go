package middleware

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/api/presenter"
	"github.com/darmiel/sessionbridge/internal/core"
)

// RequireAuth rejects requests that were not authenticated by a native or bridged session token.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := core.PrincipalFromContext(r.Context())
		if !ok {
			presenter.Error(w, r, "login required", http.StatusUnauthorized)
			return
		}

		log.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("principal", principal.Name).Str("auth_source", principal.Source)
		})
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose principal does not carry role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := core.PrincipalFromContext(r.Context())
			if !principal.HasRole(role) {
				presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
