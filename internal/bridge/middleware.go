package bridge

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/core"
)

// Middleware authenticates every request once and stores the principal in the request context.
// Bridged requests get the minted token as their Authorization header, so handlers
// further down see the same credential shape as for native requests.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o := a.Authenticate(r.Context(), r.Header)

			switch o.Result {
			case ResultRejected:
				log.Ctx(r.Context()).Debug().
					Str("reason", string(o.Reason)).
					Err(o.Err).
					Msg("auth.native.rejected")
			case ResultCanceled:
				return
			}

			if !o.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := core.WithPrincipal(r.Context(), o.Principal)
			if o.Result == ResultBridged {
				r = r.Clone(ctx)
				r.Header.Set("Authorization", "Bearer "+o.Token.Value)
				r.Header.Del(a.header)
			} else {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
