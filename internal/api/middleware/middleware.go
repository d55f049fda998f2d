package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/sessionbridge/internal/api/presenter"
)

// Logging attaches a request-scoped logger to the context and logs every handled request.
// Successful requests to quietPaths (health checks, scrapes) are not logged.
func Logging(quietPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// create a logger to wrap request info
			l := log.With().
				Str("correlation_id", CorrelationCtx(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Logger()

			ctx := l.WithContext(r.Context())
			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))

			if ww.statusCode < http.StatusBadRequest && slices.Contains(quietPaths, r.URL.Path) {
				return
			}

			// handlers may have added fields (e.g. the principal) to the context logger
			rl := zerolog.Ctx(ctx)
			ev := rl.Info()
			if ww.statusCode >= http.StatusInternalServerError {
				ev = rl.Error()
			}
			ev.
				Int("status", ww.statusCode).
				Int("bytes", ww.written).
				Str("user_agent", r.UserAgent()).
				Dur("duration", time.Since(start)).
				Msg("request.handled")
		})
	}
}

func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			log.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic.recovered")

			presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
