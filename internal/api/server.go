package api

import (
	"net/http"

	"github.com/darmiel/sessionbridge/internal/accounts"
	"github.com/darmiel/sessionbridge/internal/api/middleware"
	"github.com/darmiel/sessionbridge/internal/audit"
	"github.com/darmiel/sessionbridge/internal/bridge"
	"github.com/darmiel/sessionbridge/internal/core"
	"github.com/darmiel/sessionbridge/internal/session"
)

type Server struct {
	auth     *bridge.Authenticator
	accounts *accounts.Service
	issuer   *session.Issuer
	auditor  core.Auditor
	metrics  http.Handler
}

type Option func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

func NewServer(
	auth *bridge.Authenticator,
	svc *accounts.Service,
	issuer *session.Issuer,
	auditor core.Auditor,
	opts ...Option,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	s := &Server{
		auth:     auth,
		accounts: svc,
		issuer:   issuer,
		auditor:  auditor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	if s.metrics != nil {
		mux.Handle("GET "+MetricsRoute, s.metrics)
	}

	mux.HandleFunc("POST "+LoginRoute, s.handleLogin)
	mux.HandleFunc("POST "+LoginExternalRoute, s.handleLoginExternal)
	mux.HandleFunc("POST "+RegisterRoute, s.handleRegister)
	mux.HandleFunc("POST "+RegisterAdminRoute, s.handleRegisterAdmin)

	// authenticated routes
	mux.Handle("GET "+MeRoute, middleware.RequireAuth(http.HandlerFunc(s.handleMe)))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	mux.Handle(AdminParent, middleware.RequireRole(core.RoleAdmin)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.Logging(HealthCheckRoute, MetricsRoute)(
				bridge.Middleware(s.auth)(
					mux))))
}
