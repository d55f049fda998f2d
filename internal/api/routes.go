package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	LoginRoute         = "/login"
	LoginExternalRoute = "/login-okta"
	RegisterRoute      = "/register"
	RegisterAdminRoute = "/register-admin"

	MeRoute = "/v1/me"

	AdminParent     = "/v1/admin/"
	ListAuditsRoute = AdminParent + "audits"
)
