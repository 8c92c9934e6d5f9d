package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Login
	RouteLogin          = "/login"
	RouteLoginGoogle    = "/login/google"
	RouteLoginMagicLink = "/login/magic-link"
	RouteLogout         = "/logout"

	// Identity provider and email returns
	RouteAuthCallback  = "/auth/callback"
	RouteAuthMagicLink = "/auth/magic-link"

	// Start a fit check
	RouteStart = "/start"

	// Signed-in area
	RouteDashboard = "/dashboard"

	RouteHealth = "/healthz"
)

// Login page error codes carried in ?error=
const (
	LoginErrorCodeMissing    = "auth_code_missing"
	LoginErrorExchangeFailed = "auth_exchange_failed"
)
