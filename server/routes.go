package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLoginGoogle, ChainMiddleware(s.GoogleLoginHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLoginMagicLink, ChainMiddleware(s.MagicLinkRequestHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.BrowserMiddleware()...))

	// Returns from Google and from the emailed magic link
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMagicLink, ChainMiddleware(s.MagicLinkCallbackHandler(), s.BrowserMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteStart, ChainMiddleware(s.StartHandler(), s.BrowserMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.BrowserMiddleware(s.RequireSession)...))
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
