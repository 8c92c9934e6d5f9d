package server

import (
	"net/http"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/nav"
)

// LogoutHandler signs the browser out (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceFrom(r.Context()).Session.Logout(r.Context())
		if !redirectNavigated(w, r) {
			redirectSuccess(w, r, nav.LoginPath)
		}
	}
}

// DashboardData describes the signed-in landing page.
type DashboardData struct {
	AppName string          `json:"app_name"`
	User    *apiclient.User `json:"user,omitempty"`
}

// DashboardHandler is the signed-in landing page (GET /dashboard)
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		writeJSON(w, http.StatusOK, DashboardData{
			AppName: s.config.GetAppName(),
			User:    ws.Session.User(),
		})
	}
}
