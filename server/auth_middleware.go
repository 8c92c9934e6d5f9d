package server

import (
	"net/http"

	"github.com/jrsteele09/grantpilot-workspace/nav"
)

// RequireSession sends browsers without a session to login, returning to the
// requested page afterwards.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		if ws == nil || !ws.Session.IsAuthenticated() {
			redirectSuccess(w, r, nav.LoginURL(r.URL.RequestURI()))
			return
		}
		next(w, r)
	}
}
