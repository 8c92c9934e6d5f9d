package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/jrsteele09/grantpilot-workspace/server/workspaces"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyWorkspace stores the *workspaces.Workspace of the browser
	ContextKeyWorkspace ContextKey = "workspace"
)

const (
	workspaceCookieName = "grantpilot_workspace"
	workspaceIDValue    = "workspace_id"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler) // Call the middleware function
	}
	return chainedHandler
}

// BrowserMiddleware is the stack for every browser-facing route. Extra
// middleware runs after the workspace is attached.
func (s *Server) BrowserMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.WWWRedirectMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FrameSecurityMiddleware,
		s.WorkspaceMiddleware,
	}
	chainedMiddleWare = append(chainedMiddleWare, mw...)
	return chainedMiddleWare
}

func (s *Server) WWWRedirectMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		// If host starts with www., redirect to non-www
		if strings.HasPrefix(host, "www.") {
			nonWWWHost := strings.TrimPrefix(host, "www.")
			newURL := fmt.Sprintf("%s://%s%s", getScheme(r), nonWWWHost, r.RequestURI)
			http.Redirect(w, r, newURL, http.StatusMovedPermanently)
			return
		}
		next(w, r)
	}
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.env != "DEV" {
			next(w, r)
			return
		}
		logRoute(r.Method, r.URL.Path)
		next(w, r)
	}
}

func (s *Server) FrameSecurityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Prevent embedding on other sites
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		// Responses carry session dependent redirects
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logError(r.Method, r.URL.Path, fmt.Sprint(rec))
				log.Error().Str("stack", string(debug.Stack())).Msg("Recovered from panic")
				writeJSONError(w, MessageUnexpected, http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// WorkspaceMiddleware attaches the browser's workspace, creating one and
// setting its cookie on first contact. It also gives the request its own
// navigation recorder and current path for session redirects.
func (s *Server) WorkspaceMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A tampered or stale cookie yields an error together with a new session.
		cookie, err := s.cookies.Get(r, workspaceCookieName)
		if cookie == nil {
			log.Err(err).Msg("Failed to load workspace cookie")
			writeJSONError(w, MessageUnexpected, http.StatusInternalServerError)
			return
		}

		id, _ := cookie.Values[workspaceIDValue].(string)
		ws, created := s.workspaces.Open(id)
		if created {
			cookie.Values[workspaceIDValue] = ws.ID
			if err := cookie.Save(r, w); err != nil {
				log.Err(err).Msg("Failed to save workspace cookie")
				writeJSONError(w, MessageUnexpected, http.StatusInternalServerError)
				return
			}
			log.Debug().Str("workspace_id", ws.ID).Msg("Opened workspace")
		}

		ctx := context.WithValue(r.Context(), ContextKeyWorkspace, ws)
		ctx = nav.WithCurrentPath(ctx, r.URL.RequestURI())
		ctx = nav.WithRecorder(ctx, &nav.Recorder{})
		next(w, r.WithContext(ctx))
	}
}

func workspaceFrom(ctx context.Context) *workspaces.Workspace {
	ws, _ := ctx.Value(ContextKeyWorkspace).(*workspaces.Workspace)
	return ws
}
