package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/intent"
	"github.com/jrsteele09/grantpilot-workspace/server/workspaces"
	"github.com/rs/zerolog/log"
)

var magicLinkErrorMessages = map[string]string{
	apiclient.CodeMagicTokenInvalid:     "This magic link is invalid. Please request a new login link.",
	apiclient.CodeMagicTokenExpired:     "This magic link has expired. Please request a new login link.",
	apiclient.CodeMagicTokenAlreadyUsed: "This magic link has already been used. Request a new login link.",
	apiclient.CodeRateLimited:           "Too many attempts. Please wait a moment and try again.",
}

const (
	messageMagicLinkIncomplete = "The login link is incomplete. Please request a new magic link."
	messageMagicLinkUnverified = "We couldn't validate that link right now. Please request a new one."
)

// AuthCallbackHandler completes a Google sign-in (GET /auth/callback)
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code := query.Get("code")
		if code == "" {
			redirectWithError(w, r, RouteLogin, LoginErrorCodeMissing)
			return
		}

		ws := workspaceFrom(r.Context())
		payload, err := ws.Auth.Exchange(r.Context(), code)
		if err == nil {
			err = ws.Session.LoginWithTokens(payload)
		}
		if err != nil {
			log.Err(err).Msg("Authorization code exchange failed")
			redirectWithError(w, r, RouteLogin, LoginErrorExchangeFailed)
			return
		}

		s.redirectAfterLogin(w, r, ws, query)
	}
}

// MagicLinkCallbackHandler completes a magic link sign-in (GET /auth/magic-link)
func (s *Server) MagicLinkCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		token := query.Get("token")
		if token == "" {
			writeJSONError(w, messageMagicLinkIncomplete, http.StatusBadRequest)
			return
		}

		ws := workspaceFrom(r.Context())
		payload, err := ws.Auth.ConsumeMagicLink(r.Context(), token)
		if err == nil {
			err = ws.Session.LoginWithTokens(payload)
		}
		if err != nil {
			log.Err(err).Msg("Magic link sign-in failed")
			writeMagicLinkError(w, err)
			return
		}

		s.redirectAfterLogin(w, r, ws, query)
	}
}

func writeMagicLinkError(w http.ResponseWriter, err error) {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		writeJSONError(w, messageMagicLinkUnverified, http.StatusBadGateway)
		return
	}
	message, known := magicLinkErrorMessages[apiErr.Code]
	if !known {
		message = apiErr.Message
	}
	status := apiErr.Status
	if status < 400 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{Message: message, ErrorCode: apiErr.Code, RequestID: apiErr.RequestID})
}

func (s *Server) redirectAfterLogin(w http.ResponseWriter, r *http.Request, ws *workspaces.Workspace, query url.Values) {
	target := intent.NewResolver(s.intentStore(w, r)).Resolve(query.Get("next"), query.Get("state"))
	log.Debug().Str("workspace_id", ws.ID).Str("target", target).Msg("Signed in")
	redirectSuccess(w, r, target)
}
