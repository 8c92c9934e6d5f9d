package server

import (
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/jrsteele09/grantpilot-workspace/intent"
	"github.com/rs/zerolog/log"
)

var loginErrorMessages = map[string]string{
	LoginErrorCodeMissing:      "Your sign-in session was incomplete. Please try signing in again.",
	LoginErrorExchangeFailed:   "We could not complete sign-in. Please try again.",
	"magic_token_invalid":      "That magic link is invalid. Request a new link to continue.",
	"magic_token_expired":      "That magic link has expired. Request a new link to continue.",
	"magic_token_already_used": "That magic link was already used. Request a new link to continue.",
	"rate_limited":             "Too many attempts. Please wait a moment and try again.",
}

const (
	messageLoginFailed       = "We couldn't sign you in. Please try again."
	messageGoogleStartFailed = "We couldn't start Google sign-in. Please try again."
	messageMagicLinkFailed   = "We couldn't send a magic link right now. Please try again."
	messageInvalidEmail      = "Enter a valid email address."
)

// LoginPageData describes the login page.
type LoginPageData struct {
	AppName       string `json:"app_name"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
	Next          string `json:"next,omitempty"`
	GooglePath    string `json:"google_path"`
	MagicLinkPath string `json:"magic_link_path"`
}

// LoginPageHandler describes the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		query := r.URL.Query()

		data := LoginPageData{
			AppName:       s.config.GetAppName(),
			Authenticated: ws.Session.IsAuthenticated(),
			Error:         loginErrorMessage(query.Get("error")),
			GooglePath:    RouteLoginGoogle,
			MagicLinkPath: RouteLoginMagicLink,
		}
		if next := query.Get("next"); intent.IsSafeInternalPath(next) {
			data.Next = next
			data.GooglePath += "?next=" + url.QueryEscape(next)
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func loginErrorMessage(code string) string {
	if code == "" {
		return ""
	}
	if message, ok := loginErrorMessages[code]; ok {
		return message
	}
	return messageLoginFailed
}

// GoogleLoginHandler remembers where to return to and sends the browser to
// Google (GET /login/google?next=)
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		s.intentStore(w, r).Store(intent.KeyNext, r.URL.Query().Get("next"))

		start, err := ws.Auth.GoogleStart(r.Context())
		if err != nil {
			log.Err(err).Msg("Failed to start Google sign-in")
			writeAPIError(w, err, messageGoogleStartFailed)
			return
		}
		redirectSuccess(w, r, start.AuthorizationURL)
	}
}

// MagicLinkSentResponse acknowledges a magic link request.
type MagicLinkSentResponse struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

// MagicLinkRequestHandler emails a login link (POST /login/magic-link)
func (s *Server) MagicLinkRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, messageInvalidEmail, http.StatusBadRequest)
			return
		}

		email := strings.TrimSpace(r.FormValue("email"))
		address, err := mail.ParseAddress(email)
		if err != nil || address.Address != email {
			writeJSONError(w, messageInvalidEmail, http.StatusBadRequest)
			return
		}

		ws := workspaceFrom(r.Context())
		s.intentStore(w, r).Store(intent.KeyNext, r.FormValue("next"))

		if err := ws.Auth.RequestMagicLink(r.Context(), email); err != nil {
			log.Err(err).Msg("Failed to request magic link")
			writeAPIError(w, err, messageMagicLinkFailed)
			return
		}
		writeJSON(w, http.StatusAccepted, MagicLinkSentResponse{Status: "sent", Email: email})
	}
}
