package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/intent"
	"github.com/jrsteele09/grantpilot-workspace/nav"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	MessageUnexpected = "Something went wrong. Please try again."
)

// intentStore returns the redirect intent store bound to this request.
func (s *Server) intentStore(w http.ResponseWriter, r *http.Request) *intent.CookieStore {
	return intent.NewCookieStore(s.cookies, w, r)
}

// redirectNavigated writes a redirect to the last target the request
// navigated to. It reports whether there was one.
func redirectNavigated(w http.ResponseWriter, r *http.Request) bool {
	recorder, ok := nav.RecorderFrom(r.Context())
	if !ok {
		return false
	}
	target, ok := recorder.Last()
	if !ok {
		return false
	}
	redirectSuccess(w, r, target)
	return true
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorCode string) {
	redirectSuccess(w, r, path+"?error="+url.QueryEscape(errorCode))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse is the body of every failed browser-facing request.
type ErrorResponse struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Message: message})
}

// writeAPIError relays a failed API call. Errors that are not API errors get
// fallback and a 502.
func writeAPIError(w http.ResponseWriter, err error, fallback string) {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		writeJSONError(w, fallback, http.StatusBadGateway)
		return
	}
	status := apiErr.Status
	if status < 400 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{Message: apiErr.Message, ErrorCode: apiErr.Code, RequestID: apiErr.RequestID})
}
