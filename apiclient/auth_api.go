package apiclient

import (
	"context"
	"errors"
	"net/http"
)

// Auth endpoints. None of them carry a bearer token.
const (
	PathAuthExchange     = "/api/auth/exchange"
	PathMagicLinkConsume = "/api/auth/magic-link/consume"
	PathMagicLinkRequest = "/api/auth/magic-link/request"
	PathGoogleStart      = "/api/auth/google/start"
	PathAuthRefresh      = "/api/auth/refresh"
	PathAuthLogout       = "/api/auth/logout"
)

// AuthAPI wraps the unauthenticated login, refresh and logout endpoints.
type AuthAPI struct {
	d *Dispatcher
}

// NewAuthAPI creates an AuthAPI on top of d.
func NewAuthAPI(d *Dispatcher) *AuthAPI {
	return &AuthAPI{d: d}
}

// GoogleStartResponse carries the identity provider URL to send the browser to.
type GoogleStartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

func (r *GoogleStartResponse) Validate() error {
	if r.AuthorizationURL == "" {
		return errors.New("missing authorization_url")
	}
	return nil
}

// StatusResponse is the body of simple acknowledgement endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// Exchange trades an OAuth authorization code for a token pair.
func (a *AuthAPI) Exchange(ctx context.Context, code string) (*TokenPayload, error) {
	return a.tokenCall(ctx, PathAuthExchange, map[string]string{"code": code})
}

// ConsumeMagicLink trades an emailed magic-link token for a token pair.
func (a *AuthAPI) ConsumeMagicLink(ctx context.Context, token string) (*TokenPayload, error) {
	return a.tokenCall(ctx, PathMagicLinkConsume, map[string]string{"token": token})
}

// Refresh exchanges a refresh token for a new pair.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (*TokenPayload, error) {
	return a.tokenCall(ctx, PathAuthRefresh, map[string]string{"refresh_token": refreshToken})
}

// Revoke invalidates a refresh token server side.
func (a *AuthAPI) Revoke(ctx context.Context, refreshToken string) error {
	return a.d.Do(ctx, http.MethodPost, PathAuthLogout, map[string]string{"refresh_token": refreshToken}, nil, WithoutAuth(), WithoutRetry())
}

// RequestMagicLink asks the API to email a login link.
func (a *AuthAPI) RequestMagicLink(ctx context.Context, email string) error {
	return a.d.Do(ctx, http.MethodPost, PathMagicLinkRequest, map[string]string{"email": email}, nil, WithoutAuth(), WithoutRetry())
}

// GoogleStart returns the Google authorization URL for a new login.
func (a *AuthAPI) GoogleStart(ctx context.Context) (*GoogleStartResponse, error) {
	return requestBody[GoogleStartResponse](ctx, a.d, http.MethodGet, PathGoogleStart, nil, WithoutAuth(), WithoutRetry())
}

func (a *AuthAPI) tokenCall(ctx context.Context, path string, body map[string]string) (*TokenPayload, error) {
	return requestBody[TokenPayload](ctx, a.d, http.MethodPost, path, body, WithoutAuth(), WithoutRetry())
}
