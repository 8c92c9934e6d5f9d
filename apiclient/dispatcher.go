// Package apiclient talks to the GrantPilot REST API. The Dispatcher attaches
// the session's bearer token, recovers once from an expired access token and
// turns every failure into a typed *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 4 << 20

// Session is what the Dispatcher needs from the session manager.
type Session interface {
	// Token returns the current bearer credential.
	Token() (*oauth2.Token, error)
	// Refresh exchanges the refresh token for a new pair. A failed refresh
	// leaves the session cleared and the user on their way to login.
	Refresh(ctx context.Context) error
	// ForceLogin clears the session and sends the user to login.
	ForceLogin(ctx context.Context)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher issues API requests relative to a base URL.
type Dispatcher struct {
	baseURL string
	client  Doer
	session Session
}

// DispatcherOption defines a function type to modify the Dispatcher instance.
type DispatcherOption func(*Dispatcher)

// WithDoer replaces the HTTP client (primarily for testing)
func WithDoer(client Doer) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = &http.Client{Timeout: timeout}
	}
}

// NewDispatcher creates a dispatcher. session may be nil for a dispatcher
// that only issues unauthenticated calls.
func NewDispatcher(baseURL string, session Session, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		session: session,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

type requestOptions struct {
	auth       bool
	retryOn401 bool
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithoutAuth sends the request without a bearer token and without any 401
// handling.
func WithoutAuth() RequestOption {
	return func(o *requestOptions) {
		o.auth = false
	}
}

// WithoutRetry disables the refresh-and-retry on 401.
func WithoutRetry() RequestOption {
	return func(o *requestOptions) {
		o.retryOn401 = false
	}
}

type validator interface {
	Validate() error
}

// Request issues a call and decodes the JSON response into a new T. A 204
// response returns nil.
func Request[T any](ctx context.Context, d *Dispatcher, method, path string, body any, options ...RequestOption) (*T, error) {
	out := new(T)
	noContent, err := d.do(ctx, method, path, body, out, options...)
	if err != nil {
		return nil, err
	}
	if noContent {
		return nil, nil
	}
	return out, nil
}

// Do issues a call and decodes the JSON response into out, which may be nil.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body any, out any, options ...RequestOption) error {
	_, err := d.do(ctx, method, path, body, out, options...)
	return err
}

func (d *Dispatcher) do(ctx context.Context, method, path string, body any, out any, options ...RequestOption) (bool, error) {
	if d.baseURL == "" {
		return false, fmt.Errorf("[Dispatcher %s %s] API base URL: %w", method, path, werrors.ErrNotConfigured)
	}

	opts := requestOptions{auth: true, retryOn401: true}
	for _, opt := range options {
		opt(&opts)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return false, fmt.Errorf("[Dispatcher %s %s] encode body: %w", method, path, err)
		}
	}

	return d.dispatch(ctx, method, path, payload, out, opts)
}

func (d *Dispatcher) dispatch(ctx context.Context, method, path string, payload []byte, out any, opts requestOptions) (bool, error) {
	status, respBody, err := d.send(ctx, method, path, payload, opts.auth)
	if err != nil {
		return false, err
	}

	if status == http.StatusUnauthorized && opts.auth && d.session != nil {
		if opts.retryOn401 {
			if err := d.session.Refresh(ctx); err != nil {
				log.Debug().Err(err).Str("path", path).Msg("Refresh after 401 failed")
				return false, newResponseError(status, respBody)
			}
			opts.retryOn401 = false
			return d.dispatch(ctx, method, path, payload, out, opts)
		}
		d.session.ForceLogin(ctx)
	}

	if status < 200 || status > 299 {
		apiErr := newResponseError(status, respBody)
		log.Debug().Str("method", method).Str("path", path).Int("status", status).
			Str("error_code", apiErr.Code).Str("request_id", apiErr.RequestID).Msg("API request failed")
		return false, apiErr
	}

	if status == http.StatusNoContent {
		return true, nil
	}
	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return false, newContractError(status, method, path, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return false, newContractError(status, method, path, err)
		}
	}
	return false, nil
}

func (d *Dispatcher) send(ctx context.Context, method, path string, payload []byte, auth bool) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("[Dispatcher %s %s] build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && d.session != nil {
		if token, err := d.session.Token(); err == nil && token.AccessToken != "" {
			token.SetAuthHeader(req)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("[Dispatcher %s %s] %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("[Dispatcher %s %s] read response: %w", method, path, err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("API request")
	return resp.StatusCode, respBody, nil
}

// requestBody is Request for endpoints that always answer with a body.
func requestBody[T any](ctx context.Context, d *Dispatcher, method, path string, body any, options ...RequestOption) (*T, error) {
	out, err := Request[T](ctx, d, method, path, body, options...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, newContractError(http.StatusNoContent, method, path, errors.New("empty body"))
	}
	return out, nil
}
