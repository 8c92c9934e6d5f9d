package apiclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/jrsteele09/grantpilot-workspace/session"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an httptest server with a refresh endpoint that rotates tokens.
type fakeAPI struct {
	t       *testing.T
	server  *httptest.Server
	mux     *http.ServeMux
	refresh atomic.Int32

	mu         sync.Mutex
	authHeader []string
	// refreshStatus is returned by /api/auth/refresh when non-zero.
	refreshStatus int
	refreshDelay  time.Duration
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("POST "+apiclient.PathAuthRefresh, func(w http.ResponseWriter, r *http.Request) {
		n := f.refresh.Add(1)
		f.mu.Lock()
		status, delay := f.refreshStatus, f.refreshDelay
		f.mu.Unlock()
		time.Sleep(delay)
		if status != 0 {
			writeJSON(w, status, map[string]string{"error_code": "REFRESH_INVALID", "message": "refresh token invalid"})
			return
		}
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  fmt.Sprintf("access-%d", n+1),
			"refresh_token": fmt.Sprintf("refresh-%d", n+1),
			"token_type":    "bearer",
			"expires_in":    900,
		})
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeader = append(f.authHeader, r.Header.Get("Authorization"))
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeader...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type client struct {
	manager    *session.Manager
	dispatcher *apiclient.Dispatcher
	navigated  *nav.Recorder
}

func newClient(t *testing.T, api *fakeAPI, loggedIn bool) *client {
	t.Helper()
	rec := &nav.Recorder{}
	unauth := apiclient.NewDispatcher(api.server.URL, nil)
	m := session.NewManager(apiclient.NewAuthAPI(unauth), rec)
	if loggedIn {
		require.NoError(t, m.LoginWithTokens(&apiclient.TokenPayload{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "bearer",
			ExpiresIn:    900,
			User:         &apiclient.User{ID: "user-1", Email: "amina@ngo.example", Plan: apiclient.PlanFree},
		}))
	}
	return &client{
		manager:    m,
		dispatcher: apiclient.NewDispatcher(api.server.URL+"/", m, apiclient.WithTimeout(5*time.Second)),
		navigated:  rec,
	}
}

type item struct {
	Name string `json:"name"`
}

func TestDispatcher_AttachesBearerToken(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		writeJSON(w, http.StatusOK, item{Name: "one"})
	})
	c := newClient(t, api, true)

	got, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
	require.NoError(t, err)
	require.Equal(t, "one", got.Name)

	_, err = apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil, apiclient.WithoutAuth())
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer access-1", ""}, api.headers())
}

func TestDispatcher_SendsJSONBody(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/items", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		writeJSON(w, http.StatusCreated, item{Name: in.Name + "-created"})
	})
	c := newClient(t, api, true)

	got, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodPost, "/api/items", item{Name: "x"})
	require.NoError(t, err)
	require.Equal(t, "x-created", got.Name)
}

func TestDispatcher_RefreshesOnceAndRetries(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		if r.Header.Get("Authorization") != "Bearer access-2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "TOKEN_EXPIRED", "message": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, item{Name: "fresh"})
	})
	c := newClient(t, api, true)

	got, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.Name)
	require.Equal(t, int32(1), api.refresh.Load())
	require.Equal(t, []string{"Bearer access-1", "Bearer access-2"}, api.headers())
	require.True(t, c.manager.IsAuthenticated())
	require.Empty(t, c.navigated.Targets())
}

func TestDispatcher_RetryIsBoundedToOne(t *testing.T) {
	api := newFakeAPI(t)
	var calls atomic.Int32
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "TOKEN_EXPIRED", "message": "expired"})
	})
	c := newClient(t, api, true)

	ctx := nav.WithCurrentPath(context.Background(), "/dashboard")
	_, err := apiclient.Request[item](ctx, c.dispatcher, http.MethodGet, "/api/items", nil)
	require.ErrorIs(t, err, werrors.ErrUnauthenticated)

	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "TOKEN_EXPIRED", apiErr.Code)

	require.Equal(t, int32(1), api.refresh.Load(), "exactly one refresh")
	require.Equal(t, int32(2), calls.Load(), "original request plus exactly one retry")
	require.False(t, c.manager.IsAuthenticated())
	require.Equal(t, []string{"/login?next=%2Fdashboard"}, c.navigated.Targets())
}

func TestDispatcher_RefreshFailureSignsOut(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshStatus = http.StatusUnauthorized
	var calls atomic.Int32
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newClient(t, api, true)

	_, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
	require.ErrorIs(t, err, werrors.ErrUnauthenticated)
	require.Equal(t, int32(1), api.refresh.Load())
	require.Equal(t, int32(1), calls.Load())
	require.False(t, c.manager.IsAuthenticated())
	require.Equal(t, []string{"/login"}, c.navigated.Targets())
}

func TestDispatcher_NoRefreshTokenSignsOut(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newClient(t, api, false)

	_, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
	require.ErrorIs(t, err, werrors.ErrUnauthenticated)
	require.Equal(t, int32(0), api.refresh.Load())
	require.Equal(t, []string{"/login"}, c.navigated.Targets())
}

func TestDispatcher_UnauthenticatedCallDoesNotRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/auth/exchange", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "CODE_INVALID", "message": "bad code"})
	})
	c := newClient(t, api, true)

	_, err := apiclient.NewAuthAPI(c.dispatcher).Exchange(context.Background(), "code")
	require.ErrorIs(t, err, werrors.ErrUnauthenticated)
	require.Equal(t, int32(0), api.refresh.Load())
	require.True(t, c.manager.IsAuthenticated())
	require.Empty(t, c.navigated.Targets())
}

func TestDispatcher_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshDelay = 100 * time.Millisecond
	var gate sync.WaitGroup
	const callers = 4
	gate.Add(callers)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer access-1" {
			// hold every stale request until all of them have arrived
			gate.Done()
			gate.Wait()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, item{Name: "ok"})
	})
	c := newClient(t, api, true)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), api.refresh.Load())
}

func TestDispatcher_ErrorNormalisation(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
		code     string
	}{
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error_code":"RATE_LIMITED","message":"slow down","request_id":"req-1"}`,
			sentinel: werrors.ErrRateLimited,
			message:  apiclient.MessageRateLimited,
			code:     "RATE_LIMITED",
		},
		{
			name:     "server error without body",
			status:   http.StatusBadGateway,
			sentinel: werrors.ErrTransient,
			message:  apiclient.MessageTransient,
		},
		{
			name:     "validation envelope",
			status:   http.StatusUnprocessableEntity,
			body:     `{"error_code":"VALIDATION_ERROR","message":"mission_statement is required","details":{"field":"mission_statement"}}`,
			sentinel: werrors.ErrValidation,
			message:  "mission_statement is required",
			code:     "VALIDATION_ERROR",
		},
		{
			name:     "not found html body",
			status:   http.StatusNotFound,
			body:     `<html>nope</html>`,
			sentinel: werrors.ErrNotFound,
			message:  apiclient.MessageGeneric,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"error_code":"OPPORTUNITY_CLOSED","message":"closed"}`,
			sentinel: werrors.ErrForbidden,
			message:  "closed",
			code:     "OPPORTUNITY_CLOSED",
		},
		{
			name:     "conflict",
			status:   http.StatusConflict,
			body:     `{"error_code":"PROFILE_INCOMPLETE","message":"complete your profile"}`,
			sentinel: werrors.ErrConflict,
			message:  "complete your profile",
			code:     "PROFILE_INCOMPLETE",
		},
		{
			name:     "other client error",
			status:   http.StatusPaymentRequired,
			body:     `{}`,
			sentinel: werrors.ErrRequestFailed,
			message:  apiclient.MessageGeneric,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newClient(t, api, true)

			_, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
			require.ErrorIs(t, err, tt.sentinel)
			apiErr, ok := apiclient.AsError(err)
			require.True(t, ok)
			require.Equal(t, tt.status, apiErr.Status)
			require.Equal(t, tt.message, apiErr.Message)
			require.Equal(t, tt.code, apiErr.Code)
			require.Equal(t, int32(0), api.refresh.Load())
		})
	}
}

func TestDispatcher_RequestIDAndDetails(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error_code": "VALIDATION_ERROR",
			"message":    "invalid",
			"request_id": "req-42",
			"details":    map[string]any{"field": "email"},
		})
	})
	c := newClient(t, api, true)

	err := c.dispatcher.Do(context.Background(), http.MethodGet, "/api/items", nil, nil)
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, "req-42", apiErr.RequestID)
	require.Equal(t, "email", apiErr.Details["field"])
	require.Contains(t, apiErr.Error(), "VALIDATION_ERROR")
}

func TestDispatcher_NoContent(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("DELETE /api/items/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newClient(t, api, true)

	got, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodDelete, "/api/items/1", nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDispatcher_ContractViolation(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name": `))
	})
	c := newClient(t, api, true)

	_, err := apiclient.Request[item](context.Background(), c.dispatcher, http.MethodGet, "/api/items", nil)
	require.ErrorIs(t, err, werrors.ErrContractViolation)
	apiErr, _ := apiclient.AsError(err)
	require.True(t, strings.Contains(apiErr.Message, "unexpected response shape"))
}

func TestDispatcher_NotConfigured(t *testing.T) {
	d := apiclient.NewDispatcher("", nil)
	err := d.Do(context.Background(), http.MethodGet, "/api/items", nil, nil)
	require.ErrorIs(t, err, werrors.ErrNotConfigured)
}

func TestDispatcher_TransportErrorIsNotAPIError(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /api/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := newClient(t, api, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.dispatcher.Do(ctx, http.MethodGet, "/api/slow", nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, isAPIErr := apiclient.AsError(err)
	require.False(t, isAPIErr)
}
