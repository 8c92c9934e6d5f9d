package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/grantpilot-workspace/internal/config"
	"github.com/jrsteele09/grantpilot-workspace/server"
	"github.com/jrsteele09/grantpilot-workspace/server/workspaces"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

const (
	opportunityID      = "3f2c8a9e-1b4d-4c6e-9a7b-2d5e8f1a3c4b"
	otherOpportunityID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
)

// fakeGrantPilot is a minimal GrantPilot API.
type fakeGrantPilot struct {
	mu           sync.Mutex
	issued       int
	valid        map[string]bool
	refreshable  map[string]bool
	active       bool
	completeness string
	remaining    int
	calls        map[string]int
	revoked      []string
}

func newFakeGrantPilot() *fakeGrantPilot {
	return &fakeGrantPilot{
		valid:        map[string]bool{},
		refreshable:  map[string]bool{},
		active:       true,
		completeness: "COMPLETE",
		remaining:    3,
		calls:        map[string]int{},
	}
}

func (f *fakeGrantPilot) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeGrantPilot) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeGrantPilot) Revoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// ExpireAccessTokens makes every issued access token answer 401.
func (f *fakeGrantPilot) ExpireAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = map[string]bool{}
}

// RevokeRefreshTokens makes every issued refresh token unusable.
func (f *fakeGrantPilot) RevokeRefreshTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshable = map[string]bool{}
}

func (f *fakeGrantPilot) set(mutate func(f *fakeGrantPilot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f)
}

func (f *fakeGrantPilot) issue(w http.ResponseWriter) {
	f.mu.Lock()
	f.issued++
	access, refresh := fmt.Sprintf("access-%d", f.issued), fmt.Sprintf("refresh-%d", f.issued)
	f.valid[access] = true
	f.refreshable[refresh] = true
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    900,
		"user":          map[string]any{"id": "user-1", "email": "amina@ngo.example", "plan": "FREE"},
	})
}

func (f *fakeGrantPilot) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	ok := f.valid[token]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "TOKEN_EXPIRED", "message": "expired"})
	}
	return ok
}

func (f *fakeGrantPilot) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/exchange", func(w http.ResponseWriter, r *http.Request) {
		f.count("exchange")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["code"] != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "CODE_INVALID", "message": "bad code"})
			return
		}
		f.issue(w)
	})
	mux.HandleFunc("POST /api/auth/magic-link/consume", func(w http.ResponseWriter, r *http.Request) {
		f.count("consume")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "good-token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "MAGIC_TOKEN_EXPIRED", "message": "expired"})
			return
		}
		f.issue(w)
	})
	mux.HandleFunc("POST /api/auth/magic-link/request", func(w http.ResponseWriter, r *http.Request) {
		f.count("magic-request")
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	})
	mux.HandleFunc("GET /api/auth/google/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"authorization_url": "https://accounts.example/o/auth?client_id=gp", "state": "s"})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.count("refresh")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		ok := f.refreshable[body["refresh_token"]]
		delete(f.refreshable, body["refresh_token"])
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "REFRESH_INVALID", "message": "invalid"})
			return
		}
		f.issue(w)
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.revoked = append(f.revoked, body["refresh_token"])
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/funding-opportunities/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.count("opportunity")
		if !f.authorized(w, r) {
			return
		}
		if r.PathValue("id") != opportunityID {
			writeJSON(w, http.StatusNotFound, map[string]string{"error_code": "OPPORTUNITY_NOT_FOUND", "message": "not found"})
			return
		}
		f.mu.Lock()
		active := f.active
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"funding_opportunity": map[string]any{
			"id": opportunityID, "title": "Clean Water Access", "donor_organization": "Water Futures", "is_active": active,
		}})
	})
	mux.HandleFunc("GET /api/ngo-profile/completeness", func(w http.ResponseWriter, r *http.Request) {
		f.count("completeness")
		if !f.authorized(w, r) {
			return
		}
		f.mu.Lock()
		status := f.completeness
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": status})
	})
	mux.HandleFunc("GET /api/me/entitlements", func(w http.ResponseWriter, r *http.Request) {
		f.count("entitlements")
		if !f.authorized(w, r) {
			return
		}
		f.mu.Lock()
		remaining := f.remaining
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"plan":         "FREE",
			"entitlements": map[string]any{"fit_scans": map[string]any{"remaining": remaining, "reset_at": nil}},
		})
	})
	mux.HandleFunc("POST /api/fit-scans", func(w http.ResponseWriter, r *http.Request) {
		f.count("create")
		if !f.authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"fit_scan": map[string]any{"id": "scan-1"}})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

type testEnv struct {
	api    *fakeGrantPilot
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := newFakeGrantPilot()
	apiServer := httptest.NewServer(api.Handler())
	t.Cleanup(apiServer.Close)

	cfg, err := config.Load(context.Background(), envconfig.MapLookuper(map[string]string{
		"GRANTPILOT_API_BASE_URL":  apiServer.URL,
		"GRANTPILOT_ENV":           "TEST",
		"GRANTPILOT_COOKIE_SECRET": "test-secret",
	}))
	require.NoError(t, err)

	repo := workspaces.NewInMemoryRepo(workspaces.NewFactory(cfg.GetAPIBaseURL()), cfg.GetWorkspaceIdleTimeout())
	s, err := server.New(cfg, repo)
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &testEnv{api: api, server: srv}
}

func (e *testEnv) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: e.server.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// redirect asserts a 303 and returns its Location.
func (b *browser) redirect(resp *http.Response) string {
	b.t.Helper()
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	return resp.Header.Get("Location")
}

func (b *browser) login() {
	b.t.Helper()
	require.Equal(b.t, "/dashboard", b.redirect(b.get("/auth/callback?code=good-code")))
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func startPath(id string) string {
	return "/start?opportunity_id=" + url.QueryEscape(id)
}

func loginRedirectFor(path string) string {
	return "/login?next=" + url.QueryEscape(path)
}
