// Package session owns the signed-in user's credentials for one browser
// workspace and coordinates token refresh.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Exchanger performs the unauthenticated token calls.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*apiclient.TokenPayload, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// credentials are always replaced as a whole.
type credentials struct {
	accessToken  string
	refreshToken string
	tokenType    string
	expiry       time.Time
	user         *apiclient.User
}

// Manager is Unauthenticated until LoginWithTokens and returns to it on
// logout or an unrecoverable refresh failure.
type Manager struct {
	exchanger Exchanger
	navigator nav.Navigator
	nowTime   func() time.Time

	mu    sync.RWMutex
	creds *credentials

	refreshGroup singleflight.Group
}

var _ apiclient.Session = (*Manager)(nil)

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates an unauthenticated manager.
func NewManager(exchanger Exchanger, navigator nav.Navigator, options ...ManagerOption) *Manager {
	m := &Manager{
		exchanger: exchanger,
		navigator: navigator,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// LoginWithTokens stores a fresh token pair, replacing any previous one. The
// previous user is kept when the payload carries none.
func (m *Manager) LoginWithTokens(payload *apiclient.TokenPayload) error {
	if payload == nil {
		return fmt.Errorf("[Manager LoginWithTokens] nil payload: %w", werrors.ErrInvalidTokenReply)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("[Manager LoginWithTokens] %v: %w", err, werrors.ErrInvalidTokenReply)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(payload)
	return nil
}

func (m *Manager) setLocked(payload *apiclient.TokenPayload) {
	user := payload.User
	if user == nil && m.creds != nil {
		user = m.creds.user
	}
	if user != nil {
		u := *user
		user = &u
	}
	m.creds = &credentials{
		accessToken:  payload.AccessToken,
		refreshToken: payload.RefreshToken,
		tokenType:    payload.TokenType,
		expiry:       payload.Expiry(m.nowTime()),
		user:         user,
	}
}

// IsAuthenticated reports whether a token pair is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *apiclient.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil || m.creds.user == nil {
		return nil
	}
	u := *m.creds.user
	return &u
}

// RefreshToken returns the current refresh token, or "".
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.refreshToken
}

// Token returns the current access token as an oauth2.Token.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil, werrors.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.creds.accessToken,
		TokenType:    m.creds.tokenType,
		RefreshToken: m.creds.refreshToken,
		Expiry:       m.creds.expiry,
	}, nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers share
// a single exchange. Any failure, including a missing refresh token, clears
// the session and navigates to login with the current path as next.
func (m *Manager) Refresh(ctx context.Context) error {
	refreshToken := m.RefreshToken()
	if refreshToken == "" {
		m.ForceLogin(ctx)
		return fmt.Errorf("[Manager Refresh] %w", werrors.ErrNoRefreshToken)
	}

	// Keyed by the token being spent: a caller that arrives after a completed
	// rotation sees the new token and starts its own exchange.
	result, err, shared := m.refreshGroup.Do(refreshToken, func() (any, error) {
		return m.exchanger.Refresh(context.WithoutCancel(ctx), refreshToken)
	})
	if shared {
		log.Debug().Msg("Joined in-flight token refresh")
	}

	var payload *apiclient.TokenPayload
	if err == nil {
		payload, _ = result.(*apiclient.TokenPayload)
		if payload == nil || payload.Validate() != nil {
			err = werrors.ErrInvalidTokenReply
		}
	}
	if err != nil {
		log.Err(err).Msg("Token refresh failed, signing out")
		if m.signOutIf(refreshToken) {
			m.navigator.Navigate(ctx, nav.LoginURL(nav.CurrentPath(ctx)))
		}
		return fmt.Errorf("[Manager Refresh] %w: %w", werrors.ErrRefreshRejected, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A logout or a newer login while the exchange was in flight wins.
	if m.creds == nil || m.creds.refreshToken != refreshToken {
		if m.creds == nil {
			return fmt.Errorf("[Manager Refresh] signed out during refresh: %w", werrors.ErrNotAuthenticated)
		}
		return nil
	}
	m.setLocked(payload)
	return nil
}

// ForceLogin clears the session and navigates to login, returning to the
// current path afterwards.
func (m *Manager) ForceLogin(ctx context.Context) {
	m.clear()
	m.navigator.Navigate(ctx, nav.LoginURL(nav.CurrentPath(ctx)))
}

// Logout revokes the refresh token best-effort, clears the session and
// navigates to the login page. It always completes locally.
func (m *Manager) Logout(ctx context.Context) {
	if refreshToken := m.RefreshToken(); refreshToken != "" {
		if err := m.exchanger.Revoke(ctx, refreshToken); err != nil {
			log.Warn().Err(err).Msg("Logout: token revocation failed")
		}
	}
	m.clear()
	m.navigator.Navigate(ctx, nav.LoginPath)
}

func (m *Manager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
}

// signOutIf clears the session only if it still holds refreshToken, so a
// failed exchange of an old token cannot sign out a newer login. It reports
// whether the session ends up unauthenticated.
func (m *Manager) signOutIf(refreshToken string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds != nil && m.creds.refreshToken == refreshToken {
		m.creds = nil
	}
	return m.creds == nil
}
