package sessionfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/session"
)

var _ session.Exchanger = (*FakeExchanger)(nil)

// FakeExchanger records token calls. RefreshFunc and RevokeFunc default to
// failing when unset.
type FakeExchanger struct {
	RefreshFunc func(ctx context.Context, refreshToken string) (*apiclient.TokenPayload, error)
	RevokeFunc  func(ctx context.Context, refreshToken string) error

	lock          sync.Mutex
	refreshTokens []string
	revokedTokens []string
}

func (f *FakeExchanger) Refresh(ctx context.Context, refreshToken string) (*apiclient.TokenPayload, error) {
	f.lock.Lock()
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	fn := f.RefreshFunc
	f.lock.Unlock()

	if fn == nil {
		return nil, errors.New("refresh not configured")
	}
	return fn(ctx, refreshToken)
}

func (f *FakeExchanger) Revoke(ctx context.Context, refreshToken string) error {
	f.lock.Lock()
	f.revokedTokens = append(f.revokedTokens, refreshToken)
	fn := f.RevokeFunc
	f.lock.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, refreshToken)
}

// RefreshCalls returns the refresh tokens presented so far.
func (f *FakeExchanger) RefreshCalls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

// RevokeCalls returns the refresh tokens revoked so far.
func (f *FakeExchanger) RevokeCalls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.revokedTokens...)
}

// Payload builds a valid token payload.
func Payload(access, refresh string) *apiclient.TokenPayload {
	return &apiclient.TokenPayload{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    900,
	}
}
