package config

import (
	"crypto/sha256"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DevCookieSecret is the fallback COOKIE_SECRET. It is only accepted in DEV.
const DevCookieSecret = "dev-only-cookie-secret-change-me"

type SessionConfig interface {
	GetCookieKeys() (hashKey, blockKey []byte, err error)
	GetSecureCookies() bool
	GetWorkspaceIdleTimeout() time.Duration
	GetMaxWorkspaces() int
}

type Session struct {
	CookieSecret         string        `env:"COOKIE_SECRET, default=dev-only-cookie-secret-change-me"`
	SecureCookies        bool          `env:"SECURE_COOKIES, default=false"`
	WorkspaceIdleTimeout time.Duration `env:"WORKSPACE_IDLE_TIMEOUT, default=30m"`
	MaxWorkspaces        int           `env:"MAX_WORKSPACES, default=10000"`
}

var _ SessionConfig = Session{}

// GetCookieKeys derives the securecookie hash (64 bytes) and block (32 bytes)
// keys from the configured secret.
func (s Session) GetCookieKeys() ([]byte, []byte, error) {
	hashKey, err := deriveKey(s.CookieSecret, "grantpilot-cookie-hash", 64)
	if err != nil {
		return nil, nil, err
	}
	blockKey, err := deriveKey(s.CookieSecret, "grantpilot-cookie-block", 32)
	if err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

func (s Session) GetSecureCookies() bool {
	return s.SecureCookies
}

func (s Session) GetWorkspaceIdleTimeout() time.Duration {
	return s.WorkspaceIdleTimeout
}

func (s Session) GetMaxWorkspaces() int {
	return s.MaxWorkspaces
}

func deriveKey(secret, info string, length int) ([]byte, error) {
	key := make([]byte, length)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
