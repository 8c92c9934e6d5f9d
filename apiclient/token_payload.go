package apiclient

import (
	"errors"
	"time"
)

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree   Plan = "FREE"
	PlanGrowth Plan = "GROWTH"
	PlanImpact Plan = "IMPACT"
)

// User is the profile returned alongside a token pair.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Plan     Plan   `json:"plan"`
}

// TokenPayload is returned by every login and refresh exchange.
type TokenPayload struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>". Short lived.
	AccessToken string `json:"access_token"`

	// RefreshToken obtains a new pair from /api/auth/refresh. It may rotate on
	// every use.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer" in practice.
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds. It is a hint only;
	// an expired token is detected by the API answering 401.
	ExpiresIn int `json:"expires_in"`

	// User is present on login exchanges and may be absent on refresh.
	User *User `json:"user,omitempty"`
}

// Validate rejects payloads that cannot establish a session.
func (p *TokenPayload) Validate() error {
	if p.AccessToken == "" {
		return errors.New("missing access_token")
	}
	if p.RefreshToken == "" {
		return errors.New("missing refresh_token")
	}
	if p.User != nil && p.User.ID == "" {
		return errors.New("user without id")
	}
	return nil
}

// Expiry converts ExpiresIn into an absolute time. Zero when unknown.
func (p *TokenPayload) Expiry(now time.Time) time.Time {
	if p.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(p.ExpiresIn) * time.Second)
}
