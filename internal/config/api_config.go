package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
}

type API struct {
	BaseURL        string        `env:"API_BASE_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=60s"`
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the GrantPilot API origin without a trailing slash.
// An empty value is allowed here; the dispatcher refuses to issue requests
// until it is set.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.RequestTimeout
}
