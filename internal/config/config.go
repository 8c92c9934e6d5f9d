package config

import (
	"context"
	"fmt"

	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/sethvargo/go-envconfig"
)

const envPrefix = "GRANTPILOT_"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	FlowConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Flow
}

var _ Config = (*mainConfig)(nil)

// New loads the configuration from the process environment.
func New(ctx context.Context) (Config, error) {
	return Load(ctx, envconfig.OsLookuper())
}

// Load resolves the configuration with the given lookuper. All keys carry the
// GRANTPILOT_ prefix.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("[config Load] %s: %w", envPrefix, err)
	}
	if cfg.GetEnv() != "DEV" && cfg.CookieSecret == DevCookieSecret {
		return nil, fmt.Errorf("[config Load] %sCOOKIE_SECRET must be set outside DEV: %w", envPrefix, werrors.ErrNotConfigured)
	}
	return &cfg, nil
}
