package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port    string `env:"PORT, default=8080"`
	AppName string `env:"APP_NAME, default=GrantPilot"`
	Env     string `env:"ENV, default=DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}
