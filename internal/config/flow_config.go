package config

import "time"

type FlowConfig interface {
	GetFitScanTimeout() time.Duration
}

type Flow struct {
	FitScanTimeout time.Duration `env:"FIT_SCAN_TIMEOUT, default=30s"`
}

var _ FlowConfig = Flow{}

func (f Flow) GetFitScanTimeout() time.Duration {
	return f.FitScanTimeout
}
