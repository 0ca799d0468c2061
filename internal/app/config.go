package app

import (
	"errors"

	"github.com/specialistvlad/facerig/internal/orchestrator"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPath is an optional HCL settings file.
	ConfigPath string
	Request    orchestrator.Request

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if err := cfg.Request.Validate(); err != nil {
		return nil, err
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, errors.New("healthcheck port must be between 0 and 65535")
	}
	return &cfg, nil
}
