package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// ClientConfig configures portalctl. Flags override these values.
type ClientConfig struct {
	APIURL            string `env:"PORTAL_API_URL, default=http://localhost:8080/api"`
	SessionFile       string `env:"PORTAL_SESSION_FILE"`
	LogLevel          string `env:"LOG_LEVEL, default=warn"`
	PasswordMinLength int    `env:"PASSWORD_MIN_LENGTH, default=8"`
}

// LoadClient reads the portalctl environment.
func LoadClient(ctx context.Context) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
