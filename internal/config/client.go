package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Client contains configuration of the command line client.
type Client struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"http://localhost:3001"`
	TokenFile string        `env:"TOKEN_FILE"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
	LogLevel  int           `env:"LOG_LEVEL" envDefault:"4"`
}

// NewClientConfig loads client configuration from SOCIALHUB_* environment variables.
func NewClientConfig() (*Client, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	cfg := Client{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SOCIALHUB_"}); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}

	if cfg.TokenFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.TokenFile = filepath.Join(dir, "socialhub", "token")
	}

	return &cfg, nil
}
