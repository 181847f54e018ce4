package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Port        string `envconfig:"PORT" default:"8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DevMode     bool   `envconfig:"DEV_MODE" default:"false"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	RealtimeMinReconnect time.Duration `envconfig:"REALTIME_MIN_RECONNECT" default:"1s"`
	RealtimeMaxReconnect time.Duration `envconfig:"REALTIME_MAX_RECONNECT" default:"30s"`
	RateLimitPerMinute   int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// DeviceDir is where the CLI keeps its device-local submission records
	DeviceDir string `envconfig:"DEVICE_DIR" default:".vcf-device"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres store")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.RealtimeMinReconnect <= 0 || cfg.RealtimeMaxReconnect < cfg.RealtimeMinReconnect {
		return nil, fmt.Errorf("REALTIME_MAX_RECONNECT must be >= REALTIME_MIN_RECONNECT > 0")
	}
	if cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}

	return &cfg, nil
}

// JoinURL is the public link participants open to submit a contact
func (c *Config) JoinURL(sessionID string) string {
	return c.BaseURL + "/join/" + sessionID
}

// DownloadURL is the public link for the compiled contact file
func (c *Config) DownloadURL(sessionID string) string {
	return c.BaseURL + "/download/" + sessionID
}
