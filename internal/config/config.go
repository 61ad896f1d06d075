// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// MinSessionSecretLength is the minimum required length for the session
// secret, which keys the cross-site request protection layer.
const MinSessionSecretLength = 32

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	DBPath        string `env:"PAEFI_DB_PATH" envDefault:"./data/paefi.db"`
	SessionSecret string `env:"PAEFI_SESSION_SECRET,required"`
	ServerHost    string `env:"PAEFI_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"PAEFI_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"PAEFI_ENV" envDefault:"development"`
	LogLevel      string `env:"PAEFI_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL    string `env:"PAEFI_REDIS_URL"`                     // Optional Redis URL for the dashboard cache
	CachePrefix string `env:"PAEFI_CACHE_PREFIX" envDefault:"paefi:"` // Redis key prefix
	CacheTTL    int    `env:"PAEFI_CACHE_TTL" envDefault:"60"`     // Dashboard cache TTL in seconds

	// Audit log retention in days; older entries are purged nightly.
	AuditRetentionDays int `env:"PAEFI_AUDIT_RETENTION_DAYS" envDefault:"730"`

	// Seeding configuration
	DoSeed bool `env:"PAEFI_DO_SEED" envDefault:"false"` // Enable demo data seeding
}

// IsDevelopment returns true if the application is running in development
// mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("PAEFI_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("PAEFI_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if cfg.AuditRetentionDays < 1 {
		return nil, fmt.Errorf("PAEFI_AUDIT_RETENTION_DAYS must be positive, got %d", cfg.AuditRetentionDays)
	}

	if !strings.EqualFold(cfg.Env, "development") && !strings.EqualFold(cfg.Env, "production") {
		return nil, fmt.Errorf("PAEFI_ENV must be development or production, got %q", cfg.Env)
	}

	return cfg, nil
}
