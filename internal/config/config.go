// Package config loads relay configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvAddr            = "RELAY_ADDR"
	EnvDBPath          = "RELAY_DB_PATH"
	EnvSessionTTLHours = "RELAY_SESSION_TTL_HOURS"
	EnvRetentionDays   = "RELAY_RETENTION_DAYS"
	EnvMaxBodyBytes    = "RELAY_MAX_BODY_BYTES"
	EnvReadTimeoutSec  = "RELAY_READ_TIMEOUT_SEC"
	EnvWriteTimeoutSec = "RELAY_WRITE_TIMEOUT_SEC"
	EnvIdleTimeoutSec  = "RELAY_IDLE_TIMEOUT_SEC"
)

// Config holds runtime configuration for the relay server.
type Config struct {
	Addr            string
	DBPath          string
	SessionTTL      time.Duration
	Retention       time.Duration // zero disables event pruning
	MaxBodyBytes    int64
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

// LoadFromEnv loads and validates configuration from environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOrDefault(EnvAddr, ":8080"),
		DBPath:          envOrDefault(EnvDBPath, "relay.db"),
		SessionTTL:      time.Duration(intEnvOrDefault(EnvSessionTTLHours, 168)) * time.Hour,
		Retention:       time.Duration(intEnvOrDefault(EnvRetentionDays, 0)) * 24 * time.Hour,
		MaxBodyBytes:    int64(intEnvOrDefault(EnvMaxBodyBytes, 64*1024)),
		ReadTimeoutSec:  intEnvOrDefault(EnvReadTimeoutSec, 15),
		WriteTimeoutSec: intEnvOrDefault(EnvWriteTimeoutSec, 15),
		IdleTimeoutSec:  intEnvOrDefault(EnvIdleTimeoutSec, 60),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvAddr)
	}
	if c.DBPath == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvDBPath)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvSessionTTLHours)
	}
	if c.Retention < 0 {
		return fmt.Errorf("invalid %s: must be >= 0", EnvRetentionDays)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvMaxBodyBytes)
	}
	if c.ReadTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvReadTimeoutSec)
	}
	if c.WriteTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvWriteTimeoutSec)
	}
	if c.IdleTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvIdleTimeoutSec)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
