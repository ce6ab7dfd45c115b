package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends accepted by SQUAD_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config captures environment driven configuration values for the squad scheduler service.
type Config struct {
	HTTPPort          int           `env:"SQUAD_HTTP_PORT" envDefault:"8080"`
	Store             string        `env:"SQUAD_STORE" envDefault:"sqlite"`
	SQLiteDSN         string        `env:"SQUAD_SQLITE_DSN" envDefault:"file:squad.db"`
	WizardTimeout     time.Duration `env:"SQUAD_WIZARD_TIMEOUT" envDefault:"60s"`
	SweepInterval     time.Duration `env:"SQUAD_WIZARD_SWEEP_INTERVAL" envDefault:"30s"`
	SessionRetention  time.Duration `env:"SQUAD_SESSION_RETENTION" envDefault:"72h"`
	LogLevel          string        `env:"SQUAD_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"SQUAD_LOG_FORMAT" envDefault:"json"`
	RespondRatePerMin int           `env:"SQUAD_RESPOND_RATE_PER_MINUTE" envDefault:"30"`
	RespondBurst      int           `env:"SQUAD_RESPOND_BURST" envDefault:"5"`
	ShutdownTimeout   time.Duration `env:"SQUAD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration values from the current process environment.
//
// Unparseable values are reported by env. Parsed values outside their
// accepted range are collected and reported together.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.SQLiteDSN = strings.TrimSpace(cfg.SQLiteDSN)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	invalid := make([]string, 0, 4)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "SQUAD_HTTP_PORT")
	}
	switch cfg.Store {
	case StoreSQLite:
		if cfg.SQLiteDSN == "" {
			invalid = append(invalid, "SQUAD_SQLITE_DSN")
		}
	case StoreMemory:
	default:
		invalid = append(invalid, "SQUAD_STORE")
	}
	if cfg.WizardTimeout <= 0 {
		invalid = append(invalid, "SQUAD_WIZARD_TIMEOUT")
	}
	if cfg.SweepInterval <= 0 {
		invalid = append(invalid, "SQUAD_WIZARD_SWEEP_INTERVAL")
	}
	if cfg.SessionRetention <= 0 {
		invalid = append(invalid, "SQUAD_SESSION_RETENTION")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "SQUAD_LOG_LEVEL")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "SQUAD_LOG_FORMAT")
	}
	if cfg.RespondRatePerMin < 0 {
		invalid = append(invalid, "SQUAD_RESPOND_RATE_PER_MINUTE")
	}
	if cfg.RespondBurst <= 0 {
		invalid = append(invalid, "SQUAD_RESPOND_BURST")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, "SQUAD_SHUTDOWN_TIMEOUT")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
