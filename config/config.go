// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/warp/treasury-engine/budget"
)

// Server is the treasury server configuration. Command-line flags override
// these values in cmd/server.
type Server struct {
	Port        int           `env:"TREASURY_PORT"         envDefault:"8080"`
	DB          string        `env:"TREASURY_DB"           envDefault:"./data/treasury.db"`
	Tick        time.Duration `env:"TREASURY_TICK"         envDefault:"1s"`
	TimeScale   float64       `env:"TREASURY_TIME_SCALE"   envDefault:"1"`
	Autosave    string        `env:"TREASURY_AUTOSAVE"     envDefault:"@every 5m"`
	EconomyFile string        `env:"TREASURY_ECONOMY_FILE" envDefault:"economy.toml"`
	LogLevel    string        `env:"TREASURY_LOG_LEVEL"    envDefault:"info"`
	Mode        string        `env:"TREASURY_MODE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses and validates the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that env tags cannot express.
func (c Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive: %s", c.Tick)
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time scale must be positive: %v", c.TimeScale)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Mode != "" {
		if _, err := budget.ParseMode(c.Mode); err != nil {
			return err
		}
	}
	return nil
}

// Level is the parsed log level; Validate has already checked it.
func (c Server) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
