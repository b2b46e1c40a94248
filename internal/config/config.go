// internal/config/config.go
//
// Application configuration for the Worlde server.
// All values come from environment variables (optionally via a .env file
// loaded in main) and are parsed into the Config struct with caarlos0/env.

package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds every tunable of the server process.
type Config struct {
	// Server
	Port         string `env:"PORT" envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	// Auth
	JWTSecret     string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiryDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName    string `env:"COOKIE_NAME" envDefault:"worlde_token"`
	Production    bool   `env:"PRODUCTION" envDefault:"false"`

	// Profile persistence. Backend is "sqlite" (default) or "redis".
	ProfileBackend string `env:"PROFILE_BACKEND" envDefault:"sqlite"`
	DBPath         string `env:"DB_PATH" envDefault:"./data/worlde.db"`
	RedisHost      string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`

	// Gameplay
	WordBankFile  string        `env:"WORD_BANK_FILE"`
	SyncDebounce  time.Duration `env:"SYNC_DEBOUNCE" envDefault:"600ms"`
	BonusProvider string        `env:"BONUS_PROVIDER" envDefault:"google"`
	BonusCoins    int           `env:"BONUS_COINS" envDefault:"100"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if c.ProfileBackend != "sqlite" && c.ProfileBackend != "redis" {
		return errors.New("config: PROFILE_BACKEND must be sqlite or redis")
	}
	if c.SyncDebounce <= 0 {
		return errors.New("config: SYNC_DEBOUNCE must be positive")
	}
	if c.Production && c.JWTSecret == "dev_secret_change_me" {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	return nil
}
