package config

import (
	"errors"
	"os"
	"strings"
)

const defaultSessionSecret = "change-me-in-production"

type Config struct {
	DatabaseURL   string
	SessionSecret string
	Port          string
	Environment   string
	Debug         bool
}

func Load() *Config {
	return &Config{
		DatabaseURL:   getEnv("DATABASE_URL", "./data/blog.db"),
		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENV", "development"),
		Debug:         getEnv("DEBUG", "false") == "true",
	}
}

// Driver returns the database/sql driver name matching DatabaseURL.
func (c *Config) Driver() string {
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.IsProduction() && c.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if len(c.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 bytes")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
