// Package config centralises configuration parsing for the API server.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values for the API server.
type Config struct {
	// DevelopmentMode switches the server to the in-memory store and
	// seeds it with sample data when no database URL is configured.
	DevelopmentMode bool
	Hostname        string
	Port            int
	PostgresURL     string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
}

// Load reads environment variables into Config, applying sensible
// defaults for local dev. A .env file in the working directory is
// honoured when present. Load fails when KOANS_PORT is not a valid
// port number.
func Load() (Config, error) {
	_ = godotenv.Load()

	port, err := parsePort(getEnv("KOANS_PORT", "3000"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		DevelopmentMode: getEnv("KOANS_ENV", "production") == "development",
		Hostname:        getEnv("KOANS_HOSTNAME", "localhost"),
		Port:            port,
		PostgresURL:     getEnv("KOANS_POSTGRES_URL", ""),
		JWTSecret:       getEnv("KOANS_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:       getEnv("KOANS_JWT_ISSUER", "koans.api"),
		JWTAudience:     getEnv("KOANS_JWT_AUDIENCE", "koans.api"),
	}, nil
}

// Address renders the host:port pair the server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", value, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d outside range 1-65535", port)
	}
	return port, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
