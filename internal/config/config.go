package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the system-wide settings tree. Precedence is environment
// (including a local .env file) over defaults.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// DefaultConfig returns working defaults for everything except the JWT
// secret, which has no safe default and must come from the environment.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path: "./data/chatwire.db",
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
		},
		Auth: &AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Load reads configuration from the environment, consulting a .env file
// first when one exists.
func Load() *Config {
	// A missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.Database.Path = getEnv("CHATWIRE_DATABASE_PATH", cfg.Database.Path)
	cfg.HTTP.Host = getEnv("CHATWIRE_HTTP_HOST", cfg.HTTP.Host)
	cfg.HTTP.Port = getEnvAsInt("CHATWIRE_HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.ReadTimeout = getEnvAsDuration("CHATWIRE_HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = getEnvAsDuration("CHATWIRE_HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.WebSocket.PingInterval = getEnvAsDuration("CHATWIRE_WEBSOCKET_PING_INTERVAL", cfg.WebSocket.PingInterval)
	cfg.WebSocket.ReadTimeout = getEnvAsDuration("CHATWIRE_WEBSOCKET_READ_TIMEOUT", cfg.WebSocket.ReadTimeout)
	cfg.Auth.JWTSecret = getEnv("CHATWIRE_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvAsDuration("CHATWIRE_TOKEN_TTL", cfg.Auth.TokenTTL)

	return cfg
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set CHATWIRE_JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
