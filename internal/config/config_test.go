package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("defaults must not validate without a JWT secret")
	}

	cfg.Auth.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with a secret should validate: %v", err)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHATWIRE_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("CHATWIRE_HTTP_PORT", "9999")
	t.Setenv("CHATWIRE_HTTP_READ_TIMEOUT", "45s")
	t.Setenv("CHATWIRE_WEBSOCKET_PING_INTERVAL", "10s")
	t.Setenv("CHATWIRE_WEBSOCKET_READ_TIMEOUT", "25s")
	t.Setenv("CHATWIRE_JWT_SECRET", "from-env")
	t.Setenv("CHATWIRE_TOKEN_TTL", "2h")

	cfg := Load()

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("database path not overridden: %q", cfg.Database.Path)
	}
	if cfg.HTTP.Port != 9999 {
		t.Errorf("port not overridden: %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("read timeout not overridden: %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.WebSocket.PingInterval != 10*time.Second || cfg.WebSocket.ReadTimeout != 25*time.Second {
		t.Errorf("websocket timings not overridden: %+v", cfg.WebSocket)
	}
	if cfg.Auth.JWTSecret != "from-env" || cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("auth settings not overridden: ttl=%v", cfg.Auth.TokenTTL)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHATWIRE_HTTP_PORT", "not-a-number")
	t.Setenv("CHATWIRE_TOKEN_TTL", "soon")

	cfg := Load()
	if cfg.HTTP.Port != DefaultConfig().HTTP.Port {
		t.Errorf("malformed port should keep the default, got %d", cfg.HTTP.Port)
	}
	if cfg.Auth.TokenTTL != DefaultConfig().Auth.TokenTTL {
		t.Errorf("malformed TTL should keep the default, got %v", cfg.Auth.TokenTTL)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"read timeout not past ping", func(c *Config) {
			c.WebSocket.PingInterval = 30 * time.Second
			c.WebSocket.ReadTimeout = 30 * time.Second
		}},
		{"zero token TTL", func(c *Config) { c.Auth.TokenTTL = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}
