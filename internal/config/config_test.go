package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		config := Default()

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected driver sqlite, got %s", config.Database.Driver)
		}
		if config.Auth.TokenTTL != 7*24*time.Hour {
			t.Errorf("expected token ttl 168h, got %s", config.Auth.TokenTTL)
		}
		if config.Auth.BcryptCost != 12 {
			t.Errorf("expected bcrypt cost 12, got %d", config.Auth.BcryptCost)
		}
		if config.RateLimit.Requests != 100 || config.RateLimit.Window != 15*time.Minute {
			t.Errorf("expected 100 requests per 15m, got %d per %s", config.RateLimit.Requests, config.RateLimit.Window)
		}
		if config.Server.ShutdownTimeout != 10*time.Second {
			t.Errorf("expected shutdown timeout 10s, got %s", config.Server.ShutdownTimeout)
		}
		if config.Spotify.Enabled() {
			t.Error("spotify should be disabled by default")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}
		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}
		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadOverlaysFile", func(t *testing.T) {
		for _, key := range []string{"PORT", "DATABASE_DRIVER", "DATABASE_URL"} {
			t.Setenv(key, "")
		}
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[server]
port = 8080

[database]
driver = "postgres"
url = "postgres://localhost/listify"

[rate_limit]
window = "1m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := Load(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected driver postgres, got %s", config.Database.Driver)
		}
		if config.RateLimit.Window != time.Minute {
			t.Errorf("expected window 1m, got %s", config.RateLimit.Window)
		}
		if config.RateLimit.Requests != 100 {
			t.Errorf("unset keys should keep defaults, got %d requests", config.RateLimit.Requests)
		}
	})

	t.Run("LoadMissingFileUsesDefaults", func(t *testing.T) {
		config, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Server.Host != Default().Server.Host {
			t.Errorf("expected default host, got %s", config.Server.Host)
		}
	})

	t.Run("LoadRejectsBadTOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := Load(configPath); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "9000",
		"DATABASE_DRIVER": "mongo",
		"MONGO_URI":       "mongodb://db:27017",
		"JWT_SECRET":      "s3cret",
		"CORS_ORIGINS":    "https://a.example, https://b.example,",
		"SPOTIFY_ID":      "id",
		"SPOTIFY_SECRET":  "secret",
		"LOG_LEVEL":       "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	config := Default()
	if err := config.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	if config.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", config.Server.Port)
	}
	if config.Database.Driver != DriverMongo || config.Database.MongoURI != "mongodb://db:27017" {
		t.Errorf("Database = %+v", config.Database)
	}
	if config.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", config.Auth.JWTSecret)
	}
	if got := strings.Join(config.Origins(), " "); got != "https://a.example https://b.example" {
		t.Errorf("Origins() = %q", got)
	}
	if config.Log.Level != "info" {
		t.Errorf("empty LOG_LEVEL should not override, got %q", config.Log.Level)
	}
	if !config.Spotify.Enabled() {
		t.Error("spotify should be enabled")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	env["PORT"] = "eighty"
	if err := Default().applyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestOrigins_Production(t *testing.T) {
	config := Default()
	config.Env = "production"

	if got := config.Origins(); len(got) != 1 || got[0] != "https://listify-iota.vercel.app" {
		t.Errorf("Origins() = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unknown database driver"},
		{"sqlite without path", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"mongo without uri", func(c *Config) { c.Database.Driver = DriverMongo; c.Database.MongoURI = "" }, "mongo_uri"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero rate", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			config.Auth.JWTSecret = "secret"
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
