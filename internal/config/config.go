// Package config loads listify's settings from a TOML file, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config is the full application configuration.
type Config struct {
	Env       string          `toml:"env"`
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	CORS      CORSConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
	Spotify   SpotifyConfig   `toml:"spotify"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver        string `toml:"driver"`
	URL           string `toml:"url"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	MaxConns      int    `toml:"max_conns"`
}

// AuthConfig contains token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `toml:"jwt_secret"`
	TokenTTL   time.Duration `toml:"token_ttl"`
	BcryptCost int           `toml:"bcrypt_cost"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins    []string `toml:"allowed_origins"`
	ProductionOrigins []string `toml:"production_origins"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Requests int           `toml:"requests"`
	Window   time.Duration `toml:"window"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SpotifyConfig contains Spotify app credentials for catalog search.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Enabled reports whether both credentials are set.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Origins returns the CORS origins for the current environment.
func (c *Config) Origins() []string {
	if c.IsProduction() {
		return c.CORS.ProductionOrigins
	}
	return c.CORS.AllowedOrigins
}

// Default returns a Config with the defaults from the embedded example config.
func Default() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load starts from the defaults, overlays the TOML file at path if it exists,
// then loads .env from the working directory and applies environment overrides.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("APP_ENV", &c.Env)
	str("HOST", &c.Server.Host)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("MONGO_URI", &c.Database.MongoURI)
	str("MONGO_DATABASE", &c.Database.MongoDatabase)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("SPOTIFY_ID", &c.Spotify.ClientID)
	str("SPOTIFY_SECRET", &c.Spotify.ClientSecret)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if c.IsProduction() {
			c.CORS.ProductionOrigins = origins
		} else {
			c.CORS.AllowedOrigins = origins
		}
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("database.url is required for driver %q", c.Database.Driver))
		}
	case DriverMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("database.mongo_uri is required for driver \"mongo\""))
		}
		if c.Database.MongoDatabase == "" {
			errs = append(errs, errors.New("database.mongo_database is required for driver \"mongo\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q (want postgres, sqlite or mongo)", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required (set JWT_SECRET)"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

// CreateConfigFile writes the example config to path. It refuses to overwrite.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
