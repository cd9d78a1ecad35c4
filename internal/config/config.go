// Package config loads configuration for the platform server and the
// terminal client.
//
// Values come from (lowest to highest precedence): defaults, an optional
// config.yaml, a .env file, and SNIPPETS_* environment variables. Nested keys
// map to env vars with "." replaced by "_", e.g. auth.jwt_secret is
// SNIPPETS_AUTH_JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by this package.
const EnvPrefix = "SNIPPETS"

// Config holds platform server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ExternalURL     string        `mapstructure:"external_url"` // public base URL, used for provider callbacks
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds token and OAuth configuration.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	CookieSecret       string        `mapstructure:"cookie_secret"`
	AllowedRedirects   []string      `mapstructure:"allowed_redirects"`
	GitHubClientID     string        `mapstructure:"github_client_id"`
	GitHubClientSecret string        `mapstructure:"github_client_secret"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	return nil
}

// Load reads the platform configuration.
func Load() (*Config, error) {
	v := newViper()
	setServerDefaults(v)

	// viper only maps env vars for keys it already knows about, and secrets
	// have no defaults.
	for _, key := range []string{
		"auth.jwt_secret",
		"auth.cookie_secret",
		"auth.github_client_id",
		"auth.github_client_secret",
		"auth.google_client_id",
		"auth.google_client_secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Auth.CookieSecret == "" {
		cfg.Auth.CookieSecret = cfg.Auth.JWTSecret
	}
	if cfg.Server.ExternalURL == "" {
		cfg.Server.ExternalURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Server.ExternalURL = strings.TrimRight(cfg.Server.ExternalURL, "/")
	return &cfg, nil
}

// ClientConfig holds terminal client configuration.
type ClientConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	SessionFile  string        `mapstructure:"session_file"`
	CallbackPort int           `mapstructure:"callback_port"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	LogFile      string        `mapstructure:"log_file"`
}

// NewClientViper returns a viper instance with client defaults, so cobra flags
// can be bound to it before LoadClient is called.
func NewClientViper() *viper.Viper {
	v := newViper()
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("callback_port", 54321)
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("log_file", "")
	return v
}

// LoadClient reads the client configuration from v.
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal client: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.APIURL == "" {
		return nil, errors.New("config: api_url is required")
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: reading config file: %w", err)
		}
	}
	return nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.external_url", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.path", "data/snippets.db")

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "720h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.allowed_redirects", []string{})
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".snippets-session.json"
	}
	return filepath.Join(dir, "snippet-vault", "session.json")
}
