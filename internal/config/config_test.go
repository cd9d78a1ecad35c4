package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml or .env here
	t.Setenv("SNIPPETS_AUTH_JWT_SECRET", "test-secret-at-least-16-chars!!")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.ExternalURL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "data/snippets.db", cfg.Database.Path)
	// cookie secret falls back to the JWT secret
	assert.Equal(t, cfg.Auth.JWTSecret, cfg.Auth.CookieSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SNIPPETS_SERVER_PORT", "9090")
	t.Setenv("SNIPPETS_SERVER_EXTERNAL_URL", "https://snippets.example.com/")
	t.Setenv("SNIPPETS_AUTH_JWT_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("SNIPPETS_AUTH_GOOGLE_CLIENT_ID", "google-id")
	t.Setenv("SNIPPETS_AUTH_ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://snippets.example.com", cfg.Server.ExternalURL)
	assert.Equal(t, "google-id", cfg.Auth.GoogleClientID)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "x.db"},
		Auth:     AuthConfig{JWTSecret: "short"},
	}
	assert.Error(t, cfg.Validate())
}

func TestLoadClient(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SNIPPETS_API_URL", "http://api.local:8080/")

	v := NewClientViper()
	cfg, err := LoadClient(v)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local:8080", cfg.APIURL)
	assert.Equal(t, 54321, cfg.CallbackPort)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.NotEmpty(t, cfg.SessionFile)
}
