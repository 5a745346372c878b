package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("AUTH_STATE_SECRET", testSecret)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Auth.WorkbenchIdle)
	assert.Equal(t, 15, cfg.Maps.Zoom)
	assert.InDelta(t, 51.5074, cfg.Maps.Center().Lat, 1e-9)
	assert.InDelta(t, -0.1278, cfg.Maps.Center().Lng, 1e-9)
	assert.Equal(t, "none", cfg.Vision.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadCustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/db")
	t.Setenv("VISION_BACKEND", "claude")
	t.Setenv("CLAUDE_API_KEY", "sk-test123")
	t.Setenv("BOOTSTRAP_ADMIN_EMAILS", "a@example.com,b@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Store.PostgresDSN)
	assert.Equal(t, "sk-test123", cfg.Vision.ClaudeAPIKey)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Auth.BootstrapAdmins)
}

func TestLoadFromYAML(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maps:\n  zoom: 12\nlog:\n  level: debug\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Maps.Zoom)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:  StoreConfig{Driver: "sqlite", SQLitePath: "x.db", PollInterval: time.Second},
			Auth:   AuthConfig{GoogleClientID: "id", GoogleClientSecret: "s", StateSecret: testSecret, WorkbenchIdle: time.Minute},
			Maps:   MapsConfig{Zoom: 15},
			Photos: PhotoConfig{Backend: "local"},
			Vision: VisionConfig{Backend: "none"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, false},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, false},
		{"short secret", func(c *Config) { c.Auth.StateSecret = "short" }, false},
		{"missing google", func(c *Config) { c.Auth.GoogleClientID = "" }, false},
		{"minio without endpoint", func(c *Config) { c.Photos.Backend = "minio" }, false},
		{"claude without key", func(c *Config) { c.Vision.Backend = "claude" }, false},
		{"bad zoom", func(c *Config) { c.Maps.Zoom = 40 }, false},
		{"zero poll", func(c *Config) { c.Store.PollInterval = 0 }, false},
		{"zero workbench idle", func(c *Config) { c.Auth.WorkbenchIdle = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
