package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"POSTDESK_API_URL", "POSTDESK_API_TIMEOUT",
		"POSTDESK_STORAGE_BACKEND", "POSTDESK_STORAGE_PATH", "POSTDESK_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("POSTDESK_HOME", t.TempDir())
	cfg := DefaultConfig()

	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.False(t, cfg.Logging.DebugMode)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("POSTDESK_HOME", home)
	path := filepath.Join(home, "config.yaml")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://blog.example.com"
	cfg.Storage.Backend = BackendBolt
	cfg.Storage.Path = filepath.Join(home, "session.db")
	cfg.Logging.DebugMode = true

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com", loaded.API.BaseURL)
	assert.Equal(t, BackendBolt, loaded.Storage.Backend)
	assert.Equal(t, cfg.Storage.Path, loaded.Storage.Path)
	assert.True(t, loaded.Logging.DebugMode)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTDESK_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POSTDESK_HOME", t.TempDir())

	t.Run("api url and timeout", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTDESK_API_URL", "http://api:9000")
		t.Setenv("POSTDESK_API_TIMEOUT", "5s")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "http://api:9000", cfg.API.BaseURL)

		d, err := cfg.APITimeout()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, d)
	})

	t.Run("storage backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTDESK_STORAGE_BACKEND", "sqlite")
		t.Setenv("POSTDESK_STORAGE_PATH", "/tmp/s.db")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
		assert.Equal(t, "/tmp/s.db", cfg.Storage.Path)
	})

	t.Run("debug flag", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTDESK_DEBUG", "true")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("empty values leave file settings alone", func(t *testing.T) {
		clearEnv(t)
		cfg := DefaultConfig()
		cfg.API.BaseURL = "http://from-file"
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "http://from-file", cfg.API.BaseURL)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("POSTDESK_HOME", t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "localhost:8080" }},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://host" }},
		{"bad timeout", func(c *Config) { c.API.Timeout = "soon" }},
		{"negative timeout", func(c *Config) { c.API.Timeout = "-1s" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"missing path", func(c *Config) { c.Storage.Path = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("memory backend needs no path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Backend = BackendMemory
		cfg.Storage.Path = ""
		assert.NoError(t, cfg.Validate())
	})
}
