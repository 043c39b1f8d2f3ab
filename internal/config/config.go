package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage backends understood by storage.Open.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultAPIURL is used when neither the config file nor the environment names a server.
const DefaultAPIURL = "http://localhost:8080"

// Config holds all postdesk configuration.
type Config struct {
	// API server the session and content clients talk to
	API APIConfig `yaml:"api"`

	// Where the session token and user record are persisted
	Storage StorageConfig `yaml:"storage"`

	// Categorised file logging
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the remote content API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StorageConfig selects the session storage backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file, bolt, sqlite, memory
	Path    string `yaml:"path"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// envOverrides lists the environment variables that win over the config file.
type envOverrides struct {
	APIURL         string `env:"POSTDESK_API_URL"`
	APITimeout     string `env:"POSTDESK_API_TIMEOUT"`
	StorageBackend string `env:"POSTDESK_STORAGE_BACKEND"`
	StoragePath    string `env:"POSTDESK_STORAGE_PATH"`
	Debug          string `env:"POSTDESK_DEBUG"`
}

// StateDir returns the directory holding config, session storage and logs.
func StateDir() string {
	if dir := os.Getenv("POSTDESK_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".postdesk"
	}
	return filepath.Join(home, ".postdesk")
}

// DefaultConfigPath returns the location of config.yaml inside the state dir.
func DefaultConfigPath() string {
	return filepath.Join(StateDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: "30s",
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    filepath.Join(StateDir(), "session.json"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.APIURL != "" {
		c.API.BaseURL = o.APIURL
	}
	if o.APITimeout != "" {
		c.API.Timeout = o.APITimeout
	}
	if o.StorageBackend != "" {
		c.Storage.Backend = o.StorageBackend
	}
	if o.StoragePath != "" {
		c.Storage.Path = o.StoragePath
	}
	if o.Debug != "" {
		debug, err := strconv.ParseBool(o.Debug)
		if err != nil {
			return fmt.Errorf("POSTDESK_DEBUG: %w", err)
		}
		c.Logging.DebugMode = debug
	}
	return nil
}

// Validate checks the configuration for values the clients cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme)
	}

	if _, err := c.APITimeout(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendBolt, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}

	return nil
}

// APITimeout parses api.timeout. An empty value means no timeout.
func (c *Config) APITimeout() (time.Duration, error) {
	if c.API.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("api.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("api.timeout must not be negative")
	}
	return d, nil
}

// LogsDir is where internal/logging writes its category files.
func (c *Config) LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}
