package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	apiKeyFileName = "rally-apikey"

	apiKeyEnvVar = "RALLY_APIKEY"

	defaultServer = "rally1.rallydev.com"
)

// Config holds the tracker connection settings. Values come from
// config.yaml in the rallyterm config directory; missing fields fall back
// to defaults.
type Config struct {
	// Server is the tracker host, with or without a scheme prefix.
	Server string `yaml:"server"`
	// APIKeyFile is the path of the file holding the API key. Defaults to
	// rally-apikey in the config directory.
	APIKeyFile string `yaml:"apikey_file"`
	// Workspace and Project scope queries server-side when set.
	Workspace string `yaml:"workspace"`
	Project   string `yaml:"project"`
	// CacheDir overrides the owner cache location.
	CacheDir string `yaml:"cache_dir"`
	// MaxInFlight caps concurrent tracker requests. Zero means the
	// dispatcher default.
	MaxInFlight int64 `yaml:"max_in_flight"`
	// RequestTimeoutSeconds is the per-request ceiling. Zero means the
	// dispatcher default.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// Load reads the configuration file, returning defaults if it does not
// exist. A .env file in the working directory is honored for the API key
// environment variable.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server:     defaultServer,
		APIKeyFile: filepath.Join(MustConfigDir(), apiKeyFileName),
	}

	configPath := filepath.Join(MustConfigDir(), configFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.APIKeyFile == "" {
		cfg.APIKeyFile = filepath.Join(MustConfigDir(), apiKeyFileName)
	}

	return cfg, nil
}

// APIKey resolves the API key: the environment variable wins, then the
// configured key file.
func (c *Config) APIKey() (string, error) {
	if key := os.Getenv(apiKeyEnvVar); key != "" {
		return key, nil
	}

	data, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		return "", fmt.Errorf("cannot read API key file %s (set %s or create the file): %w", c.APIKeyFile, apiKeyEnvVar, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %s is empty", c.APIKeyFile)
	}

	return key, nil
}

// RequestTimeout returns the configured per-request timeout, or zero when
// the dispatcher default should apply.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
