// Package config loads application configuration from environment variables
// and an optional YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Credential storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// MaxPerPage is the largest page size the remote service accepts.
const MaxPerPage = 100

// Config holds the validated application configuration.
type Config struct {
	APIURL            string        `mapstructure:"api-url"`
	PerPage           int           `mapstructure:"per-page"`
	DBPath            string        `mapstructure:"db-path"`
	CredentialBackend string        `mapstructure:"credential-backend"`
	CredentialFile    string        `mapstructure:"credential-file"`
	ListenAddr        string        `mapstructure:"listen-addr"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	RateLimit         float64       `mapstructure:"rate-limit"`
	LogFile           string        `mapstructure:"log-file"`
	LogLevel          string        `mapstructure:"log-level"`

	// SecretKeyHex is the raw CARSENSOR_SECRET_KEY value; SecretKey is the
	// decoded key, nil when unset.
	SecretKeyHex string `mapstructure:"secret-key"`
	SecretKey    []byte `mapstructure:"-"`
}

// Load reads configuration and returns a validated Config. Values come from
// CARSENSOR_-prefixed environment variables (dashes become underscores, so
// per-page is CARSENSOR_PER_PAGE), then from the YAML file at path, then from
// defaults. An empty path means ~/.config/carsensor/config.yml; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	configDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "carsensor")
	}

	v := viper.New()
	v.SetEnvPrefix("CARSENSOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-url", "http://127.0.0.1:8000")
	v.SetDefault("per-page", 20)
	v.SetDefault("db-path", "carsensor.db")
	v.SetDefault("credential-backend", BackendSQLite)
	v.SetDefault("credential-file", filepath.Join(configDir, "credential"))
	v.SetDefault("secret-key", "")
	v.SetDefault("listen-addr", "127.0.0.1:8080")
	v.SetDefault("request-timeout", 20*time.Second)
	v.SetDefault("rate-limit", 5.0)
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", "info")

	// Only the default config file may be absent.
	explicit := path != ""
	if !explicit && configDir != "" {
		path = filepath.Join(configDir, "config.yml")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CARSENSOR_API_URL must be an http(s) URL, got %q", c.APIURL)
	}

	if c.PerPage < 1 || c.PerPage > MaxPerPage {
		return fmt.Errorf("CARSENSOR_PER_PAGE must be between 1 and %d, got %d", MaxPerPage, c.PerPage)
	}

	switch c.CredentialBackend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("CARSENSOR_CREDENTIAL_BACKEND must be %q or %q, got %q",
			BackendSQLite, BackendFile, c.CredentialBackend)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("CARSENSOR_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("CARSENSOR_RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}

	// Optional; must decode to exactly 32 bytes (AES-256) when set.
	if c.SecretKeyHex != "" {
		key, err := hex.DecodeString(c.SecretKeyHex)
		if err != nil {
			return fmt.Errorf("CARSENSOR_SECRET_KEY must be hex-encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("CARSENSOR_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		c.SecretKey = key
	}
	return nil
}
