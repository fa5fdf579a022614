package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every CARSENSOR_ env var that Load() reads.
var allConfigKeys = []string{
	"CARSENSOR_API_URL",
	"CARSENSOR_PER_PAGE",
	"CARSENSOR_DB_PATH",
	"CARSENSOR_CREDENTIAL_BACKEND",
	"CARSENSOR_CREDENTIAL_FILE",
	"CARSENSOR_SECRET_KEY",
	"CARSENSOR_LISTEN_ADDR",
	"CARSENSOR_REQUEST_TIMEOUT",
	"CARSENSOR_RATE_LIMIT",
	"CARSENSOR_LOG_FILE",
	"CARSENSOR_LOG_LEVEL",
}

// isolateConfigEnv saves and unsets all CARSENSOR_ env vars so tests don't
// inherit values from the host environment. HOME is pointed at a temp dir so
// a developer's config file is never read.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.APIURL)
	assert.Equal(t, 20, cfg.PerPage)
	assert.Equal(t, "carsensor.db", cfg.DBPath)
	assert.Equal(t, BackendSQLite, cfg.CredentialBackend)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 5.0, cfg.RateLimit, 0)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.SecretKey)
}

func TestLoad_Env(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CARSENSOR_API_URL", "https://cars.example.com")
	t.Setenv("CARSENSOR_PER_PAGE", "50")
	t.Setenv("CARSENSOR_DB_PATH", "/tmp/test.db")
	t.Setenv("CARSENSOR_CREDENTIAL_BACKEND", "file")
	t.Setenv("CARSENSOR_CREDENTIAL_FILE", "/tmp/cred")
	t.Setenv("CARSENSOR_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("CARSENSOR_REQUEST_TIMEOUT", "5s")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://cars.example.com", cfg.APIURL)
	assert.Equal(t, 50, cfg.PerPage)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, BackendFile, cfg.CredentialBackend)
	assert.Equal(t, "/tmp/cred", cfg.CredentialFile)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoad_File(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("api-url: http://backend:8000\nper-page: 10\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000", cfg.APIURL)
	assert.Equal(t, 10, cfg.PerPage)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("per-page: 10\n"), 0o600))
	t.Setenv("CARSENSOR_PER_PAGE", "30")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PerPage)
}

func TestLoad_MissingDefaultFileIsIgnored(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.PerPage)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "absent.yml")

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{"per page zero", "CARSENSOR_PER_PAGE", "0", "CARSENSOR_PER_PAGE"},
		{"per page too large", "CARSENSOR_PER_PAGE", "101", "CARSENSOR_PER_PAGE"},
		{"unknown backend", "CARSENSOR_CREDENTIAL_BACKEND", "keychain", "CARSENSOR_CREDENTIAL_BACKEND"},
		{"api url without scheme", "CARSENSOR_API_URL", "cars.example.com", "CARSENSOR_API_URL"},
		{"api url ftp", "CARSENSOR_API_URL", "ftp://cars.example.com", "CARSENSOR_API_URL"},
		{"negative rate limit", "CARSENSOR_RATE_LIMIT", "-1", "CARSENSOR_RATE_LIMIT"},
		{"zero timeout", "CARSENSOR_REQUEST_TIMEOUT", "0s", "CARSENSOR_REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load("")

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("CARSENSOR_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CARSENSOR_SECRET_KEY", "deadbeef")

	cfg, err := Load("")

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARSENSOR_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("CARSENSOR_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load("")

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARSENSOR_SECRET_KEY")
}
