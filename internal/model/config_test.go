package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4000/api", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSec)
	assert.Equal(t, "ws://localhost:4000/ws", cfg.Socket.URL)
	assert.Equal(t, 5, cfg.Socket.ReconnectSec)
	assert.Equal(t, 120, cfg.Notifications.PollSec)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://api.bikerent.example.com/api/
  timeout_sec: 10
socket:
  url: wss://api.bikerent.example.com/ws
notifications:
  poll_sec: 0
maps:
  api_key: maps-key
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.bikerent.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.TimeoutSec)
	assert.Equal(t, "wss://api.bikerent.example.com/ws", cfg.Socket.URL)
	assert.Equal(t, 5, cfg.Socket.ReconnectSec)
	assert.Equal(t, 0, cfg.Notifications.PollSec)
	assert.Equal(t, "maps-key", cfg.Maps.APIKey)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BIKERENT_API_BASE_URL", "https://staging.example.com/api")
	t.Setenv("BIKERENT_STRIPE_PUBLISHABLE_KEY", "pk_test_123")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "pk_test_123", cfg.Stripe.PublishableKey)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultAppConfig()
	require.NoError(t, cfg.Validate())

	cfg.API.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg.API.BaseURL = "ftp://example.com"
	assert.Error(t, cfg.Validate())

	cfg = defaultAppConfig()
	cfg.Socket.URL = "http://example.com/ws"
	assert.Error(t, cfg.Validate())

	cfg.Socket.URL = ""
	assert.NoError(t, cfg.Validate())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.API.BaseURL = "https://api.example.com/api"
	cfg.Notifications.PollSec = 45

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", got.API.BaseURL)
	assert.Equal(t, 45, got.Notifications.PollSec)
}
