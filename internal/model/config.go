package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. BIKERENT_API_BASE_URL.
const envPrefix = "BIKERENT"

// APIConfig points at the marketplace REST backend.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// SocketConfig points at the live notification channel.
type SocketConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	ReconnectSec int    `mapstructure:"reconnect_sec" yaml:"reconnect_sec"`
}

// NotificationsConfig tunes the notification feed.
type NotificationsConfig struct {
	// PollSec is the background reload interval; 0 disables it.
	PollSec int `mapstructure:"poll_sec" yaml:"poll_sec"`
}

// MapsConfig holds the Google Maps key used by the listing views.
type MapsConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// StripeConfig holds the publishable key handed to the checkout page.
type StripeConfig struct {
	PublishableKey string `mapstructure:"publishable_key" yaml:"publishable_key"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// StoreConfig locates the local profile cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration. It is read once
// at startup.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Socket        SocketConfig        `mapstructure:"socket" yaml:"socket"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Maps          MapsConfig          `mapstructure:"maps" yaml:"maps"`
	Stripe        StripeConfig        `mapstructure:"stripe" yaml:"stripe"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
}

// configDir returns ~/.config/bikerent, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bikerent")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bikerent/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:4000/api",
			TimeoutSec: 30,
		},
		Socket: SocketConfig{
			URL:          "ws://localhost:4000/ws",
			ReconnectSec: 5,
		},
		Notifications: NotificationsConfig{
			PollSec: 120,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir(), "bikerent.db"),
		},
	}
}

// setDefaults mirrors defaultAppConfig into v so missing keys resolve and
// environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("socket.url", d.Socket.URL)
	v.SetDefault("socket.reconnect_sec", d.Socket.ReconnectSec)
	v.SetDefault("notifications.poll_sec", d.Notifications.PollSec)
	v.SetDefault("maps.api_key", "")
	v.SetDefault("stripe.publishable_key", "")
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("store.path", d.Store.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first, and BIKERENT_*
// environment variables override file values. A missing file yields the
// defaults.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}
	if cfg.Socket.ReconnectSec <= 0 {
		cfg.Socket.ReconnectSec = 5
	}
	if cfg.Notifications.PollSec < 0 {
		cfg.Notifications.PollSec = 0
	}

	return cfg, nil
}

// Validate reports configuration that would prevent the client from
// reaching the backend.
func (c *AppConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.Socket.URL != "" && !strings.HasPrefix(c.Socket.URL, "ws://") && !strings.HasPrefix(c.Socket.URL, "wss://") {
		return fmt.Errorf("socket.url %q must be a ws(s) URL", c.Socket.URL)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("socket", cfg.Socket)
	v.Set("notifications", cfg.Notifications)
	v.Set("maps", cfg.Maps)
	v.Set("stripe", cfg.Stripe)
	v.Set("display", cfg.Display)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
