package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/dcwatch/internal/appfs"
)

const (
	DefaultBaseURL  = "http://dcstore.shenmo.tech/store"
	DefaultSchedule = "@every 5m"
)

// Config represents the dcwatch configuration.
type Config struct {
	LogLevel string         `toml:"log_level"`
	BaseURL  string         `toml:"base_url"`
	Schedule string         `toml:"schedule"`
	Watches  []Watch        `toml:"watch"`
	Dispatch DispatchConfig `toml:"dispatch"`
}

// Watch is one package to poll. Each watch runs as its own sensor.
type Watch struct {
	Category string `toml:"category"`
	Pkgname  string `toml:"pkgname"`
	// BaseURL overrides the top level base_url for this watch.
	BaseURL string `toml:"base_url,omitempty"`
}

// DispatchConfig selects where new version events are delivered.
type DispatchConfig struct {
	// Stdout prints every event as a JSON line.
	Stdout bool `toml:"stdout"`
	// WhatsApp lists recipients: phone numbers or group JIDs.
	WhatsApp []string `toml:"whatsapp"`
}

// Name identifies the watch in logs and in the store.
func (w Watch) Name() string {
	return w.Category + "/" + w.Pkgname
}

// URL returns the catalog base URL for the watch.
func (c *Config) URL(w Watch) string {
	if w.BaseURL != "" {
		return w.BaseURL
	}
	return c.BaseURL
}

// Validate checks the settings a sensor cannot start without.
func (c *Config) Validate() error {
	if len(c.Watches) == 0 {
		return errors.New("no watch configured")
	}
	for i, w := range c.Watches {
		if w.Category == "" {
			return fmt.Errorf("watch %d: missing category", i)
		}
		if w.Pkgname == "" {
			return fmt.Errorf("watch %d: missing pkgname", i)
		}
	}
	return nil
}

// Find returns the watch named category/pkgname.
func (c *Config) Find(name string) (Watch, bool) {
	for _, w := range c.Watches {
		if w.Name() == name {
			return w, true
		}
	}
	return Watch{}, false
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(appfs.ConfigDir(), "dcwatch.toml")
}

// Load reads and parses a TOML config file.
// Returns a default Config if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		BaseURL:  DefaultBaseURL,
		Schedule: DefaultSchedule,
		Dispatch: DispatchConfig{Stdout: true},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the given path in TOML format.
// Parent directories are created if they don't exist.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
