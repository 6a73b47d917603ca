// Package syncconfig manages fieldsync client configuration and stored
// credentials under the user's config directory.
package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the on-disk structure of config.json.
type Config struct {
	Sync SyncSettings `json:"sync"`
}

// SyncSettings holds server and auto-sync configuration.
type SyncSettings struct {
	URL  string       `json:"url,omitempty"`
	Auto AutoSettings `json:"auto,omitempty"`
}

// AutoSettings controls background synchronization behavior.
type AutoSettings struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	OnConnect *bool  `json:"on_connect,omitempty"`
	Debounce  string `json:"debounce,omitempty"`
	Interval  string `json:"interval,omitempty"`
}

// Auth is the on-disk structure of auth.json.
type Auth struct {
	APIKey     string `json:"api_key"`
	ReviewerID string `json:"reviewer_id,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
}

// ConfigDir returns the fieldsync config directory (~/.config/fieldsync),
// creating it if needed.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "fieldsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// LoadConfig reads config.json. A missing file returns an empty config.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// LoadAuth reads stored credentials. A missing file returns empty Auth.
func LoadAuth() (*Auth, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "auth.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Auth{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read auth file: %w", err)
	}
	var auth Auth
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("cannot parse auth file: %w", err)
	}
	return &auth, nil
}

// SaveAuth writes credentials with owner-only permissions.
func SaveAuth(auth *Auth) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal auth: %w", err)
	}
	path := filepath.Join(dir, "auth.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("cannot write auth file: %w", err)
	}
	return nil
}

// ClearAuth removes stored credentials.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "auth.json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove auth file: %w", err)
	}
	return nil
}

// GetServerURL returns the sync server URL.
// Priority: FIELDSYNC_URL env > config.json sync.url > empty string.
func GetServerURL() string {
	if url := os.Getenv("FIELDSYNC_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return strings.TrimRight(cfg.Sync.URL, "/")
	}
	return ""
}

// GetAPIKey returns the API key for server authentication.
// Priority: FIELDSYNC_AUTH_KEY env > auth.json api_key > empty string.
func GetAPIKey() string {
	if key := os.Getenv("FIELDSYNC_AUTH_KEY"); key != "" {
		return key
	}
	auth, err := LoadAuth()
	if err == nil && auth.APIKey != "" {
		return auth.APIKey
	}
	return ""
}

// IsAuthenticated reports whether an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetDeviceID returns the stable device identifier, generating and
// persisting one on first use.
func GetDeviceID() (string, error) {
	auth, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if auth.DeviceID != "" {
		return auth.DeviceID, nil
	}
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	auth.DeviceID = id
	if err := SaveAuth(auth); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a random 16-byte hex device identifier.
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cannot generate device id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func parseBoolEnv(name string) *bool {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		t := true
		return &t
	case "0", "false", "no", "off":
		f := false
		return &f
	}
	return nil
}

// GetAutoSyncEnabled reports whether background sync is enabled.
// Priority: FIELDSYNC_AUTO env > config.json sync.auto.enabled > true.
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("FIELDSYNC_AUTO"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncOnConnect reports whether a drain should run when
// connectivity is regained.
// Priority: FIELDSYNC_AUTO_ON_CONNECT env > config.json sync.auto.on_connect > true.
func GetAutoSyncOnConnect() bool {
	if v := parseBoolEnv("FIELDSYNC_AUTO_ON_CONNECT"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.OnConnect != nil {
		return *cfg.Sync.Auto.OnConnect
	}
	return true
}

// GetAutoSyncDebounce returns the delay between a local change and the
// background drain it triggers.
// Priority: FIELDSYNC_AUTO_DEBOUNCE env > config.json sync.auto.debounce > 3s.
func GetAutoSyncDebounce() time.Duration {
	if v := os.Getenv("FIELDSYNC_AUTO_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Debounce != "" {
		if d, err := time.ParseDuration(cfg.Sync.Auto.Debounce); err == nil {
			return d
		}
	}
	return 3 * time.Second
}

// GetAutoSyncInterval returns the periodic background drain interval.
// Priority: FIELDSYNC_AUTO_INTERVAL env > config.json sync.auto.interval > 5m.
func GetAutoSyncInterval() time.Duration {
	if v := os.Getenv("FIELDSYNC_AUTO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Interval != "" {
		if d, err := time.ParseDuration(cfg.Sync.Auto.Interval); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}
