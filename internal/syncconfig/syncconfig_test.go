package syncconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig creates a temp HOME with ~/.config/fieldsync/config.json.
func writeTestConfig(t *testing.T, cfg *Config) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	dir := filepath.Join(tmpDir, ".config", "fieldsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestServerURLFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{URL: "https://sync.example.com/"}})
	t.Setenv("FIELDSYNC_URL", "")
	if url := GetServerURL(); url != "https://sync.example.com" {
		t.Errorf("expected trimmed config URL, got %q", url)
	}
}

func TestServerURLEnvOverridesConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{URL: "https://config.example.com"}})
	t.Setenv("FIELDSYNC_URL", "https://env.example.com")
	if url := GetServerURL(); url != "https://env.example.com" {
		t.Errorf("env should override config, got %q", url)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FIELDSYNC_AUTH_KEY", "")

	if IsAuthenticated() {
		t.Fatal("fresh home should not be authenticated")
	}

	auth := &Auth{APIKey: "fk_test123", ReviewerID: "rev-9"}
	if err := SaveAuth(auth); err != nil {
		t.Fatalf("save auth: %v", err)
	}

	loaded, err := LoadAuth()
	if err != nil {
		t.Fatalf("load auth: %v", err)
	}
	if loaded.APIKey != "fk_test123" || loaded.ReviewerID != "rev-9" {
		t.Errorf("auth mismatch: %+v", loaded)
	}
	if !IsAuthenticated() {
		t.Error("expected authenticated after save")
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("clear auth: %v", err)
	}
	if IsAuthenticated() {
		t.Error("expected unauthenticated after clear")
	}
	// Clearing twice is fine
	if err := ClearAuth(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestAuthFilePermissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := SaveAuth(&Auth{APIKey: "fk_secret"}); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("config dir: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "auth.json"))
	if err != nil {
		t.Fatalf("stat auth: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("auth.json perms: got %o, want 0600", perm)
	}
}

func TestDeviceIDStable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	first, err := GetDeviceID()
	if err != nil {
		t.Fatalf("first device id: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("device id length: got %d, want 32 hex chars", len(first))
	}

	second, err := GetDeviceID()
	if err != nil {
		t.Fatalf("second device id: %v", err)
	}
	if second != first {
		t.Errorf("device id should be stable: %q != %q", second, first)
	}
}

func TestAutoSyncEnabledFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{Auto: AutoSettings{Enabled: boolPtr(false)}}})
	t.Setenv("FIELDSYNC_AUTO", "")
	if GetAutoSyncEnabled() {
		t.Error("expected auto-sync disabled from config")
	}
}

func TestAutoSyncOnConnectFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{Auto: AutoSettings{OnConnect: boolPtr(false)}}})
	t.Setenv("FIELDSYNC_AUTO_ON_CONNECT", "")
	if GetAutoSyncOnConnect() {
		t.Error("expected on_connect disabled from config")
	}
}

func TestAutoSyncDebounceFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{Auto: AutoSettings{Debounce: "10s"}}})
	t.Setenv("FIELDSYNC_AUTO_DEBOUNCE", "")
	if d := GetAutoSyncDebounce(); d != 10*time.Second {
		t.Errorf("expected 10s from config, got %v", d)
	}
}

func TestAutoSyncIntervalFromConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{Auto: AutoSettings{Interval: "15m"}}})
	t.Setenv("FIELDSYNC_AUTO_INTERVAL", "")
	if d := GetAutoSyncInterval(); d != 15*time.Minute {
		t.Errorf("expected 15m from config, got %v", d)
	}
}

func TestAutoSyncEnvOverridesConfig(t *testing.T) {
	writeTestConfig(t, &Config{Sync: SyncSettings{Auto: AutoSettings{
		Enabled:   boolPtr(false),
		OnConnect: boolPtr(false),
		Debounce:  "10s",
		Interval:  "15m",
	}}})

	t.Setenv("FIELDSYNC_AUTO", "true")
	if !GetAutoSyncEnabled() {
		t.Error("env should override config for enabled")
	}

	t.Setenv("FIELDSYNC_AUTO_ON_CONNECT", "1")
	if !GetAutoSyncOnConnect() {
		t.Error("env should override config for on_connect")
	}

	t.Setenv("FIELDSYNC_AUTO_DEBOUNCE", "500ms")
	if d := GetAutoSyncDebounce(); d != 500*time.Millisecond {
		t.Errorf("env should override config for debounce, got %v", d)
	}

	t.Setenv("FIELDSYNC_AUTO_INTERVAL", "30s")
	if d := GetAutoSyncInterval(); d != 30*time.Second {
		t.Errorf("env should override config for interval, got %v", d)
	}
}

func TestInvalidDebounceFallsThrough(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FIELDSYNC_AUTO_DEBOUNCE", "not-a-duration")
	if d := GetAutoSyncDebounce(); d != 3*time.Second {
		t.Errorf("invalid env should fall through to default, got %v", d)
	}
}
