package preflight

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arden/fieldsync/internal/cache"
	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/storage"
	"github.com/arden/fieldsync/internal/syncclient"
)

type staticPerms map[string]bool

func (p staticPerms) Permissions() map[string]bool { return p }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRunner(t *testing.T, serverURL string, perms PermissionProber) *Runner {
	t.Helper()
	store, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := syncclient.New(serverURL, "key", "device-1")
	cacheMgr := cache.NewManager(filepath.Join(db.DataDir(store.BaseDir()), "cache"), client, testLogger())
	storageMgr := storage.NewManager(store, testLogger())
	return NewRunner(store, cacheMgr, storageMgr, perms, testLogger())
}

func TestPreflightAllPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	perms := staticPerms{"camera": true, "microphone": true, "gps": true}
	r := setupRunner(t, srv.URL, perms)

	var seen []string
	report := r.Run("rev-1", func(c Check) { seen = append(seen, c.Name) })

	if !report.Ready {
		t.Errorf("Ready = false, checks: %+v", report.Checks)
	}
	if len(report.Checks) != 4 {
		t.Fatalf("Expected 4 checks, got %d", len(report.Checks))
	}

	// Checks report incrementally, in order
	want := []string{"local store", "capture permissions", "cached review data", "free space"}
	for i, name := range want {
		if seen[i] != name {
			t.Errorf("Progress %d = %s, want %s", i, seen[i], name)
		}
	}
}

func TestPreflightDeniedPermissionsWarnOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	perms := staticPerms{"camera": true, "microphone": false, "gps": false}
	r := setupRunner(t, srv.URL, perms)

	report := r.Run("rev-1", nil)
	if !report.Ready {
		t.Error("Denied permissions made the device not ready; warnings must not block")
	}

	var permCheck Check
	for _, c := range report.Checks {
		if c.Name == "capture permissions" {
			permCheck = c
		}
	}
	if permCheck.Result != Warning {
		t.Errorf("Permission check = %s, want warning", permCheck.Result)
	}
	if permCheck.Detail != "not granted: gps, microphone" {
		t.Errorf("Detail = %q", permCheck.Detail)
	}
}

func TestPreflightPopulatesCacheOnMiss(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := setupRunner(t, srv.URL, staticPerms{})

	report := r.Run("rev-1", nil)
	if requests == 0 {
		t.Error("Cache miss did not trigger population")
	}

	var cacheCheck Check
	for _, c := range report.Checks {
		if c.Name == "cached review data" {
			cacheCheck = c
		}
	}
	if cacheCheck.Result != Pass {
		t.Errorf("Cache check = %s (%s), want pass after population", cacheCheck.Result, cacheCheck.Detail)
	}

	// Second run hits the populated cache, no new fetches
	before := requests
	r.Run("rev-1", nil)
	if requests != before {
		t.Errorf("Second run fetched %d more entries despite cache hit", requests-before)
	}
}

func TestPreflightUnreachableServerStillReady(t *testing.T) {
	// Cache population fails, but that is a warning; the store works and
	// space is available, so the device may still go offline.
	r := setupRunner(t, "http://127.0.0.1:1", nil)

	report := r.Run("rev-1", nil)
	if !report.Ready {
		t.Errorf("Ready = false, checks: %+v", report.Checks)
	}

	var cacheCheck Check
	for _, c := range report.Checks {
		if c.Name == "cached review data" {
			cacheCheck = c
		}
	}
	if cacheCheck.Result != Warning {
		t.Errorf("Cache check = %s, want warning when population fails", cacheCheck.Result)
	}
}

func TestPreflightFailsOnBrokenStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := setupRunner(t, srv.URL, nil)
	r.store.Close()

	report := r.Run("rev-1", nil)
	if report.Ready {
		t.Error("Ready = true with an unwritable store")
	}
	if report.Checks[0].Result != Fail {
		t.Errorf("Store check = %s, want fail", report.Checks[0].Result)
	}
}
