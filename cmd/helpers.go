package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arden/fieldsync/internal/cache"
	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/review"
	"github.com/arden/fieldsync/internal/syncclient"
	"github.com/arden/fieldsync/internal/syncconfig"
)

// cliLogger returns the slog logger used by commands. Debug output is
// enabled via FIELDSYNC_DEBUG.
func cliLogger() *slog.Logger {
	if os.Getenv("FIELDSYNC_DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openStore opens the workspace database.
func openStore() (*db.DB, error) {
	return db.Open(getBaseDir())
}

// newClient builds an authenticated sync client from stored config.
func newClient() (*syncclient.Client, error) {
	serverURL := syncconfig.GetServerURL()
	if serverURL == "" {
		return nil, fmt.Errorf("no server configured (set FIELDSYNC_URL or sync.url in config)")
	}
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("get device id: %w", err)
	}
	return syncclient.New(serverURL, syncconfig.GetAPIKey(), deviceID), nil
}

// newCacheManager builds the offline cache manager rooted under the
// workspace data directory.
func newCacheManager(client *syncclient.Client) *cache.Manager {
	dir := filepath.Join(db.DataDir(getBaseDir()), "cache")
	return cache.NewManager(dir, client, cliLogger())
}

// resolveReview returns the review ID from the flag or the active selection.
func resolveReview(explicit string) (string, error) {
	return review.Resolve(getBaseDir(), explicit)
}
