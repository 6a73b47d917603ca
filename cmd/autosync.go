package cmd

import (
	"log/slog"
	"time"

	"github.com/arden/fieldsync/internal/db"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/arden/fieldsync/internal/syncconfig"
)

// autoSyncAfterMutation runs a quick queue drain after a mutating command
// completes. Runs synchronously with a short network timeout. Errors are
// logged, not returned: capture must never fail because sync did.
func autoSyncAfterMutation() {
	if !syncconfig.GetAutoSyncEnabled() {
		return
	}
	if !syncconfig.IsAuthenticated() {
		return
	}

	dir := getBaseDir()
	if dir == "" {
		return
	}

	database, err := db.Open(dir)
	if err != nil {
		slog.Debug("autosync: open db", "err", err)
		return
	}
	defer database.Close()

	client, err := newClient()
	if err != nil {
		slog.Debug("autosync: client", "err", err)
		return
	}
	client.HTTP.Timeout = 5 * time.Second // short timeout for auto-sync

	// Skip the drain entirely when the server is unreachable; the queue
	// keeps everything until an explicit sync or the next mutation.
	if _, err := client.HealthCheck(); err != nil {
		slog.Debug("autosync: offline", "err", err)
		return
	}

	engine := fsync.NewEngine(database, fsync.NewHandlers(database, client), cliLogger())
	result, err := engine.ProcessQueue()
	if err != nil {
		slog.Debug("autosync: drain", "err", err)
		return
	}
	if result.Processed() > 0 {
		slog.Debug("autosync: drained", "synced", result.Synced, "retried", result.Retried)
	}
}
