package sync

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/models"
	_ "modernc.org/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *db.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store, err := db.NewFromConn(conn)
	if err != nil {
		t.Fatalf("install schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// funcHandler adapts a function to the Handler interface.
type funcHandler func(models.QueueEntry) error

func (f funcHandler) Push(entry models.QueueEntry) error { return f(entry) }

func okHandlers(record *[]string) Handlers {
	h := funcHandler(func(entry models.QueueEntry) error {
		if record != nil {
			*record = append(*record, entry.EntityID)
		}
		return nil
	})
	return Handlers{ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h}
}

func newTestEngine(store *db.DB, handlers Handlers) *Engine {
	e := NewEngine(store, handlers, testLogger())
	e.sleep = func(time.Duration) {}
	return e
}

func createItem(t *testing.T, store *db.DB, title string) *models.ChecklistItem {
	t.Helper()
	item := &models.ChecklistItem{ReviewID: "rev-1", Phase: models.PhaseOnSite, Title: title}
	if err := store.CreateChecklistItem(item); err != nil {
		t.Fatalf("CreateChecklistItem failed: %v", err)
	}
	return item
}

func TestDrainFIFOOrder(t *testing.T) {
	store := setupStore(t)

	first := createItem(t, store, "First")
	second := &models.DraftFinding{ReviewID: "rev-1", Title: "Second", Severity: models.SeverityMinor}
	if err := store.CreateFinding(second); err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}
	third := createItem(t, store, "Third")

	var calls []string
	engine := newTestEngine(store, okHandlers(&calls))

	result, err := engine.ProcessQueue()
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if result.Synced != 3 {
		t.Errorf("Synced = %d, want 3", result.Synced)
	}

	want := []string{first.ID, second.ID, third.ID}
	if len(calls) != 3 {
		t.Fatalf("Expected 3 handler calls, got %d", len(calls))
	}
	for i, id := range want {
		if calls[i] != id {
			t.Errorf("Call %d = %s, want %s", i, calls[i], id)
		}
	}

	// Successful entries are gone and entities marked synced
	entries, _ := store.ListQueueEntries()
	if len(entries) != 0 {
		t.Errorf("Expected empty queue, got %d entries", len(entries))
	}
	item, _ := store.GetChecklistItem(first.ID)
	if item.SyncStatus != models.SyncSynced {
		t.Errorf("SyncStatus = %s, want synced", item.SyncStatus)
	}

	status, err := engine.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.LastSyncAt == nil {
		t.Error("LastSyncAt not recorded after successful drain")
	}
}

func TestDrainIdempotent(t *testing.T) {
	store := setupStore(t)
	createItem(t, store, "Slow")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	h := funcHandler(func(models.QueueEntry) error {
		calls++
		close(started)
		<-release
		return nil
	})
	engine := newTestEngine(store, Handlers{
		ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h,
	})

	done := make(chan DrainResult)
	go func() {
		result, _ := engine.ProcessQueue()
		done <- result
	}()

	<-started
	// Second drain while the first is mid-entry collapses to a no-op
	overlap, err := engine.ProcessQueue()
	if err != nil {
		t.Fatalf("Overlapping ProcessQueue failed: %v", err)
	}
	if overlap.Processed() != 0 {
		t.Errorf("Overlapping drain processed %d entries, want 0", overlap.Processed())
	}

	close(release)
	result := <-done
	if result.Synced != 1 {
		t.Errorf("First drain synced %d, want 1", result.Synced)
	}
	if calls != 1 {
		t.Errorf("Handler called %d times, want 1", calls)
	}
}

func TestConflictDoesNotBlockLaterEntries(t *testing.T) {
	store := setupStore(t)

	conflicted := createItem(t, store, "Conflicted")
	clean := createItem(t, store, "Clean")

	h := funcHandler(func(entry models.QueueEntry) error {
		if entry.EntityID == conflicted.ID {
			return &ConflictError{Message: "modified by another session"}
		}
		return nil
	})
	engine := newTestEngine(store, Handlers{
		ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h,
	})

	result, err := engine.ProcessQueue()
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if result.Conflicts != 1 || result.Synced != 1 {
		t.Errorf("Result = %+v, want 1 conflict and 1 synced", result)
	}

	item, _ := store.GetChecklistItem(conflicted.ID)
	if item.SyncStatus != models.SyncConflict {
		t.Errorf("Conflicted item status = %s, want conflict", item.SyncStatus)
	}
	item, _ = store.GetChecklistItem(clean.ID)
	if item.SyncStatus != models.SyncSynced {
		t.Errorf("Clean item status = %s, want synced", item.SyncStatus)
	}

	// Frozen entry sits outside the eligible set
	pending, _ := store.PendingQueueEntries()
	if len(pending) != 0 {
		t.Errorf("Expected no pending entries, got %d", len(pending))
	}

	// RetryFailed leaves the conflict parked
	n, err := engine.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if n != 0 {
		t.Errorf("RetryFailed reset %d entries, want 0", n)
	}
	item, _ = store.GetChecklistItem(conflicted.ID)
	if item.SyncStatus != models.SyncConflict {
		t.Errorf("Status after RetryFailed = %s, want conflict", item.SyncStatus)
	}
}

func TestRetryableFailureThenSuccess(t *testing.T) {
	store := setupStore(t)

	item := createItem(t, store, "Checklist update")
	ev := &models.FieldEvidence{
		ReviewID: "rev-1", ChecklistItemID: item.ID,
		Type: models.EvidencePhoto, MimeType: "image/jpeg", FileName: "hall.jpg",
		Data: make([]byte, 200<<10),
	}
	if err := store.CreateEvidence(ev); err != nil {
		t.Fatalf("CreateEvidence failed: %v", err)
	}
	finding := &models.DraftFinding{
		ReviewID: "rev-1", Title: "Finding with evidence",
		Severity: models.SeverityMajor, EvidenceIDs: []string{ev.ID},
	}
	if err := store.CreateFinding(finding); err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}

	evidenceAttempts := 0
	h := funcHandler(func(entry models.QueueEntry) error {
		if entry.EntityID == ev.ID {
			evidenceAttempts++
			if evidenceAttempts == 1 {
				return &RetryableError{Message: "HTTP 500: upstream unavailable"}
			}
		}
		return nil
	})

	var delays []time.Duration
	engine := NewEngine(store, Handlers{
		ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h,
	}, testLogger())
	engine.sleep = func(d time.Duration) { delays = append(delays, d) }

	// Drain 1: checklist syncs, evidence fails once, finding still syncs
	result, err := engine.ProcessQueue()
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if result.Synced != 2 || result.Retried != 1 {
		t.Errorf("Drain 1 result = %+v, want 2 synced, 1 retried", result)
	}
	if len(delays) != 1 || delays[0] != 5*time.Second {
		t.Errorf("Backoff delays = %v, want [5s]", delays)
	}

	meta, _ := store.GetEvidenceMeta(ev.ID)
	if meta.SyncStatus != models.SyncPending {
		t.Errorf("Evidence status = %s after drain 1, want pending", meta.SyncStatus)
	}
	pending, _ := store.PendingQueueEntries()
	if len(pending) != 1 || pending[0].RetryCount != 1 {
		t.Fatalf("Pending after drain 1 = %+v, want one entry with retryCount 1", pending)
	}

	// Drain 2: evidence goes through
	result, err = engine.ProcessQueue()
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if result.Synced != 1 {
		t.Errorf("Drain 2 synced %d, want 1", result.Synced)
	}
	meta, _ = store.GetEvidenceMeta(ev.ID)
	if meta.SyncStatus != models.SyncSynced {
		t.Errorf("Evidence status = %s after drain 2, want synced", meta.SyncStatus)
	}
	if evidenceAttempts != 2 {
		t.Errorf("Evidence attempted %d times, want 2", evidenceAttempts)
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	store := setupStore(t)
	item := createItem(t, store, "Always failing")

	h := funcHandler(func(models.QueueEntry) error {
		return &RetryableError{Message: "HTTP 503: maintenance"}
	})
	engine := newTestEngine(store, Handlers{
		ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h,
	})

	for i := 0; i < db.DefaultMaxRetries; i++ {
		if _, err := engine.ProcessQueue(); err != nil {
			t.Fatalf("ProcessQueue %d failed: %v", i, err)
		}
	}

	got, _ := store.GetChecklistItem(item.ID)
	if got.SyncStatus != models.SyncFailed {
		t.Errorf("Status = %s after exhaustion, want failed", got.SyncStatus)
	}
	status, err := engine.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Pending != 0 || status.Failed != 1 {
		t.Errorf("Status = %+v, want 0 pending, 1 failed", status)
	}
	if status.LastError != "HTTP 503: maintenance" {
		t.Errorf("LastError = %q", status.LastError)
	}

	// RetryFailed makes it eligible again
	n, err := engine.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RetryFailed reset %d, want 1", n)
	}
	got, _ = store.GetChecklistItem(item.ID)
	if got.SyncStatus != models.SyncPending {
		t.Errorf("Status after RetryFailed = %s, want pending", got.SyncStatus)
	}
}

func TestPermanentFailureExhaustsImmediately(t *testing.T) {
	store := setupStore(t)
	item := createItem(t, store, "Rejected")

	h := funcHandler(func(models.QueueEntry) error {
		return &PermanentError{Message: "validation failed: phase is required"}
	})
	engine := newTestEngine(store, Handlers{
		ChecklistItem: h, FieldEvidence: h, DraftFinding: h, OfflineSession: h,
	})

	result, err := engine.ProcessQueue()
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	got, _ := store.GetChecklistItem(item.ID)
	if got.SyncStatus != models.SyncFailed {
		t.Errorf("Status = %s, want failed", got.SyncStatus)
	}
	status, _ := engine.GetStatus()
	// Server message reaches the operator verbatim
	if status.LastError != "validation failed: phase is required" {
		t.Errorf("LastError = %q", status.LastError)
	}
	pending, _ := store.PendingQueueEntries()
	if len(pending) != 0 {
		t.Errorf("Permanently failed entry still pending, %d entries", len(pending))
	}
}

func TestBackoffDelayProgression(t *testing.T) {
	want := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	for retryCount, d := range want {
		if got := backoffDelay(retryCount); got != d {
			t.Errorf("backoffDelay(%d) = %v, want %v", retryCount, got, d)
		}
	}
}

func TestClearCompleted(t *testing.T) {
	store := setupStore(t)
	createItem(t, store, "Stale failure")

	entries, _ := store.PendingQueueEntries()
	if err := store.RecordQueueFailure(entries[0].ID, "HTTP 500", true); err != nil {
		t.Fatalf("RecordQueueFailure failed: %v", err)
	}

	engine := newTestEngine(store, okHandlers(nil))

	// Freshly failed, still within the inspection TTL
	n, err := engine.ClearCompleted()
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if n != 0 {
		t.Errorf("ClearCompleted removed %d fresh entries, want 0", n)
	}

	// Age the entry past the TTL
	_, err = store.Conn().Exec(`UPDATE sync_queue SET last_attempt_at = ?`,
		time.Now().UTC().Add(-25*time.Hour))
	if err != nil {
		t.Fatalf("age entry: %v", err)
	}

	n, err = engine.ClearCompleted()
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ClearCompleted removed %d, want 1", n)
	}
}
