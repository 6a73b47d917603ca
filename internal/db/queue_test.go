package db

import (
	"testing"
	"time"

	"github.com/arden/fieldsync/internal/models"
)

func createTestItem(t *testing.T, db *DB, title string) *models.ChecklistItem {
	t.Helper()
	item := &models.ChecklistItem{ReviewID: "rev-1", Phase: models.PhaseOnSite, Title: title}
	if err := db.CreateChecklistItem(item); err != nil {
		t.Fatalf("CreateChecklistItem failed: %v", err)
	}
	return item
}

func TestQueueFIFOAcrossEntityTypes(t *testing.T) {
	db := setupDB(t)

	item := createTestItem(t, db, "First")
	f := &models.DraftFinding{ReviewID: "rev-1", Title: "Second", Severity: models.SeverityMinor}
	if err := db.CreateFinding(f); err != nil {
		t.Fatalf("CreateFinding failed: %v", err)
	}
	if err := db.CompleteChecklistItem(item.ID, "reviewer-7"); err != nil {
		t.Fatalf("CompleteChecklistItem failed: %v", err)
	}

	entries, err := db.PendingQueueEntries()
	if err != nil {
		t.Fatalf("PendingQueueEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	want := []struct {
		entityType models.EntityType
		action     models.Action
	}{
		{models.EntityChecklistItem, models.ActionCreate},
		{models.EntityDraftFinding, models.ActionCreate},
		{models.EntityChecklistItem, models.ActionUpdate},
	}
	for i, w := range want {
		if entries[i].EntityType != w.entityType || entries[i].Action != w.action {
			t.Errorf("Entry %d: got %s/%s, want %s/%s",
				i, entries[i].EntityType, entries[i].Action, w.entityType, w.action)
		}
	}
}

func TestRecordQueueFailure(t *testing.T) {
	db := setupDB(t)

	createTestItem(t, db, "Flaky")
	entries, _ := db.PendingQueueEntries()
	id := entries[0].ID

	if err := db.RecordQueueFailure(id, "server error (502)", false); err != nil {
		t.Fatalf("RecordQueueFailure failed: %v", err)
	}

	entries, _ = db.PendingQueueEntries()
	if len(entries) != 1 {
		t.Fatalf("Entry left pending set after one failure, got %d entries", len(entries))
	}
	e := entries[0]
	if e.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", e.RetryCount)
	}
	if e.LastError != "server error (502)" {
		t.Errorf("LastError = %q", e.LastError)
	}
	if e.LastAttemptAt == nil {
		t.Error("LastAttemptAt not stamped")
	}
	if e.Exhausted() {
		t.Error("Entry exhausted after a single failure")
	}

	// Two more failures spend the budget
	db.RecordQueueFailure(id, "server error (502)", false)
	db.RecordQueueFailure(id, "server error (502)", false)

	entries, _ = db.PendingQueueEntries()
	if len(entries) != 0 {
		t.Errorf("Exhausted entry still pending, got %d entries", len(entries))
	}

	pending, failed, err := db.QueueCounts()
	if err != nil {
		t.Fatalf("QueueCounts failed: %v", err)
	}
	if pending != 0 || failed != 1 {
		t.Errorf("Counts = %d pending, %d failed; want 0, 1", pending, failed)
	}
}

func TestRecordQueueFailureExhaust(t *testing.T) {
	db := setupDB(t)

	createTestItem(t, db, "Rejected")
	entries, _ := db.PendingQueueEntries()

	if err := db.RecordQueueFailure(entries[0].ID, "validation failed: missing area code", true); err != nil {
		t.Fatalf("RecordQueueFailure failed: %v", err)
	}

	// One permanent rejection spends the whole budget
	remaining, _ := db.PendingQueueEntries()
	if len(remaining) != 0 {
		t.Errorf("Permanently failed entry still pending, got %d entries", len(remaining))
	}

	msg, err := db.LastQueueError()
	if err != nil {
		t.Fatalf("LastQueueError failed: %v", err)
	}
	if msg != "validation failed: missing area code" {
		t.Errorf("LastQueueError = %q", msg)
	}
}

func TestResetFailedEntriesSkipsConflicts(t *testing.T) {
	db := setupDB(t)

	failedItem := createTestItem(t, db, "Failed")
	conflictItem := createTestItem(t, db, "Conflicted")

	entries, _ := db.PendingQueueEntries()
	var failedEntry, conflictEntry models.QueueEntry
	for _, e := range entries {
		switch e.EntityID {
		case failedItem.ID:
			failedEntry = e
		case conflictItem.ID:
			conflictEntry = e
		}
	}

	if err := db.RecordQueueFailure(failedEntry.ID, "server error (500)", true); err != nil {
		t.Fatalf("RecordQueueFailure failed: %v", err)
	}
	db.SetEntitySyncStatus(models.EntityChecklistItem, failedItem.ID, models.SyncFailed)

	if err := db.FreezeConflict(conflictEntry.ID, "conflict (409)"); err != nil {
		t.Fatalf("FreezeConflict failed: %v", err)
	}
	db.SetEntitySyncStatus(models.EntityChecklistItem, conflictItem.ID, models.SyncConflict)

	n, err := db.ResetFailedEntries()
	if err != nil {
		t.Fatalf("ResetFailedEntries failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Reset %d entries, want 1", n)
	}

	pending, _ := db.PendingQueueEntries()
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending entry after reset, got %d", len(pending))
	}
	if pending[0].ID != failedEntry.ID {
		t.Error("Wrong entry reset")
	}
	if pending[0].RetryCount != 0 {
		t.Errorf("RetryCount = %d after reset, want 0", pending[0].RetryCount)
	}

	item, _ := db.GetChecklistItem(failedItem.ID)
	if item.SyncStatus != models.SyncPending {
		t.Errorf("Reset entity SyncStatus = %s, want pending", item.SyncStatus)
	}
	item, _ = db.GetChecklistItem(conflictItem.ID)
	if item.SyncStatus != models.SyncConflict {
		t.Errorf("Conflicted entity SyncStatus = %s, want conflict", item.SyncStatus)
	}

	conflicts, err := db.CountConflicts()
	if err != nil {
		t.Fatalf("CountConflicts failed: %v", err)
	}
	if conflicts != 1 {
		t.Errorf("CountConflicts = %d, want 1", conflicts)
	}
}

func TestDeleteExhaustedBefore(t *testing.T) {
	db := setupDB(t)

	createTestItem(t, db, "Old failure")
	createTestItem(t, db, "Still pending")

	entries, _ := db.PendingQueueEntries()
	if err := db.RecordQueueFailure(entries[0].ID, "server error (500)", true); err != nil {
		t.Fatalf("RecordQueueFailure failed: %v", err)
	}

	// Cutoff before the failure: nothing is old enough
	n, err := db.DeleteExhaustedBefore(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteExhaustedBefore failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Deleted %d entries with past cutoff, want 0", n)
	}

	// Cutoff after the failure: the exhausted entry goes, the pending one stays
	n, err = db.DeleteExhaustedBefore(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteExhaustedBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Deleted %d entries, want 1", n)
	}

	all, _ := db.ListQueueEntries()
	if len(all) != 1 {
		t.Errorf("Expected 1 surviving entry, got %d", len(all))
	}
}

func TestGCCollectsConflictEntriesButKeepsEntityMarker(t *testing.T) {
	db := setupDB(t)

	item := createTestItem(t, db, "Parked conflict")
	entries, _ := db.PendingQueueEntries()

	if err := db.FreezeConflict(entries[0].ID, "conflict (409)"); err != nil {
		t.Fatalf("FreezeConflict failed: %v", err)
	}
	db.SetEntitySyncStatus(models.EntityChecklistItem, item.ID, models.SyncConflict)

	n, err := db.DeleteExhaustedBefore(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteExhaustedBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Deleted %d entries, want 1", n)
	}

	// The entity-level conflict marker survives the queue GC
	got, _ := db.GetChecklistItem(item.ID)
	if got.SyncStatus != models.SyncConflict {
		t.Errorf("SyncStatus = %s after GC, want conflict", got.SyncStatus)
	}
}

func TestLastSyncAt(t *testing.T) {
	db := setupDB(t)

	got, err := db.GetLastSyncAt()
	if err != nil {
		t.Fatalf("GetLastSyncAt failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil before any sync, got %v", got)
	}

	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := db.SetLastSyncAt(want); err != nil {
		t.Fatalf("SetLastSyncAt failed: %v", err)
	}

	got, err = db.GetLastSyncAt()
	if err != nil {
		t.Fatalf("GetLastSyncAt failed: %v", err)
	}
	if got == nil || !got.Equal(want) {
		t.Errorf("GetLastSyncAt = %v, want %v", got, want)
	}
}

func TestDeleteSyncedOlderThan(t *testing.T) {
	db := setupDB(t)

	syncedItem := createTestItem(t, db, "Synced and old")
	pendingItem := createTestItem(t, db, "Still pending")

	ev := &models.FieldEvidence{
		ReviewID: "rev-1", ChecklistItemID: syncedItem.ID,
		Type: models.EvidencePhoto, MimeType: "image/jpeg", FileName: "a.jpg",
		Data: []byte("x"),
	}
	if err := db.CreateEvidence(ev); err != nil {
		t.Fatalf("CreateEvidence failed: %v", err)
	}

	db.SetEntitySyncStatus(models.EntityChecklistItem, syncedItem.ID, models.SyncSynced)
	db.SetEntitySyncStatus(models.EntityFieldEvidence, ev.ID, models.SyncSynced)

	// Everything is newer than a cutoff in the past
	n, err := db.DeleteSyncedOlderThan(time.Now().Add(-time.Hour).UTC())
	if err != nil {
		t.Fatalf("DeleteSyncedOlderThan failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Deleted %d records with past cutoff, want 0", n)
	}

	// Future cutoff removes synced records only
	n, err = db.DeleteSyncedOlderThan(time.Now().Add(time.Hour).UTC())
	if err != nil {
		t.Fatalf("DeleteSyncedOlderThan failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Deleted %d records, want 2", n)
	}

	if _, err := db.GetChecklistItem(syncedItem.ID); err == nil {
		t.Error("Synced item survived cleanup")
	}
	if _, err := db.GetChecklistItem(pendingItem.ID); err != nil {
		t.Errorf("Pending item removed by cleanup: %v", err)
	}
	if _, err := db.GetEvidenceMeta(ev.ID); err == nil {
		t.Error("Synced evidence survived cleanup")
	}
}
