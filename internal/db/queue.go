package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget a new queue entry starts with.
const DefaultMaxRetries = 3

// enqueueTx inserts a sync queue entry within an entity mutation's
// transaction. Every mutating helper in this package calls it from the same
// transaction as the entity write; an entity mutation without a matching
// queue entry is a lost update.
func enqueueTx(tx *sql.Tx, entityType models.EntityType, entityID string, action models.Action, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO sync_queue (id, entity_type, entity_id, action, payload, max_retries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(entityType), entityID, string(action), string(data),
		DefaultMaxRetries, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", entityType, action, err)
	}
	return nil
}

// dropPendingEntriesTx removes outstanding queue entries for an entity.
// Used when a local delete supersedes earlier unsynced mutations.
func dropPendingEntriesTx(tx *sql.Tx, entityType models.EntityType, entityID string) error {
	_, err := tx.Exec(`DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	return err
}

const queueColumns = `id, entity_type, entity_id, action, payload, retry_count, max_retries,
	COALESCE(last_attempt_at, ''), COALESCE(last_error, ''), conflicted, created_at`

func scanQueueEntry(rows *sql.Rows) (models.QueueEntry, error) {
	var (
		e                  models.QueueEntry
		payload            string
		lastAttempt, cAt   string
		conflicted         int
	)
	if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &payload,
		&e.RetryCount, &e.MaxRetries, &lastAttempt, &e.LastError, &conflicted, &cAt); err != nil {
		return e, fmt.Errorf("scan queue entry: %w", err)
	}
	e.Payload = json.RawMessage(payload)
	e.Conflicted = conflicted != 0
	if lastAttempt != "" {
		t, err := parseTimestamp(lastAttempt)
		if err != nil {
			return e, fmt.Errorf("parse last_attempt_at: %w", err)
		}
		e.LastAttemptAt = &t
	}
	t, err := parseTimestamp(cAt)
	if err != nil {
		return e, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

// PendingQueueEntries returns all entries still inside their retry budget,
// in strict creation order across entity types.
func (db *DB) PendingQueueEntries() ([]models.QueueEntry, error) {
	rows, err := db.conn.Query(`
		SELECT `+queueColumns+`
		FROM sync_queue
		WHERE retry_count < max_retries
		ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListQueueEntries returns every queue entry, newest last.
func (db *DB) ListQueueEntries() ([]models.QueueEntry, error) {
	rows, err := db.conn.Query(`SELECT ` + queueColumns + ` FROM sync_queue ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteQueueEntry removes a queue entry after a confirmed push.
func (db *DB) DeleteQueueEntry(id string) error {
	_, err := db.conn.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry %s: %w", id, err)
	}
	return nil
}

// RecordQueueFailure bumps the retry counter and stores the error. When
// exhaust is true the entry's budget is spent immediately (permanent
// failures never earn another attempt).
func (db *DB) RecordQueueFailure(id, errMsg string, exhaust bool) error {
	var err error
	if exhaust {
		_, err = db.conn.Exec(`
			UPDATE sync_queue SET retry_count = max_retries, last_error = ?, last_attempt_at = ?
			WHERE id = ?`, errMsg, time.Now().UTC(), id)
	} else {
		_, err = db.conn.Exec(`
			UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ?, last_attempt_at = ?
			WHERE id = ?`, errMsg, time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("record queue failure %s: %w", id, err)
	}
	return nil
}

// FreezeConflict parks a conflicted entry: budget spent, conflict flag set,
// excluded from RetryFailed's bulk reset.
func (db *DB) FreezeConflict(id, errMsg string) error {
	_, err := db.conn.Exec(`
		UPDATE sync_queue SET retry_count = max_retries, conflicted = 1, last_error = ?, last_attempt_at = ?
		WHERE id = ?`, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("freeze conflict %s: %w", id, err)
	}
	return nil
}

// ResetFailedEntries restores exhausted non-conflict entries to a fresh retry
// budget and flips their entities back to pending. Returns the reset count.
func (db *DB) ResetFailedEntries() (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, entity_type, entity_id FROM sync_queue
		WHERE retry_count >= max_retries AND conflicted = 0`)
	if err != nil {
		return 0, fmt.Errorf("query failed entries: %w", err)
	}

	type target struct {
		id, entityID string
		entityType   models.EntityType
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.entityType, &t.entityID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan failed entry: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, t := range targets {
		if _, err := tx.Exec(`
			UPDATE sync_queue SET retry_count = 0, last_error = '' WHERE id = ?`, t.id); err != nil {
			return 0, fmt.Errorf("reset entry %s: %w", t.id, err)
		}
		if err := setEntitySyncStatusTx(tx, t.entityType, t.entityID, models.SyncPending); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return len(targets), nil
}

// DeleteExhaustedBefore garbage-collects exhausted entries whose last attempt
// is older than the cutoff. Returns the number removed.
func (db *DB) DeleteExhaustedBefore(cutoff time.Time) (int, error) {
	res, err := db.conn.Exec(`
		DELETE FROM sync_queue
		WHERE retry_count >= max_retries
		  AND last_attempt_at IS NOT NULL
		  AND last_attempt_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete exhausted entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// QueueCounts returns the number of entries still inside their budget and
// the number exhausted without a conflict. Conflicts are counted separately,
// from the entity tables.
func (db *DB) QueueCounts() (pending, failed int, err error) {
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE retry_count < max_retries`).Scan(&pending)
	if err != nil {
		return 0, 0, fmt.Errorf("count pending: %w", err)
	}
	err = db.conn.QueryRow(`
		SELECT COUNT(*) FROM sync_queue WHERE retry_count >= max_retries AND conflicted = 0`).Scan(&failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count failed: %w", err)
	}
	return pending, failed, nil
}

// CountConflicts aggregates conflict-status rows across the three
// conflict-capable entity tables.
func (db *DB) CountConflicts() (int, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM checklist_items WHERE sync_status = 'conflict') +
			(SELECT COUNT(*) FROM field_evidence WHERE sync_status = 'conflict') +
			(SELECT COUNT(*) FROM draft_findings WHERE sync_status = 'conflict')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return n, nil
}

// LastQueueError returns the most recently recorded handler error, or "".
func (db *DB) LastQueueError() (string, error) {
	var msg string
	err := db.conn.QueryRow(`
		SELECT last_error FROM sync_queue
		WHERE last_error != ''
		ORDER BY last_attempt_at DESC LIMIT 1`).Scan(&msg)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last error: %w", err)
	}
	return msg, nil
}

// SetEntitySyncStatus updates the sync status on the entity a queue entry
// targets. The sync engine is the only caller once an entry exists.
func (db *DB) SetEntitySyncStatus(entityType models.EntityType, entityID string, status models.SyncStatus) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := setEntitySyncStatusTx(tx, entityType, entityID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func setEntitySyncStatusTx(tx *sql.Tx, entityType models.EntityType, entityID string, status models.SyncStatus) error {
	var err error
	switch entityType {
	case models.EntityChecklistItem:
		_, err = tx.Exec(`UPDATE checklist_items SET sync_status = ? WHERE id = ?`, string(status), entityID)
	case models.EntityFieldEvidence:
		_, err = tx.Exec(`UPDATE field_evidence SET sync_status = ? WHERE id = ?`, string(status), entityID)
	case models.EntityDraftFinding:
		_, err = tx.Exec(`UPDATE draft_findings SET sync_status = ? WHERE id = ?`, string(status), entityID)
	case models.EntityOfflineSession:
		// Sessions carry no sync_status; a successful push stamps synced_at.
		if status == models.SyncSynced {
			_, err = tx.Exec(`UPDATE offline_sessions SET synced_at = ? WHERE id = ?`, time.Now().UTC(), entityID)
		}
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	if err != nil {
		return fmt.Errorf("set %s %s status %s: %w", entityType, entityID, status, err)
	}
	return nil
}

// GetLastSyncAt returns the time of the last drain that synced at least one
// entry, or nil if none has.
func (db *DB) GetLastSyncAt() (*time.Time, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'last_sync_at'`).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last sync: %w", err)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("parse last sync: %w", err)
	}
	return &t, nil
}

// SetLastSyncAt records the time of the last successful drain.
func (db *DB) SetLastSyncAt(t time.Time) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('last_sync_at', ?)`,
		t.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set last sync: %w", err)
	}
	return nil
}
