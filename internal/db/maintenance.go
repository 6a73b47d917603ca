package db

import (
	"fmt"
	"time"
)

// DeleteSyncedOlderThan removes synced checklist items, evidence, and draft
// findings last touched before cutoff, in one transaction. Records still
// pending, failed, or conflicted are never touched. Returns the total count
// of rows deleted.
func (db *DB) DeleteSyncedOlderThan(cutoff time.Time) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, stmt := range []struct {
		name  string
		query string
	}{
		{"checklist_items", `DELETE FROM checklist_items WHERE sync_status = 'synced' AND updated_at < ?`},
		{"field_evidence", `DELETE FROM field_evidence WHERE sync_status = 'synced' AND captured_at < ?`},
		{"draft_findings", `DELETE FROM draft_findings WHERE sync_status = 'synced' AND updated_at < ?`},
	} {
		res, err := tx.Exec(stmt.query, cutoff)
		if err != nil {
			return 0, fmt.Errorf("delete synced %s: %w", stmt.name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for %s: %w", stmt.name, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return total, nil
}
