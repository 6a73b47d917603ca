package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/google/uuid"
)

// checklistSnapshot is the metadata-only queue payload for a checklist item.
type checklistSnapshot struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	Phase       string     `json:"phase"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func snapshotChecklistItem(item *models.ChecklistItem) checklistSnapshot {
	return checklistSnapshot{
		ID:          item.ID,
		ReviewID:    item.ReviewID,
		Phase:       string(item.Phase),
		Title:       item.Title,
		Completed:   item.Completed,
		CompletedAt: item.CompletedAt,
		CompletedBy: item.CompletedBy,
		Notes:       item.Notes,
		UpdatedAt:   item.UpdatedAt,
	}
}

// CreateChecklistItem inserts a checklist item and enqueues its create in one
// transaction. Assigns an ID when the caller did not.
func (db *DB) CreateChecklistItem(item *models.ChecklistItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.SyncStatus = models.SyncPending

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO checklist_items (id, review_id, phase, title, completed, completed_at, completed_by, notes, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ReviewID, string(item.Phase), item.Title,
		boolToInt(item.Completed), nullableTime(item.CompletedAt), item.CompletedBy, item.Notes,
		string(item.SyncStatus), now, now)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}

	if err := enqueueTx(tx, models.EntityChecklistItem, item.ID, models.ActionCreate, snapshotChecklistItem(item)); err != nil {
		return err
	}
	return tx.Commit()
}

// CompleteChecklistItem marks an item complete, records the actor, and
// enqueues the update.
func (db *DB) CompleteChecklistItem(id, actor string) error {
	item, err := db.GetChecklistItem(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	item.Completed = true
	item.CompletedAt = &now
	item.CompletedBy = actor
	item.UpdatedAt = now

	return db.updateChecklistItem(item)
}

// AnnotateChecklistItem replaces the free-text notes on an item and enqueues
// the update.
func (db *DB) AnnotateChecklistItem(id, notes string) error {
	item, err := db.GetChecklistItem(id)
	if err != nil {
		return err
	}

	item.Notes = notes
	item.UpdatedAt = time.Now().UTC()

	return db.updateChecklistItem(item)
}

func (db *DB) updateChecklistItem(item *models.ChecklistItem) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE checklist_items
		SET completed = ?, completed_at = ?, completed_by = ?, notes = ?, sync_status = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(item.Completed), nullableTime(item.CompletedAt), item.CompletedBy, item.Notes,
		string(models.SyncPending), item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}

	if err := enqueueTx(tx, models.EntityChecklistItem, item.ID, models.ActionUpdate, snapshotChecklistItem(item)); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteSyncedChecklistItem removes an item locally without enqueueing; used
// only by retention cleanup after a confirmed sync.
func (db *DB) DeleteSyncedChecklistItem(id string) error {
	_, err := db.conn.Exec(`DELETE FROM checklist_items WHERE id = ? AND sync_status = 'synced'`, id)
	return err
}

const checklistColumns = `id, review_id, phase, title, completed,
	COALESCE(completed_at, ''), COALESCE(completed_by, ''), COALESCE(notes, ''),
	sync_status, created_at, updated_at`

func scanChecklistItem(scan func(...any) error) (*models.ChecklistItem, error) {
	var (
		item               models.ChecklistItem
		completed          int
		completedAt        sql.NullString
		createdAt, updated string
	)
	err := scan(&item.ID, &item.ReviewID, &item.Phase, &item.Title, &completed,
		&completedAt, &item.CompletedBy, &item.Notes, &item.SyncStatus, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	item.Completed = completed != 0
	if item.CompletedAt, err = scanNullableTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &item, nil
}

// GetChecklistItem returns a single item by ID.
func (db *DB) GetChecklistItem(id string) (*models.ChecklistItem, error) {
	row := db.conn.QueryRow(`SELECT `+checklistColumns+` FROM checklist_items WHERE id = ?`, id)
	item, err := scanChecklistItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checklist item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist item: %w", err)
	}
	return item, nil
}

// ListChecklistItems returns a review's items, optionally filtered by phase.
func (db *DB) ListChecklistItems(reviewID string, phase models.Phase) ([]models.ChecklistItem, error) {
	query := `SELECT ` + checklistColumns + ` FROM checklist_items WHERE review_id = ?`
	args := []any{reviewID}
	if phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checklist items: %w", err)
	}
	defer rows.Close()

	var items []models.ChecklistItem
	for rows.Next() {
		item, err := scanChecklistItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
