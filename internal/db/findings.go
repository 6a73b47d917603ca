package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/google/uuid"
)

// findingSnapshot is the queue payload for a draft finding. Evidence
// references are carried as bare IDs; the evidence syncs independently.
type findingSnapshot struct {
	ID          string         `json:"id"`
	ReviewID    string         `json:"review_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Severity    string         `json:"severity"`
	AreaCode    string         `json:"area_code,omitempty"`
	QuestionID  string         `json:"question_id,omitempty"`
	EvidenceIDs []string       `json:"evidence_ids,omitempty"`
	GPS         *models.GPSFix `json:"gps,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func snapshotFinding(f *models.DraftFinding) findingSnapshot {
	return findingSnapshot{
		ID:          f.ID,
		ReviewID:    f.ReviewID,
		Title:       f.Title,
		Description: f.Description,
		Severity:    string(f.Severity),
		AreaCode:    f.AreaCode,
		QuestionID:  f.QuestionID,
		EvidenceIDs: f.EvidenceIDs,
		GPS:         f.GPS,
		UpdatedAt:   f.UpdatedAt,
	}
}

// CreateFinding inserts a draft finding and enqueues its create in one
// transaction.
func (db *DB) CreateFinding(f *models.DraftFinding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	f.SyncStatus = models.SyncPending

	evidenceIDs, err := json.Marshal(f.EvidenceIDs)
	if err != nil {
		return fmt.Errorf("marshal evidence ids: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lat, lon, acc := gpsColumns(f.GPS)
	_, err = tx.Exec(`
		INSERT INTO draft_findings (id, review_id, title, description, severity, area_code, question_id,
			evidence_ids, gps_lat, gps_lon, gps_accuracy, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ReviewID, f.Title, f.Description, string(f.Severity), f.AreaCode, f.QuestionID,
		string(evidenceIDs), lat, lon, acc, string(f.SyncStatus), now, now)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}

	if err := enqueueTx(tx, models.EntityDraftFinding, f.ID, models.ActionCreate, snapshotFinding(f)); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateFinding rewrites a draft's mutable fields and enqueues the update.
func (db *DB) UpdateFinding(f *models.DraftFinding) error {
	f.UpdatedAt = time.Now().UTC()

	evidenceIDs, err := json.Marshal(f.EvidenceIDs)
	if err != nil {
		return fmt.Errorf("marshal evidence ids: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lat, lon, acc := gpsColumns(f.GPS)
	_, err = tx.Exec(`
		UPDATE draft_findings
		SET title = ?, description = ?, severity = ?, area_code = ?, question_id = ?,
			evidence_ids = ?, gps_lat = ?, gps_lon = ?, gps_accuracy = ?, sync_status = ?, updated_at = ?
		WHERE id = ?`,
		f.Title, f.Description, string(f.Severity), f.AreaCode, f.QuestionID,
		string(evidenceIDs), lat, lon, acc, string(models.SyncPending), f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("update finding: %w", err)
	}

	if err := enqueueTx(tx, models.EntityDraftFinding, f.ID, models.ActionUpdate, snapshotFinding(f)); err != nil {
		return err
	}
	return tx.Commit()
}

// DiscardFinding deletes a draft locally. Unsynced drafts vanish without a
// remote call; drafts the remote has seen get a delete entry.
func (db *DB) DiscardFinding(id string) error {
	f, err := db.GetFinding(id)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM draft_findings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete finding: %w", err)
	}
	if err := dropPendingEntriesTx(tx, models.EntityDraftFinding, id); err != nil {
		return fmt.Errorf("drop pending entries: %w", err)
	}
	if f.SyncStatus == models.SyncSynced || f.SyncStatus == models.SyncConflict {
		payload := map[string]string{"id": id, "review_id": f.ReviewID}
		if err := enqueueTx(tx, models.EntityDraftFinding, id, models.ActionDelete, payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteSyncedFinding removes a record locally without enqueueing; used only
// by retention cleanup after a confirmed sync.
func (db *DB) DeleteSyncedFinding(id string) error {
	_, err := db.conn.Exec(`DELETE FROM draft_findings WHERE id = ? AND sync_status = 'synced'`, id)
	return err
}

const findingColumns = `id, review_id, title, COALESCE(description, ''), severity,
	COALESCE(area_code, ''), COALESCE(question_id, ''), COALESCE(evidence_ids, '[]'),
	gps_lat, gps_lon, gps_accuracy, sync_status, created_at, updated_at`

func scanFinding(scan func(...any) error) (*models.DraftFinding, error) {
	var (
		f             models.DraftFinding
		evidenceIDs   string
		lat, lon, acc sql.NullFloat64
		cAt, uAt      string
	)
	err := scan(&f.ID, &f.ReviewID, &f.Title, &f.Description, &f.Severity,
		&f.AreaCode, &f.QuestionID, &evidenceIDs, &lat, &lon, &acc, &f.SyncStatus, &cAt, &uAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(evidenceIDs), &f.EvidenceIDs); err != nil {
		return nil, fmt.Errorf("unmarshal evidence ids: %w", err)
	}
	if lat.Valid && lon.Valid {
		f.GPS = &models.GPSFix{Latitude: lat.Float64, Longitude: lon.Float64, Accuracy: acc.Float64}
	}
	if f.CreatedAt, err = parseTimestamp(cAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if f.UpdatedAt, err = parseTimestamp(uAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &f, nil
}

// GetFinding returns a single draft finding by ID.
func (db *DB) GetFinding(id string) (*models.DraftFinding, error) {
	row := db.conn.QueryRow(`SELECT `+findingColumns+` FROM draft_findings WHERE id = ?`, id)
	f, err := scanFinding(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("finding %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get finding: %w", err)
	}
	return f, nil
}

// ListFindings returns a review's draft findings.
func (db *DB) ListFindings(reviewID string) ([]models.DraftFinding, error) {
	rows, err := db.conn.Query(`
		SELECT `+findingColumns+` FROM draft_findings
		WHERE review_id = ? ORDER BY created_at ASC, rowid ASC`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []models.DraftFinding
	for rows.Next() {
		f, err := scanFinding(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, *f)
	}
	return findings, rows.Err()
}
