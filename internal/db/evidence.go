package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/google/uuid"
)

// evidenceSnapshot is the metadata-only queue payload for field evidence.
// The blob never travels through the queue; handlers load it from the store
// at push time.
type evidenceSnapshot struct {
	ID              string         `json:"id"`
	ReviewID        string         `json:"review_id"`
	ChecklistItemID string         `json:"checklist_item_id"`
	Type            string         `json:"type"`
	MimeType        string         `json:"mime_type"`
	FileName        string         `json:"file_name"`
	FileSize        int64          `json:"file_size"`
	GPS             *models.GPSFix `json:"gps,omitempty"`
	CapturedAt      time.Time      `json:"captured_at"`
	Annotated       bool           `json:"annotated"`
}

func snapshotEvidence(ev *models.FieldEvidence) evidenceSnapshot {
	return evidenceSnapshot{
		ID:              ev.ID,
		ReviewID:        ev.ReviewID,
		ChecklistItemID: ev.ChecklistItemID,
		Type:            string(ev.Type),
		MimeType:        ev.MimeType,
		FileName:        ev.FileName,
		FileSize:        ev.FileSize,
		GPS:             ev.GPS,
		CapturedAt:      ev.CapturedAt,
		Annotated:       ev.Annotated,
	}
}

// CreateEvidence inserts a captured artifact with its blob and enqueues the
// create in one transaction.
func (db *DB) CreateEvidence(ev *models.FieldEvidence) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	ev.FileSize = int64(len(ev.Data))
	ev.SyncStatus = models.SyncPending
	if ev.CapturedAt.IsZero() {
		ev.CapturedAt = now
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lat, lon, acc := gpsColumns(ev.GPS)
	_, err = tx.Exec(`
		INSERT INTO field_evidence (id, review_id, checklist_item_id, type, mime_type, file_name, file_size,
			data, thumbnail, gps_lat, gps_lon, gps_accuracy, captured_at, annotated, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ReviewID, ev.ChecklistItemID, string(ev.Type), ev.MimeType, ev.FileName, ev.FileSize,
		ev.Data, ev.Thumbnail, lat, lon, acc, ev.CapturedAt, boolToInt(ev.Annotated),
		string(ev.SyncStatus), now, now)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}

	if err := enqueueTx(tx, models.EntityFieldEvidence, ev.ID, models.ActionCreate, snapshotEvidence(ev)); err != nil {
		return err
	}
	return tx.Commit()
}

// AnnotateEvidence replaces the blob with an annotated version (markup
// flattens into the same blob slot) and enqueues the update. Refused while
// the record is mid-upload: the transport holds a read-only borrow of the
// blob and must never observe a concurrent rewrite.
func (db *DB) AnnotateEvidence(id string, data, thumbnail []byte) error {
	ev, err := db.GetEvidence(id)
	if err != nil {
		return err
	}
	if ev.SyncStatus == models.SyncSyncing {
		return fmt.Errorf("annotate evidence %s: %w", id, ErrBlobBusy)
	}

	now := time.Now().UTC()
	ev.Data = data
	ev.Thumbnail = thumbnail
	ev.FileSize = int64(len(data))
	ev.Annotated = true
	ev.UpdatedAt = now

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE field_evidence
		SET data = ?, thumbnail = ?, file_size = ?, annotated = 1, sync_status = ?, updated_at = ?
		WHERE id = ?`,
		ev.Data, ev.Thumbnail, ev.FileSize, string(models.SyncPending), now, id)
	if err != nil {
		return fmt.Errorf("update evidence blob: %w", err)
	}

	if err := enqueueTx(tx, models.EntityFieldEvidence, id, models.ActionUpdate, snapshotEvidence(ev)); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEvidence removes an artifact locally. Outstanding queue entries for
// it are superseded; a remote delete is enqueued only when the remote has
// seen the record (synced or conflict), so the server is never asked to
// delete something it never received.
func (db *DB) DeleteEvidence(id string) error {
	ev, err := db.GetEvidenceMeta(id)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM field_evidence WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	if err := dropPendingEntriesTx(tx, models.EntityFieldEvidence, id); err != nil {
		return fmt.Errorf("drop pending entries: %w", err)
	}
	if ev.SyncStatus == models.SyncSynced || ev.SyncStatus == models.SyncConflict {
		payload := map[string]string{"id": id, "review_id": ev.ReviewID}
		if err := enqueueTx(tx, models.EntityFieldEvidence, id, models.ActionDelete, payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteSyncedEvidence removes a record locally without enqueueing; used only
// by retention cleanup after a confirmed sync.
func (db *DB) DeleteSyncedEvidence(id string) error {
	_, err := db.conn.Exec(`DELETE FROM field_evidence WHERE id = ? AND sync_status = 'synced'`, id)
	return err
}

const evidenceMetaColumns = `id, review_id, checklist_item_id, type, mime_type, file_name, file_size,
	gps_lat, gps_lon, gps_accuracy, captured_at, annotated, sync_status, created_at, updated_at`

func scanEvidence(scan func(...any) error, withBlobs bool) (*models.FieldEvidence, error) {
	var (
		ev            models.FieldEvidence
		lat, lon, acc sql.NullFloat64
		annotated     int
		capAt, cAt, uAt string
	)
	dest := []any{&ev.ID, &ev.ReviewID, &ev.ChecklistItemID, &ev.Type, &ev.MimeType,
		&ev.FileName, &ev.FileSize, &lat, &lon, &acc, &capAt, &annotated,
		&ev.SyncStatus, &cAt, &uAt}
	if withBlobs {
		dest = append(dest, &ev.Data, &ev.Thumbnail)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	ev.Annotated = annotated != 0
	if lat.Valid && lon.Valid {
		ev.GPS = &models.GPSFix{Latitude: lat.Float64, Longitude: lon.Float64, Accuracy: acc.Float64}
	}
	var err error
	if ev.CapturedAt, err = parseTimestamp(capAt); err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}
	if ev.CreatedAt, err = parseTimestamp(cAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if ev.UpdatedAt, err = parseTimestamp(uAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &ev, nil
}

// GetEvidence returns a full record including blobs. Callers other than the
// upload path should prefer GetEvidenceMeta.
func (db *DB) GetEvidence(id string) (*models.FieldEvidence, error) {
	row := db.conn.QueryRow(`
		SELECT `+evidenceMetaColumns+`, data, thumbnail FROM field_evidence WHERE id = ?`, id)
	ev, err := scanEvidence(row.Scan, true)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evidence %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return ev, nil
}

// GetEvidenceMeta returns a record without loading its blobs.
func (db *DB) GetEvidenceMeta(id string) (*models.FieldEvidence, error) {
	row := db.conn.QueryRow(`SELECT `+evidenceMetaColumns+` FROM field_evidence WHERE id = ?`, id)
	ev, err := scanEvidence(row.Scan, false)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evidence %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence meta: %w", err)
	}
	return ev, nil
}

// ListEvidence returns a review's evidence metadata, blobs excluded.
func (db *DB) ListEvidence(reviewID string) ([]models.FieldEvidence, error) {
	rows, err := db.conn.Query(`
		SELECT `+evidenceMetaColumns+` FROM field_evidence
		WHERE review_id = ? ORDER BY captured_at ASC, rowid ASC`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var list []models.FieldEvidence
	for rows.Next() {
		ev, err := scanEvidence(rows.Scan, false)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		list = append(list, *ev)
	}
	return list, rows.Err()
}

// ListEvidenceWithBlobs returns a review's evidence including blobs; used by
// the emergency export.
func (db *DB) ListEvidenceWithBlobs(reviewID string) ([]models.FieldEvidence, error) {
	rows, err := db.conn.Query(`
		SELECT `+evidenceMetaColumns+`, data, thumbnail FROM field_evidence
		WHERE review_id = ? ORDER BY captured_at ASC, rowid ASC`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var list []models.FieldEvidence
	for rows.Next() {
		ev, err := scanEvidence(rows.Scan, true)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		list = append(list, *ev)
	}
	return list, rows.Err()
}

func gpsColumns(gps *models.GPSFix) (lat, lon, acc any) {
	if gps == nil {
		return nil, nil, nil
	}
	return gps.Latitude, gps.Longitude, gps.Accuracy
}
