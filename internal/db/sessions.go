package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/google/uuid"
)

type sessionSnapshot struct {
	ID         string     `json:"id"`
	ReviewID   string     `json:"review_id"`
	ReviewerID string     `json:"reviewer_id"`
	Device     string     `json:"device,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

func snapshotSession(s *models.OfflineSession) sessionSnapshot {
	return sessionSnapshot{
		ID:         s.ID,
		ReviewID:   s.ReviewID,
		ReviewerID: s.ReviewerID,
		Device:     s.Device,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
}

// StartSession opens an offline working window and enqueues its create.
func (db *DB) StartSession(s *models.OfflineSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO offline_sessions (id, review_id, reviewer_id, device, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.ReviewID, s.ReviewerID, s.Device, s.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := enqueueTx(tx, models.EntityOfflineSession, s.ID, models.ActionCreate, snapshotSession(s)); err != nil {
		return err
	}
	return tx.Commit()
}

// EndSession closes an offline working window and enqueues the update.
func (db *DB) EndSession(id string) error {
	s, err := db.GetSession(id)
	if err != nil {
		return err
	}
	if s.EndedAt != nil {
		return fmt.Errorf("session %s already ended", id)
	}

	now := time.Now().UTC()
	s.EndedAt = &now

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE offline_sessions SET ended_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if err := enqueueTx(tx, models.EntityOfflineSession, id, models.ActionUpdate, snapshotSession(s)); err != nil {
		return err
	}
	return tx.Commit()
}

const sessionColumns = `id, review_id, reviewer_id, COALESCE(device, ''), started_at,
	COALESCE(ended_at, ''), COALESCE(synced_at, '')`

func scanSession(scan func(...any) error) (*models.OfflineSession, error) {
	var (
		s                models.OfflineSession
		startedAt        string
		endedAt, syncedAt sql.NullString
	)
	if err := scan(&s.ID, &s.ReviewID, &s.ReviewerID, &s.Device, &startedAt, &endedAt, &syncedAt); err != nil {
		return nil, err
	}
	var err error
	if s.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if s.EndedAt, err = scanNullableTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}
	if s.SyncedAt, err = scanNullableTime(syncedAt); err != nil {
		return nil, fmt.Errorf("parse synced_at: %w", err)
	}
	return &s, nil
}

// GetSession returns a session by ID.
func (db *DB) GetSession(id string) (*models.OfflineSession, error) {
	row := db.conn.QueryRow(`SELECT `+sessionColumns+` FROM offline_sessions WHERE id = ?`, id)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// GetOpenSession returns the most recent session without an end timestamp,
// or nil when every window is closed.
func (db *DB) GetOpenSession() (*models.OfflineSession, error) {
	row := db.conn.QueryRow(`
		SELECT ` + sessionColumns + ` FROM offline_sessions
		WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return s, nil
}

// ListSessions returns a review's offline sessions, oldest first.
func (db *DB) ListSessions(reviewID string) ([]models.OfflineSession, error) {
	rows, err := db.conn.Query(`
		SELECT `+sessionColumns+` FROM offline_sessions
		WHERE review_id = ? ORDER BY started_at ASC, rowid ASC`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.OfflineSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
