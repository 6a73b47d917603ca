package storage

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/models"
)

const persistMarker = "persist"

// Manager keeps local storage bounded: quota introspection, retention
// cleanup of already-synced records, and emergency export.
type Manager struct {
	store  *db.DB
	logger *slog.Logger
}

// NewManager creates a storage manager over a store.
func NewManager(store *db.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Estimate describes local storage occupancy. Zero values mean the
// underlying platform query was unavailable, never an error.
type Estimate struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
	FreeBytes  int64 `json:"free_bytes"`
}

// GetEstimate reports how much space the fieldwork data occupies and what
// the filesystem still has available. Degrades to zeros instead of failing.
func (m *Manager) GetEstimate() Estimate {
	var est Estimate

	dataDir := db.DataDir(m.store.BaseDir())
	if used, err := dirSize(dataDir); err == nil {
		est.UsedBytes = used
	} else {
		m.logger.Debug("measure data dir", "error", err)
	}

	quota, free, err := statFS(dataDir)
	if err != nil {
		m.logger.Debug("query filesystem stats", "error", err)
		return est
	}
	est.QuotaBytes = quota
	est.FreeBytes = free
	return est
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// RequestPersistent marks the data directory as protected from automatic
// cleanup tooling by dropping a marker file. Best effort; returns whether
// the marker is in place.
func (m *Manager) RequestPersistent() bool {
	path := filepath.Join(db.DataDir(m.store.BaseDir()), persistMarker)
	if _, err := os.Stat(path); err == nil {
		return true
	}
	if err := os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		m.logger.Warn("write persistence marker", "error", err)
		return false
	}
	return true
}

// IsPersistent reports whether the persistence marker is present.
func (m *Manager) IsPersistent() bool {
	path := filepath.Join(db.DataDir(m.store.BaseDir()), persistMarker)
	_, err := os.Stat(path)
	return err == nil
}

// ClearOldSyncedData removes synced records older than the given number of
// days. Pending, failed, and conflicted records are never touched.
func (m *Manager) ClearOldSyncedData(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	n, err := m.store.DeleteSyncedOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear synced data: %w", err)
	}
	if n > 0 {
		m.logger.Info("synced records cleaned up", "count", n, "older_than_days", olderThanDays)
	}
	return n, nil
}

// ReviewExport is a complete human-recoverable snapshot of one review's
// local data. Blobs are inlined as base64 data URIs. This is an emergency
// backup format, not a sync mechanism.
type ReviewExport struct {
	ReviewID       string                  `json:"review_id"`
	ExportedAt     time.Time               `json:"exported_at"`
	ChecklistItems []models.ChecklistItem  `json:"checklist_items"`
	Evidence       []EvidenceExport        `json:"evidence"`
	Findings       []models.DraftFinding   `json:"findings"`
	Sessions       []models.OfflineSession `json:"sessions"`
}

// EvidenceExport is evidence metadata with its blobs inlined.
type EvidenceExport struct {
	models.FieldEvidence
	DataURI      string `json:"data_uri,omitempty"`
	ThumbnailURI string `json:"thumbnail_uri,omitempty"`
}

// ExportReview assembles the full snapshot for a review.
func (m *Manager) ExportReview(reviewID string) (*ReviewExport, error) {
	items, err := m.store.ListChecklistItems(reviewID, "")
	if err != nil {
		return nil, fmt.Errorf("export checklist items: %w", err)
	}
	evidence, err := m.store.ListEvidenceWithBlobs(reviewID)
	if err != nil {
		return nil, fmt.Errorf("export evidence: %w", err)
	}
	findings, err := m.store.ListFindings(reviewID)
	if err != nil {
		return nil, fmt.Errorf("export findings: %w", err)
	}
	sessions, err := m.store.ListSessions(reviewID)
	if err != nil {
		return nil, fmt.Errorf("export sessions: %w", err)
	}

	export := &ReviewExport{
		ReviewID:       reviewID,
		ExportedAt:     time.Now().UTC(),
		ChecklistItems: items,
		Findings:       findings,
		Sessions:       sessions,
	}
	for _, ev := range evidence {
		exp := EvidenceExport{FieldEvidence: ev}
		if len(ev.Data) > 0 {
			exp.DataURI = dataURI(ev.MimeType, ev.Data)
		}
		if len(ev.Thumbnail) > 0 {
			exp.ThumbnailURI = dataURI("image/jpeg", ev.Thumbnail)
		}
		exp.Data = nil
		exp.Thumbnail = nil
		export.Evidence = append(export.Evidence, exp)
	}
	return export, nil
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
