package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/arden/fieldsync/internal/syncclient"
)

// PrimaryEntry is the cache key whose presence defines "cached for
// offline". Without the review detail nothing else is usable.
const PrimaryEntry = "review-detail"

const indexFile = "reviews.json"

// entryDef names one read endpoint in a review's offline working set.
type entryDef struct {
	Key  string
	Path string
}

func reviewEntries() []entryDef {
	return []entryDef{
		{PrimaryEntry, "/v1/read/review-detail"},
		{"checklist-template", "/v1/read/checklist-template"},
		{"team-roster", "/v1/read/team-roster"},
		{"documents", "/v1/read/documents"},
		{"questionnaire-structure", "/v1/read/questionnaire-structure"},
	}
}

// Manager maintains the read-side cache of reference data, one bucket
// directory per review, independent of the write-side sync queue. Fetch
// failures for individual entries are tolerated; the cache is best effort
// and re-populated opportunistically.
type Manager struct {
	dir    string
	client *syncclient.Client
	logger *slog.Logger
}

// NewManager creates a cache manager rooted at dir (normally
// <data dir>/cache).
func NewManager(dir string, client *syncclient.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, client: client, logger: logger}
}

func (m *Manager) bucketDir(reviewID string) string {
	return filepath.Join(m.dir, reviewID)
}

func (m *Manager) entryPath(reviewID, key string) string {
	return filepath.Join(m.bucketDir(reviewID), key+".json")
}

// CacheReviewForOffline fetches the fixed set of read endpoints for a
// review and persists each response into the review's bucket. Individual
// fetch failures are skipped; the review counts as cached once the primary
// entry is stored.
func (m *Manager) CacheReviewForOffline(reviewID string) error {
	if m.client == nil {
		return fmt.Errorf("review %s not cached: no server client", reviewID)
	}
	if err := os.MkdirAll(m.bucketDir(reviewID), 0755); err != nil {
		return fmt.Errorf("create cache bucket: %w", err)
	}

	input := map[string]string{"review_id": reviewID}
	stored := 0
	for _, entry := range reviewEntries() {
		data, err := m.client.FetchResource(entry.Path, input)
		if err != nil {
			m.logger.Debug("cache entry fetch skipped", "review", reviewID, "entry", entry.Key, "error", err)
			continue
		}
		if err := writeFileAtomic(m.entryPath(reviewID, entry.Key), data); err != nil {
			m.logger.Warn("cache entry write failed", "review", reviewID, "entry", entry.Key, "error", err)
			continue
		}
		stored++
	}

	if !m.IsCachedForOffline(reviewID) {
		return fmt.Errorf("review %s not cached: primary entry unavailable", reviewID)
	}
	if err := m.addToIndex(reviewID); err != nil {
		m.logger.Warn("update cache index", "error", err)
	}
	m.logger.Info("review cached for offline", "review", reviewID, "entries", stored)
	return nil
}

// IsCachedForOffline reports whether the review's primary entry is present.
func (m *Manager) IsCachedForOffline(reviewID string) bool {
	_, err := os.Stat(m.entryPath(reviewID, PrimaryEntry))
	return err == nil
}

// Get returns a cached entry's raw JSON.
func (m *Manager) Get(reviewID, key string) (json.RawMessage, error) {
	data, err := os.ReadFile(m.entryPath(reviewID, key))
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s/%s: %w", reviewID, key, err)
	}
	return data, nil
}

// ClearReviewCache evicts every cached entry for a review.
func (m *Manager) ClearReviewCache(reviewID string) error {
	if err := os.RemoveAll(m.bucketDir(reviewID)); err != nil {
		return fmt.Errorf("clear cache bucket: %w", err)
	}
	if err := m.removeFromIndex(reviewID); err != nil {
		m.logger.Warn("update cache index", "error", err)
	}
	return nil
}

// GetCachedReviews enumerates review IDs with cached data, using the side
// index for speed and falling back to a directory scan when the index is
// missing.
func (m *Manager) GetCachedReviews() ([]string, error) {
	ids, err := m.readIndex()
	if err == nil {
		return ids, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	dirs, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache dir: %w", err)
	}
	for _, d := range dirs {
		if d.IsDir() && m.IsCachedForOffline(d.Name()) {
			ids = append(ids, d.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Manager) readIndex() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, indexFile))
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode cache index: %w", err)
	}
	return ids, nil
}

func (m *Manager) writeIndex(ids []string) error {
	sort.Strings(ids)
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(m.dir, indexFile), data)
}

func (m *Manager) addToIndex(reviewID string) error {
	ids, err := m.readIndex()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, id := range ids {
		if id == reviewID {
			return nil
		}
	}
	return m.writeIndex(append(ids, reviewID))
}

func (m *Manager) removeFromIndex(reviewID string) error {
	ids, err := m.readIndex()
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != reviewID {
			kept = append(kept, id)
		}
	}
	return m.writeIndex(kept)
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a torn cache entry.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
