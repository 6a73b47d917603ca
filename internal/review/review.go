// Package review tracks which review the reviewer is currently working
// on. The selection is a small file under the workspace data directory,
// so every command does not need an explicit review flag.
package review

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const selectionFile = ".fieldwork/review"

// Selection is the currently selected review.
type Selection struct {
	ReviewID   string    `json:"review_id"`
	Title      string    `json:"title,omitempty"`
	SelectedAt time.Time `json:"selected_at"`
}

// Select records the given review as the active one for this workspace.
func Select(baseDir, reviewID, title string) (*Selection, error) {
	sel := &Selection{
		ReviewID:   reviewID,
		Title:      title,
		SelectedAt: time.Now(),
	}
	if err := save(baseDir, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// Get returns the active review selection.
func Get(baseDir string) (*Selection, error) {
	path := filepath.Join(baseDir, selectionFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no review selected: run 'fieldsync review select' first")
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("invalid review selection file")
	}

	sel := &Selection{
		ReviewID: strings.TrimSpace(lines[0]),
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
		sel.SelectedAt = t
	}
	if len(lines) >= 3 {
		sel.Title = strings.TrimSpace(lines[2])
	}
	return sel, nil
}

// Clear removes the active review selection.
func Clear(baseDir string) error {
	path := filepath.Join(baseDir, selectionFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear review selection: %w", err)
	}
	return nil
}

// Resolve returns explicit when non-empty, otherwise the active
// selection's review ID.
func Resolve(baseDir, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	sel, err := Get(baseDir)
	if err != nil {
		return "", err
	}
	return sel.ReviewID, nil
}

// save writes the selection file.
// Format: ReviewID\nSelectedAt\nTitle
func save(baseDir string, sel *Selection) error {
	path := filepath.Join(baseDir, selectionFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	content := fmt.Sprintf("%s\n%s\n%s\n",
		sel.ReviewID,
		sel.SelectedAt.Format(time.RFC3339),
		sel.Title,
	)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write review selection: %w", err)
	}
	return nil
}

// ParseDuration parses human-readable duration strings, accepting a
// trailing "d" suffix for days on top of the standard forms.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}
