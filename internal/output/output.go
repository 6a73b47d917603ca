// Package output provides styled terminal output helpers (success, error,
// warning, record formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arden/fieldsync/internal/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncSyncing:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.SyncSynced:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.SyncConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeConflict         = "conflict"
	ErrCodeStorageError     = "storage_error"
	ErrCodeSyncError        = "sync_error"
	ErrCodeNotAuthenticated = "not_authenticated"
	ErrCodeNoReviewSelected = "no_review_selected"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	result := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// FormatSyncStatus formats a sync status with color
func FormatSyncStatus(s models.SyncStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// SyncStatusBadge returns a sync status indicator with symbol
// e.g., "● pending", "↻ syncing", "✓ synced", "✗ failed", "◎ conflict"
func SyncStatusBadge(status models.SyncStatus) string {
	symbols := map[models.SyncStatus]string{
		models.SyncPending:  "●",
		models.SyncSyncing:  "↻",
		models.SyncSynced:   "✓",
		models.SyncFailed:   "✗",
		models.SyncConflict: "◎",
	}
	symbol, ok := symbols[status]
	if !ok {
		symbol = "?"
	}
	style, hasStyle := statusStyles[status]
	if hasStyle {
		return style.Render(fmt.Sprintf("%s %s", symbol, status))
	}
	return fmt.Sprintf("%s %s", symbol, status)
}

// FormatChecklistItem formats a checklist item in short format
func FormatChecklistItem(item *models.ChecklistItem) string {
	var parts []string
	parts = append(parts, titleStyle.Render(item.ID))
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("[%s]", item.Phase)))
	parts = append(parts, item.Title)
	if item.Completed {
		parts = append(parts, successStyle.Render("done"))
	}
	parts = append(parts, FormatSyncStatus(item.SyncStatus))
	return strings.Join(parts, "  ")
}

// FormatEvidence formats an evidence record in short format
func FormatEvidence(ev *models.FieldEvidence) string {
	var parts []string
	parts = append(parts, titleStyle.Render(ev.ID))
	parts = append(parts, subtleStyle.Render(string(ev.Type)))
	parts = append(parts, ev.FileName)
	parts = append(parts, subtleStyle.Render(FormatBytes(ev.FileSize)))
	if ev.GPS != nil {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("%.4f,%.4f", ev.GPS.Latitude, ev.GPS.Longitude)))
	}
	parts = append(parts, FormatSyncStatus(ev.SyncStatus))
	return strings.Join(parts, "  ")
}

// FormatFinding formats a draft finding in short format
func FormatFinding(f *models.DraftFinding) string {
	var parts []string
	parts = append(parts, titleStyle.Render(f.ID))
	parts = append(parts, warningStyle.Render(fmt.Sprintf("[%s]", f.Severity)))
	parts = append(parts, f.Title)
	if n := len(f.EvidenceIDs); n > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("%d evidence", n)))
	}
	parts = append(parts, FormatSyncStatus(f.SyncStatus))
	return strings.Join(parts, "  ")
}

// FormatQueueEntry formats a sync queue entry for status listings
func FormatQueueEntry(e *models.QueueEntry) string {
	var parts []string
	parts = append(parts, titleStyle.Render(e.ID))
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("%s/%s", e.EntityType, e.Action)))
	parts = append(parts, e.EntityID)
	if e.RetryCount > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("retries: %d", e.RetryCount)))
	}
	if e.Conflicted {
		parts = append(parts, FormatSyncStatus(models.SyncConflict))
	} else if e.LastError != "" {
		parts = append(parts, errorStyle.Render(e.LastError))
	}
	return strings.Join(parts, "  ")
}

// FormatSessionLine formats an offline session for listings
func FormatSessionLine(s *models.OfflineSession) string {
	var parts []string
	parts = append(parts, titleStyle.Render(s.ID))
	parts = append(parts, subtleStyle.Render(s.StartedAt.Format("2006-01-02 15:04")))
	if s.EndedAt != nil {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("ended %s", FormatTimeAgo(*s.EndedAt))))
	} else {
		parts = append(parts, successStyle.Render("active"))
	}
	if s.SyncedAt != nil {
		parts = append(parts, FormatSyncStatus(models.SyncSynced))
	} else {
		parts = append(parts, FormatSyncStatus(models.SyncPending))
	}
	return strings.Join(parts, "  ")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// FormatBytes renders a byte count in human units
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGT"[exp])
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nCONFLICTS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentLines indents each line by the specified number of spaces
func IndentLines(lines []string, spaces int) []string {
	indent := strings.Repeat(" ", spaces)
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = indent + line
	}
	return result
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
