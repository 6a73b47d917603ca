package monitor

import (
	"github.com/arden/fieldsync/internal/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	// Sync status styles
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncPending:  lipgloss.NewStyle().Foreground(warningColor),
		models.SyncSyncing:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.SyncSynced:   lipgloss.NewStyle().Foreground(successColor),
		models.SyncFailed:   lipgloss.NewStyle().Foreground(errorColor),
		models.SyncConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
)
