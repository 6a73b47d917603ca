package monitor

import (
	"fmt"
	"strings"

	"github.com/arden/fieldsync/internal/output"
	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.statusView()))
	b.WriteString("\n")
	b.WriteString(panelTitleStyle.Render("SYNC QUEUE"))
	b.WriteString("\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n")
	b.WriteString(m.footerView())

	return b.String()
}

func (m Model) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render("fieldsync watch")
	conn := offlineStyle.Render("OFFLINE")
	if m.Online {
		conn = onlineStyle.Render("ONLINE")
	}
	right := conn
	if m.Draining {
		right = m.Spinner.View() + " syncing  " + conn
	}
	gap := m.Width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) statusView() string {
	if m.Status == nil {
		return "loading..."
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("pending %d", m.Status.Pending))
	parts = append(parts, statusStyles["failed"].Render(fmt.Sprintf("failed %d", m.Status.Failed)))
	parts = append(parts, statusStyles["conflict"].Render(fmt.Sprintf("conflicts %d", m.Status.Conflicts)))
	if m.Status.LastSyncAt != nil {
		parts = append(parts, subtleStyle.Render("last sync "+output.FormatTimeAgo(*m.Status.LastSyncAt)))
	} else {
		parts = append(parts, subtleStyle.Render("never synced"))
	}

	line := strings.Join(parts, "   ")

	if m.LastDrain != nil && m.LastDrain.Processed() > 0 {
		line += "\n" + subtleStyle.Render(fmt.Sprintf(
			"last drain: %d synced, %d retried, %d failed, %d conflicts",
			m.LastDrain.Synced, m.LastDrain.Retried, m.LastDrain.Failed, m.LastDrain.Conflicts))
	}
	if m.Err != nil {
		line += "\n" + offlineStyle.Render("error: "+m.Err.Error())
	}
	return line
}

func (m Model) footerView() string {
	bindings := []string{
		"s sync now",
		"r retry failed",
		"f refresh",
		"q quit",
	}
	footer := helpStyle.Render(strings.Join(bindings, "  ·  "))
	if m.version != "" {
		footer += helpStyle.Render("  ·  " + m.version)
	}
	return footer
}
