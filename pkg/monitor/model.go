// Package monitor implements the live sync dashboard TUI: queue contents,
// connectivity, and drain results, refreshed on a timer.
package monitor

import (
	"strconv"
	"time"

	"github.com/arden/fieldsync/internal/connectivity"
	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/models"
	fsync "github.com/arden/fieldsync/internal/sync"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines the dashboard key bindings.
type KeyMap struct {
	Sync    key.Binding
	Retry   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry failed")),
		Refresh: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the Bubble Tea model for the sync dashboard.
type Model struct {
	DB       *db.DB
	Engine   *fsync.Engine
	Conn     *connectivity.Monitor
	ReviewID string

	Width  int
	Height int

	Status  *fsync.Status
	Entries []models.QueueEntry
	Online  bool

	Table    table.Model
	Spinner  spinner.Model
	Keys     KeyMap
	Draining bool
	LastDrain   *fsync.DrainResult
	LastRefresh time.Time
	Err         error

	interval time.Duration
	version  string
	online   chan bool
}

// NewModel constructs the dashboard model. The connectivity monitor may be
// nil; the online indicator then stays off.
func NewModel(database *db.DB, engine *fsync.Engine, conn *connectivity.Monitor, reviewID string, interval time.Duration, version string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	columns := []table.Column{
		{Title: "ENTITY", Width: 16},
		{Title: "ACTION", Width: 8},
		{Title: "ID", Width: 36},
		{Title: "RETRIES", Width: 8},
		{Title: "STATE", Width: 32},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	m := Model{
		DB:       database,
		Engine:   engine,
		Conn:     conn,
		ReviewID: reviewID,
		Spinner:  sp,
		Table:    tbl,
		Keys:     DefaultKeyMap(),
		interval: interval,
		version:  version,
		online:   make(chan bool, 8),
	}
	if conn != nil {
		m.Online = conn.Online()
		conn.Subscribe(func(online bool) {
			select {
			case m.online <- online:
			default:
			}
		})
	}
	return m
}

type tickMsg time.Time

type refreshMsg struct {
	status  *fsync.Status
	entries []models.QueueEntry
	err     error
}

type drainDoneMsg struct {
	result fsync.DrainResult
	err    error
}

type onlineMsg bool

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		status, err := m.Engine.GetStatus()
		if err != nil {
			return refreshMsg{err: err}
		}
		entries, err := m.DB.ListQueueEntries()
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{status: status, entries: entries}
	}
}

func (m Model) drain(retryFirst bool) tea.Cmd {
	return func() tea.Msg {
		if retryFirst {
			if _, err := m.Engine.RetryFailed(); err != nil {
				return drainDoneMsg{err: err}
			}
		}
		result, err := m.Engine.ProcessQueue()
		return drainDoneMsg{result: result, err: err}
	}
}

func (m Model) waitOnline() tea.Cmd {
	if m.Conn == nil {
		return nil
	}
	ch := m.online
	return func() tea.Msg {
		return onlineMsg(<-ch)
	}
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick(), m.Spinner.Tick, m.waitOnline())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetHeight(max(4, msg.Height-10))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Sync):
			if !m.Draining {
				m.Draining = true
				return m, tea.Batch(m.drain(false), m.Spinner.Tick)
			}
			return m, nil
		case key.Matches(msg, m.Keys.Retry):
			if !m.Draining {
				m.Draining = true
				return m, tea.Batch(m.drain(true), m.Spinner.Tick)
			}
			return m, nil
		case key.Matches(msg, m.Keys.Refresh):
			return m, m.refresh()
		}
		var cmd tea.Cmd
		m.Table, cmd = m.Table.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case refreshMsg:
		m.LastRefresh = time.Now()
		m.Err = msg.err
		if msg.err == nil {
			m.Status = msg.status
			m.Entries = msg.entries
			m.Table.SetRows(queueRows(msg.entries))
		}
		return m, nil

	case drainDoneMsg:
		m.Draining = false
		m.Err = msg.err
		if msg.err == nil {
			r := msg.result
			m.LastDrain = &r
		}
		return m, m.refresh()

	case onlineMsg:
		wasOnline := m.Online
		m.Online = bool(msg)
		cmds := []tea.Cmd{m.waitOnline()}
		// Reconnecting drains automatically
		if !wasOnline && m.Online && !m.Draining {
			m.Draining = true
			cmds = append(cmds, m.drain(false), m.Spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		if m.Draining {
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func queueRows(entries []models.QueueEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		state := "pending"
		if e.Conflicted {
			state = "conflict"
		} else if e.Exhausted() {
			state = "failed: " + e.LastError
		} else if e.LastError != "" {
			state = "retrying: " + e.LastError
		}
		rows = append(rows, table.Row{
			string(e.EntityType),
			string(e.Action),
			e.EntityID,
			strconv.Itoa(e.RetryCount),
			state,
		})
	}
	return rows
}
