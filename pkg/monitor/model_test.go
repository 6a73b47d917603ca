package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/arden/fieldsync/internal/models"
	fsync "github.com/arden/fieldsync/internal/sync"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	return NewModel(nil, nil, nil, "rev-1", time.Second, "test")
}

func TestQueueRowsStates(t *testing.T) {
	entries := []models.QueueEntry{
		{EntityType: models.EntityChecklistItem, EntityID: "chk-1", Action: models.ActionCreate, MaxRetries: 3},
		{EntityType: models.EntityFieldEvidence, EntityID: "ev-1", Action: models.ActionCreate, RetryCount: 1, MaxRetries: 3, LastError: "HTTP 503: unavailable"},
		{EntityType: models.EntityDraftFinding, EntityID: "fnd-1", Action: models.ActionUpdate, RetryCount: 3, MaxRetries: 3, LastError: "HTTP 400: bad request"},
		{EntityType: models.EntityDraftFinding, EntityID: "fnd-2", Action: models.ActionUpdate, RetryCount: 3, MaxRetries: 3, Conflicted: true},
	}

	rows := queueRows(entries)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][4] != "pending" {
		t.Errorf("fresh entry state: got %q", rows[0][4])
	}
	if !strings.HasPrefix(rows[1][4], "retrying:") {
		t.Errorf("retrying entry state: got %q", rows[1][4])
	}
	if !strings.HasPrefix(rows[2][4], "failed:") {
		t.Errorf("exhausted entry state: got %q", rows[2][4])
	}
	if rows[3][4] != "conflict" {
		t.Errorf("conflicted entry state: got %q", rows[3][4])
	}
}

func TestRefreshMsgUpdatesStatus(t *testing.T) {
	m := newTestModel(t)

	now := time.Now()
	updated, _ := m.Update(refreshMsg{
		status:  &fsync.Status{Pending: 3, Failed: 1, Conflicts: 2, LastSyncAt: &now},
		entries: []models.QueueEntry{{EntityType: models.EntityChecklistItem, EntityID: "chk-1"}},
	})
	m = updated.(Model)

	if m.Status == nil || m.Status.Pending != 3 {
		t.Fatalf("status not applied: %+v", m.Status)
	}
	if len(m.Table.Rows()) != 1 {
		t.Errorf("expected 1 table row, got %d", len(m.Table.Rows()))
	}

	view := m.View()
	for _, want := range []string{"pending 3", "failed 1", "conflicts 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDrainDoneClearsSpinnerAndRecordsResult(t *testing.T) {
	m := newTestModel(t)
	m.Draining = true

	updated, _ := m.Update(drainDoneMsg{result: fsync.DrainResult{Synced: 2, Retried: 1}})
	m = updated.(Model)

	if m.Draining {
		t.Error("expected draining to stop")
	}
	if m.LastDrain == nil || m.LastDrain.Synced != 2 {
		t.Fatalf("drain result not recorded: %+v", m.LastDrain)
	}
}

func TestOnlineTransitionTriggersDrain(t *testing.T) {
	m := newTestModel(t)
	m.Online = false

	updated, cmd := m.Update(onlineMsg(true))
	m = updated.(Model)

	if !m.Online {
		t.Error("expected online state")
	}
	if !m.Draining {
		t.Error("reconnect should start a drain")
	}
	if cmd == nil {
		t.Error("expected drain command")
	}

	// Already online: no new drain
	m.Draining = false
	updated, _ = m.Update(onlineMsg(true))
	m = updated.(Model)
	if m.Draining {
		t.Error("steady online state should not drain")
	}
}

func TestHeaderShowsConnectivity(t *testing.T) {
	m := newTestModel(t)
	m.Width = 60

	m.Online = false
	if !strings.Contains(m.headerView(), "OFFLINE") {
		t.Error("expected OFFLINE in header")
	}
	m.Online = true
	if !strings.Contains(m.headerView(), "ONLINE") {
		t.Error("expected ONLINE in header")
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg == nil {
		t.Fatal("expected quit message")
	}
}
