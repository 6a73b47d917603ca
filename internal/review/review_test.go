package review

import (
	"testing"
	"time"
)

func TestSelectAndGet(t *testing.T) {
	baseDir := t.TempDir()

	sel, err := Select(baseDir, "rev-42", "Warehouse Audit Q3")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.ReviewID != "rev-42" {
		t.Fatalf("expected rev-42, got %q", sel.ReviewID)
	}

	got, err := Get(baseDir)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReviewID != "rev-42" || got.Title != "Warehouse Audit Q3" {
		t.Errorf("selection mismatch: %+v", got)
	}
	if got.SelectedAt.IsZero() {
		t.Error("expected SelectedAt to be set")
	}
}

func TestGetWithoutSelection(t *testing.T) {
	if _, err := Get(t.TempDir()); err == nil {
		t.Fatal("expected error when no review selected")
	}
}

func TestSelectReplacesPrevious(t *testing.T) {
	baseDir := t.TempDir()

	if _, err := Select(baseDir, "rev-1", "First"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if _, err := Select(baseDir, "rev-2", "Second"); err != nil {
		t.Fatalf("second select: %v", err)
	}

	got, err := Get(baseDir)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReviewID != "rev-2" {
		t.Errorf("expected rev-2 after reselect, got %q", got.ReviewID)
	}
}

func TestClear(t *testing.T) {
	baseDir := t.TempDir()

	if _, err := Select(baseDir, "rev-1", ""); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := Clear(baseDir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := Get(baseDir); err == nil {
		t.Fatal("expected error after clear")
	}
	// Clearing twice is fine
	if err := Clear(baseDir); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestResolve(t *testing.T) {
	baseDir := t.TempDir()

	if _, err := Resolve(baseDir, ""); err == nil {
		t.Fatal("expected error with no flag and no selection")
	}

	got, err := Resolve(baseDir, "rev-explicit")
	if err != nil {
		t.Fatalf("explicit resolve: %v", err)
	}
	if got != "rev-explicit" {
		t.Errorf("explicit flag should win, got %q", got)
	}

	if _, err := Select(baseDir, "rev-selected", ""); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, err = Resolve(baseDir, "")
	if err != nil {
		t.Fatalf("selection resolve: %v", err)
	}
	if got != "rev-selected" {
		t.Errorf("expected selection fallback, got %q", got)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"90m", 90 * time.Minute},
		{"2h", 2 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseDuration("soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}
