package output

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	defaultWidth = 80
	minWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when
// unavailable.
func TerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return clampWidth(width)
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return clampWidth(parsed)
		}
	}

	return defaultWidth
}

func clampWidth(w int) int {
	if w < minWidth {
		return minWidth
	}
	return w
}

// Truncate cuts s to at most width runes, appending an ellipsis when it
// was shortened.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
