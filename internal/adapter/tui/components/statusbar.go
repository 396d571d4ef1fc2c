package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"persai-chat/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Send"
}

// StatusBarModel renders a bottom status bar with keybinding hints and
// session info.
type StatusBarModel struct {
	Hints      []KeyHint
	SessionID  string
	Datasource string
	Extra      string // additional status text (e.g. "Streaming...")
	width      int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	// Left side: keybinding hints.
	var hints []string
	for _, h := range m.Hints {
		key := theme.StatusKey.Render(h.Key)
		hints = append(hints, key+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	// Right side: session and datasource info.
	var parts []string
	if m.Datasource != "" {
		parts = append(parts, TruncatePath(m.Datasource, 30))
	}
	if m.SessionID != "" {
		parts = append(parts, shortID(m.SessionID))
	}
	right := theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))

	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	// Join left and right, padding the gap.
	leftW := lipgloss.Width(left)
	rightW := lipgloss.Width(right)
	gap := m.width - leftW - rightW
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}

// shortID truncates a session id for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + theme.SymbolEllipsis
}

// TruncatePath smartly truncates a path with ellipsis in the middle.
// e.g. "/data/very/deep/nested/path" -> "/data/.../nested/path"
func TruncatePath(path string, maxLen int) string {
	if len(path) <= maxLen || maxLen < 10 {
		return path
	}

	sep := "/"
	parts := strings.Split(path, sep)
	if len(parts) <= 3 {
		return path[:maxLen-1] + theme.SymbolEllipsis
	}

	// Keep first and last 2 parts.
	head := parts[0]
	tail := strings.Join(parts[len(parts)-2:], sep)
	result := head + sep + theme.SymbolEllipsis + sep + tail

	if len(result) > maxLen {
		return path[:maxLen-1] + theme.SymbolEllipsis
	}
	return result
}
