package components

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"persai-chat/internal/adapter/tui/theme"
	"persai-chat/internal/domain"
)

// entry pairs a message with its cached render. Agent content grows while a
// turn streams, so the cache is invalidated whenever the content changes.
type entry struct {
	msg      domain.Message
	rendered string
}

// MessageListModel renders an ordered conversation snapshot.
type MessageListModel struct {
	entries    []entry
	width      int
	markdown   bool
	mdRenderer *glamour.TermRenderer
}

// NewMessageList creates an empty message list. markdown selects glamour
// rendering for agent messages.
func NewMessageList(markdown bool) MessageListModel {
	return MessageListModel{markdown: markdown}
}

// SetWidth updates the rendering width and clears cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.mdRenderer = nil // force re-creation with new width
	for i := range m.entries {
		m.entries[i].rendered = ""
	}
}

// SetMessages replaces the displayed snapshot. Render caches survive for
// messages whose content did not change, so streaming updates only
// re-render the tail.
func (m *MessageListModel) SetMessages(msgs []domain.Message) {
	next := make([]entry, len(msgs))
	for i, msg := range msgs {
		next[i] = entry{msg: msg}
		if i < len(m.entries) &&
			m.entries[i].msg.Role == msg.Role &&
			m.entries[i].msg.Content == msg.Content {
			next[i].rendered = m.entries[i].rendered
		}
	}
	m.entries = next
}

// Len returns the number of displayed messages.
func (m *MessageListModel) Len() int {
	return len(m.entries)
}

// Clear removes all messages.
func (m *MessageListModel) Clear() {
	m.entries = nil
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.entries) == 0 {
		return theme.TextMuted.Render("  No messages yet. Start a conversation!")
	}

	contentWidth := ContentWidth(m.width)

	var sb strings.Builder
	for i := range m.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(&m.entries[i], contentWidth))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(e *entry, width int) string {
	msg := &e.msg

	if msg.IsTool() {
		return renderToolEntry(msg, width)
	}

	// Header: role label + timestamp.
	label := roleLabel(msg.Role)
	ts := RelativeTime(msg.CreatedAt)
	header := label + " " + theme.Timestamp.Render(ts)
	headerWidth := lipgloss.Width(header)

	// Body: render markdown for agent messages, plain wrap for others.
	var body string
	switch {
	case msg.Role == domain.RoleAgent && m.markdown:
		if e.rendered == "" {
			e.rendered = m.renderMarkdown(msg.Content, width)
		}
		body = strings.TrimSpace(e.rendered)
	default:
		inlineW := width - headerWidth - 2
		if inlineW < 20 {
			inlineW = width - 2
		}
		body = wrapText(msg.Content, inlineW)
	}

	if body == "" {
		return header
	}

	// Inline: put header and first line of body on the same line.
	if width-headerWidth-2 < 20 {
		return header + "\n  " + body
	}

	lines := strings.SplitN(body, "\n", 2)
	firstLine := strings.TrimSpace(lines[0])
	result := header + "  " + firstLine
	if len(lines) > 1 {
		// wrapText and glamour already handle continuation indentation;
		// just append the remaining lines as-is.
		result += "\n" + lines[1]
	}
	return result
}

// renderToolEntry renders a tool invocation. Known persai tools get a
// specialized view; anything else falls back to a generic args/result view.
func renderToolEntry(msg *domain.Message, width int) string {
	tc := msg.ToolCall
	switch tc.ToolName {
	case "execute_range_query":
		return renderRangeQueryEntry(tc, width)
	case "list_metrics":
		return renderListMetricsEntry(tc, width)
	default:
		return renderGenericToolEntry(tc, width)
	}
}

// renderGenericToolEntry shows the call line with tool name and arguments,
// then the result line once the response has arrived.
func renderGenericToolEntry(tc *domain.ToolCallInfo, width int) string {
	header := theme.ToolLabel.Render(theme.SymbolArrowR + " " + tc.ToolName)
	if args := formatArgs(tc.Args); args != "" {
		maxArgLen := width - lipgloss.Width(header) - 4
		if maxArgLen < 10 {
			maxArgLen = 10
		}
		if len(args) > maxArgLen {
			args = args[:maxArgLen-1] + theme.SymbolEllipsis
		}
		header += " " + theme.Dim.Render(args)
	}

	if tc.Result == nil {
		return header + " " + theme.TextMuted.Render(theme.SymbolEllipsis)
	}

	icon := theme.TextSuccess.Render(theme.SymbolSuccess)
	result := strings.TrimSpace(*tc.Result)
	if result == "" {
		return header + " " + icon
	}
	return header + " " + icon + "\n  " + wrapText(result, width-2)
}

// renderRangeQueryEntry shows the PromQL query prominently, the time window
// on a second line, and a series-count summary instead of the raw matrix.
func renderRangeQueryEntry(tc *domain.ToolCallInfo, width int) string {
	header := theme.ToolLabel.Render(theme.SymbolArrowR+" execute_range_query") +
		" " + theme.TextAccent.Render(tc.Args["query"])

	window := tc.Args["start"] + " " + theme.SymbolArrowR + " " + tc.Args["end"]
	if step := tc.Args["step"]; step != "" {
		window += " step " + step
	}
	lines := header + "\n  " + theme.Dim.Render(window)

	if tc.Result == nil {
		return lines + " " + theme.TextMuted.Render(theme.SymbolEllipsis)
	}

	icon := theme.TextSuccess.Render(theme.SymbolSuccess)
	var parsed struct {
		ResultType string            `json:"resultType"`
		Result     []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(*tc.Result), &parsed); err == nil && parsed.ResultType != "" {
		return lines + "\n  " + icon + " " +
			fmt.Sprintf("%s, %d series", parsed.ResultType, len(parsed.Result))
	}
	return lines + "\n  " + icon + " " + wrapText(strings.TrimSpace(*tc.Result), width-4)
}

// renderListMetricsEntry summarizes the metric name listing: a count plus a
// preview of the first few names.
func renderListMetricsEntry(tc *domain.ToolCallInfo, width int) string {
	header := theme.ToolLabel.Render(theme.SymbolArrowR + " list_metrics")

	if tc.Result == nil {
		return header + " " + theme.TextMuted.Render(theme.SymbolEllipsis)
	}

	icon := theme.TextSuccess.Render(theme.SymbolSuccess)
	var names []string
	if err := json.Unmarshal([]byte(*tc.Result), &names); err != nil {
		return header + " " + icon + "\n  " + wrapText(strings.TrimSpace(*tc.Result), width-2)
	}

	preview := names
	const maxPreview = 5
	if len(preview) > maxPreview {
		preview = preview[:maxPreview]
	}
	summary := fmt.Sprintf("%d metrics", len(names))
	if len(preview) > 0 {
		summary += ": " + strings.Join(preview, ", ")
		if len(names) > maxPreview {
			summary += " " + theme.SymbolEllipsis
		}
	}
	return header + " " + icon + "\n  " + theme.Dim.Render(wrapText(summary, width-2))
}

// formatArgs renders tool arguments as "k=v" pairs in key order.
func formatArgs(args map[string]string) string {
	return domain.ToolArgs(args).String()
}

func roleLabel(role string) string {
	switch role {
	case domain.RoleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case domain.RoleAgent:
		return theme.BotLabel.Render(theme.SymbolBot)
	case domain.RoleSystem:
		return theme.SystemLabel.Render("System")
	case domain.RoleTool:
		return theme.ToolLabel.Render("Tool")
	default:
		return theme.TextMuted.Render(role)
	}
}

func (m *MessageListModel) renderMarkdown(content string, width int) string {
	if m.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "  " + content
		}
		m.mdRenderer = r
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return "  " + content
	}
	return rendered
}

// RelativeTime returns a human-readable relative time string for a unix
// second timestamp.
func RelativeTime(unix int64) string {
	if unix == 0 {
		return ""
	}
	t := time.Unix(unix, 0)
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps text to the given width with a 2-space indent on continuation lines.
// Uses rune-based indexing to safely handle multibyte UTF-8.
func wrapText(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		// Find a good break point (space) within width.
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		// Trim leading spaces.
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// ContentWidth calculates the content width respecting MaxContentWidth.
func ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > theme.MaxContentWidth {
		w = theme.MaxContentWidth
	}
	if w < 40 {
		w = 40
	}
	return w
}

// Divider renders a horizontal line at the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", width))
}
