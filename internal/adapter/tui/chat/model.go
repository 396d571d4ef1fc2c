package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"persai-chat/internal/adapter/tui/components"
	"persai-chat/internal/adapter/tui/theme"
	"persai-chat/internal/adapter/tui/uxerror"
	"persai-chat/internal/domain"
	"persai-chat/internal/usecase"
)

// ChatModelDeps are dependencies injected into the chat model.
type ChatModelDeps struct {
	Conversation *usecase.Conversation
	Logger       *slog.Logger
	Markdown     bool
}

// ChatModel is the root Bubble Tea model for the chat TUI. The conversation
// owns the message store; the model only displays snapshots pushed to it via
// ConversationUpdateMsg, plus local system notices (help text, command
// results, errors) appended after the snapshot.
type ChatModel struct {
	deps ChatModelDeps

	// Sub-models
	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	spinner   spinner.Model

	// Display state
	snapshot []domain.Message // last conversation snapshot
	notices  []domain.Message // local system messages shown after the snapshot

	// State
	streaming bool // true while a turn is in flight
	width     int
	height    int
	quitting  bool
	vimMode   bool // true when input is blurred and vim keys are active

	// Request lifecycle: gen is incremented on every new turn.
	// Stale TurnDoneMsg with an older gen are discarded.
	gen      uint64
	cancelFn context.CancelFunc // cancels the in-flight turn goroutine
}

// NewChatModel creates the root chat model.
func NewChatModel(deps ChatModelDeps) ChatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.Hints = defaultHints()
	sb.SessionID = deps.Conversation.SessionID()
	sb.Datasource = deps.Conversation.DatasourcePath()

	m := ChatModel{
		deps:      deps,
		chatView:  components.NewChatView(deps.Markdown),
		input:     components.NewInputArea(),
		statusBar: sb,
		spinner:   s,
	}

	// A resumed conversation already carries messages.
	m.snapshot = deps.Conversation.Messages()
	return m
}

// Init initializes sub-models.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

// Update handles all incoming messages.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshDisplay()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case ConversationUpdateMsg:
		m.snapshot = msg.Messages
		m.statusBar.SessionID = m.deps.Conversation.SessionID()
		m.refreshDisplay()
		return m, nil

	case TurnDoneMsg:
		// Discard completion from a stale (cancelled) turn.
		if msg.Gen != m.gen {
			return m, nil
		}
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.addNotice(domain.RoleSystem, uxerror.Humanize(msg.Err).Render())
		}
		m.finishTurn()
		return m, nil

	case SessionsLoadedMsg:
		if msg.Err != nil {
			m.addNotice(domain.RoleSystem, uxerror.Humanize(msg.Err).Render())
			return m, nil
		}
		m.addNotice(domain.RoleSystem, formatSessionList(msg.Sessions, m.deps.Conversation.SessionID()))
		return m, nil

	case SessionDeletedMsg:
		if msg.Err != nil {
			m.addNotice(domain.RoleSystem, uxerror.Humanize(msg.Err).Render())
			return m, nil
		}
		m.statusBar.SessionID = m.deps.Conversation.SessionID()
		m.addNotice(domain.RoleSystem, fmt.Sprintf("%s Session %s deleted.", theme.SymbolSuccess, msg.SessionID))
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update sub-models (filter mouse events from reaching the input).
	if !m.streaming {
		if _, isMouse := msg.(tea.MouseMsg); !isMouse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the entire chat UI.
func (m ChatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	inputView := m.input.View()
	if m.streaming {
		spinnerStr := m.spinner.View() + " " + m.statusBar.Extra
		inputView = lipgloss.NewStyle().Faint(true).Render("> waiting for the turn to finish...") +
			"\n" + spinnerStr
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.chatView.View(),
		components.Divider(m.width),
		inputView,
		m.statusBar.View(),
	)
}

// layout recalculates sizes for all sub-models.
func (m *ChatModel) layout() {
	inputH := 3
	statusH := 1
	dividerH := 1
	contentH := m.height - inputH - statusH - dividerH
	if contentH < 5 {
		contentH = 5
	}

	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

// refreshDisplay pushes the current snapshot plus trailing notices into the
// chat view.
func (m *ChatModel) refreshDisplay() {
	display := m.snapshot
	if len(m.notices) > 0 {
		display = make([]domain.Message, 0, len(m.snapshot)+len(m.notices))
		display = append(display, m.snapshot...)
		display = append(display, m.notices...)
	}
	m.chatView.SetMessages(display)
}

// addNotice appends a local system message after the conversation snapshot.
// Notices are cleared when the next turn is submitted.
func (m *ChatModel) addNotice(role, content string) {
	m.notices = append(m.notices, domain.NewMessage(role, content))
	m.refreshDisplay()
}

// isSGRMouseSequence detects SGR mouse escape sequences that may leak
// through as key input (e.g. "<65;38;21M"). These are emitted when
// mouse cell motion tracking is enabled and some terminals pass them
// as key events instead of tea.MouseMsg.
func isSGRMouseSequence(s string) bool {
	if len(s) < 5 || s[0] != '<' {
		return false
	}
	last := s[len(s)-1]
	if last != 'M' && last != 'm' {
		return false
	}
	for _, r := range s[1 : len(s)-1] {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// isMouseEscapeLeak detects mouse escape sequences that leaked through
// as key input instead of tea.MouseMsg. Covers SGR, X11 basic, and
// URXVT formats that appear during rapid trackpad scrolling.
func isMouseEscapeLeak(s string) bool {
	// SGR format: <digits;digits;digitsM/m
	if isSGRMouseSequence(s) {
		return true
	}
	// X11 basic mouse format: [M or [m followed by coordinate bytes.
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	// URXVT format: [digits;digits;digitsM
	if len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M' {
		allValid := true
		for _, r := range s[1 : len(s)-1] {
			if r != ';' && (r < '0' || r > '9') {
				allValid = false
				break
			}
		}
		if allValid {
			return true
		}
	}
	return false
}

// handleKey processes keyboard input.
func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Filter out mouse escape sequences that leaked through as key events.
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.streaming {
			m.cancelTurn("Turn cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear", nil)

	case tea.KeyEsc:
		// Enter vim mode (blur input).
		if !m.vimMode && !m.streaming {
			m.vimMode = true
			m.input.SetEnabled(false)
			m.statusBar.Hints = vimHints()
			return m, nil
		}

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	// Vim mode: j/k scroll, g/G top/bottom, i to exit.
	if m.vimMode {
		switch msg.String() {
		case "j", "down":
			m.chatView.Viewport.LineDown(3)
			return m, nil
		case "k", "up":
			m.chatView.Viewport.LineUp(3)
			return m, nil
		case "g":
			m.chatView.Viewport.GotoTop()
			return m, nil
		case "G":
			m.chatView.Viewport.GotoBottom()
			return m, nil
		case "i":
			if !m.streaming {
				m.vimMode = false
				m.input.SetEnabled(true)
				m.statusBar.Hints = defaultHints()
			}
			return m, nil
		}
		return m, nil
	}

	// Forward to input area.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Esc", Desc: "Scroll"},
		{Key: "?", Desc: "/help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

func vimHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "j/k", Desc: "Scroll"},
		{Key: "g/G", Desc: "Top/bottom"},
		{Key: "i", Desc: "Input"},
	}
}

// handleSubmit processes user input submission.
func (m ChatModel) handleSubmit(value string) (tea.Model, tea.Cmd) {
	// Check for slash commands.
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, args)
	}

	if m.streaming {
		return m, nil
	}

	// Stale notices from the previous turn are dropped with the new snapshot.
	m.notices = nil

	// Bump generation so a completion from a cancelled turn is discarded.
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	// Disable input, enable vim-style scrolling, and show the spinner.
	m.streaming = true
	m.vimMode = true
	m.input.SetEnabled(false)
	m.statusBar.Extra = "Streaming..."
	m.statusBar.Hints = vimHints()

	m.deps.Logger.Debug("turn submitted", "gen", m.gen, "length", len(value))
	return m, submitTurnCmd(ctx, m.deps.Conversation, value, m.gen)
}

// handleSlashCommand processes a slash command.
func (m ChatModel) handleSlashCommand(cmd string, args []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.addNotice(domain.RoleSystem, `Available commands:
  /help             - Show this help
  /clear            - Clear the transcript (keeps the session)
  /sessions         - List backend sessions
  /delete-session   - Delete a backend session by id
  /datasource       - Show or set the datasource path
  /quit             - Exit persai-chat
  /cancel           - Cancel the streaming turn

Keybindings:
  Enter      - Send message
  Alt+Enter  - New line
  Esc        - Scroll mode (j/k, g/G, i to return)
  Ctrl+L     - Clear transcript
  Ctrl+C     - Cancel/Quit
  PgUp/PgDn  - Scroll chat`)
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.deps.Conversation.ClearMessages()
		m.snapshot = nil
		m.notices = nil
		m.chatView.Clear()
		m.addNotice(domain.RoleSystem, theme.SymbolSuccess+" Transcript cleared.")
		return m, nil

	case "/cancel":
		if m.streaming {
			m.cancelTurn("Turn cancelled.")
		} else {
			m.addNotice(domain.RoleSystem, "No turn in flight.")
		}
		return m, nil

	case "/sessions":
		return m, listSessionsCmd(m.deps.Conversation)

	case "/delete-session":
		if len(args) < 1 {
			m.addNotice(domain.RoleSystem, "Usage: /delete-session <id>")
			return m, nil
		}
		return m, deleteSessionCmd(m.deps.Conversation, args[0])

	case "/datasource":
		if len(args) < 1 {
			path := m.deps.Conversation.DatasourcePath()
			if path == "" {
				path = "(not set)"
			}
			m.addNotice(domain.RoleSystem, "Datasource: "+path)
			return m, nil
		}
		m.deps.Conversation.SetDatasourcePath(args[0])
		m.statusBar.Datasource = args[0]
		m.addNotice(domain.RoleSystem, theme.SymbolSuccess+" Datasource set to "+args[0])
		return m, nil

	default:
		m.addNotice(domain.RoleSystem, fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

// cancelTurn cancels the in-flight turn goroutine, bumps the generation
// counter so the stale completion is discarded, and resets the UI state.
func (m *ChatModel) cancelTurn(reason string) {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	m.gen++ // ensure the stale TurnDoneMsg is ignored
	m.finishTurn()
	m.addNotice(domain.RoleSystem, reason)
}

// finishTurn resets the UI after a turn ends for any reason.
func (m *ChatModel) finishTurn() {
	m.streaming = false
	m.vimMode = false
	m.input.SetEnabled(true)
	m.statusBar.Extra = ""
	m.statusBar.Hints = defaultHints()
	m.statusBar.SessionID = m.deps.Conversation.SessionID()
}

// formatSessionList renders the backend session listing as a system notice.
func formatSessionList(sessions []domain.SessionInfo, activeID string) string {
	if len(sessions) == 0 {
		return "No backend sessions."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Backend sessions (%d):", len(sessions)))
	for _, s := range sessions {
		sb.WriteString("\n  " + theme.SymbolBullet + " " + s.SessionID)
		if s.SessionName != "" {
			sb.WriteString("  " + s.SessionName)
		}
		if s.StartedAt != "" {
			sb.WriteString("  started " + s.StartedAt)
		}
		if s.SessionID == activeID {
			sb.WriteString("  (active)")
		}
	}
	return sb.String()
}
