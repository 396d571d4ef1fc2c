// Package chat implements the Bubble Tea chat TUI for persai-chat.
package chat

import "persai-chat/internal/domain"

// ConversationUpdateMsg carries a message list snapshot published by the
// conversation after every applied chunk. Streaming is true while the turn
// is still open.
type ConversationUpdateMsg struct {
	Messages  []domain.Message
	Streaming bool
}

// TurnDoneMsg signals that the turn goroutine finished.
// Gen identifies the request generation so stale completions can be discarded.
type TurnDoneMsg struct {
	Err error
	Gen uint64
}

// SessionsLoadedMsg carries the result of a backend session listing.
type SessionsLoadedMsg struct {
	Sessions []domain.SessionInfo
	Err      error
}

// SessionDeletedMsg carries the result of a backend session deletion.
type SessionDeletedMsg struct {
	SessionID string
	Err       error
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
