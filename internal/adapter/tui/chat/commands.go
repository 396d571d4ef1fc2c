package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"persai-chat/internal/usecase"
)

// submitTurnCmd runs one turn in a background goroutine with a cancellable
// context. Chunk snapshots arrive out of band via ConversationUpdateMsg;
// this command only reports the terminal outcome. gen identifies the request
// so completions from cancelled turns can be discarded.
func submitTurnCmd(ctx context.Context, conv *usecase.Conversation, text string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		err := conv.Submit(ctx, text)
		return TurnDoneMsg{Err: err, Gen: gen}
	}
}

// listSessionsCmd fetches all backend sessions.
func listSessionsCmd(conv *usecase.Conversation) tea.Cmd {
	return func() tea.Msg {
		sessions, err := conv.Sessions(context.Background())
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

// deleteSessionCmd deletes a backend session by id.
func deleteSessionCmd(conv *usecase.Conversation, sessionID string) tea.Cmd {
	return func() tea.Msg {
		err := conv.DeleteSession(context.Background(), sessionID)
		return SessionDeletedMsg{SessionID: sessionID, Err: err}
	}
}
