package domain

import "context"

// TurnStream is a pull iterator over the chunks of one open turn stream.
// Recv returns io.EOF on normal exhaustion and any other error on transport
// failure. Close releases the underlying connection; it is safe to call
// after Recv has returned an error.
type TurnStream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// AgentBackend is the session/turn API of the agent service. Implementations
// handle transport concerns (credentials, timeouts, retries); callers only
// ever see chunks or terminal errors.
type AgentBackend interface {
	// CreateSession creates a new agent session and returns its identifier.
	CreateSession(ctx context.Context) (string, error)
	// ListSessions returns all sessions known to the backend agent.
	ListSessions(ctx context.Context) ([]SessionInfo, error)
	// DeleteSession removes a session. Returns ErrSessionNotFound if the
	// backend does not know the id.
	DeleteSession(ctx context.Context, sessionID string) error
	// CreateTurn submits a user message and opens the chunk stream for the
	// resulting turn. datasourcePath is passed through verbatim; it names
	// the backend location tool calls execute against.
	CreateTurn(ctx context.Context, sessionID, datasourcePath, message string) (TurnStream, error)
}
