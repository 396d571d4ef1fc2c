package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"persai-chat/internal/domain"
)

// State is the lifecycle state of a conversation.
type State int

const (
	StateIdle State = iota
	StateSessionPending
	StateSessionActive
	StateTurnStreaming
	StateFailed
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionPending:
		return "session-pending"
	case StateSessionActive:
		return "active"
	case StateTurnStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TranscriptStore persists completed turns so a restarted client can reload
// a conversation. The driver only appends; it never reads mid-turn.
type TranscriptStore interface {
	SaveSession(ctx context.Context, sessionID string) error
	AppendMessages(ctx context.Context, sessionID string, msgs []domain.Message) error
	LatestSession(ctx context.Context) (string, error)
	LoadMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// UpdateFunc receives a message list snapshot after every applied chunk.
// streaming is true while a turn is still open.
type UpdateFunc func(messages []domain.Message, streaming bool)

// Conversation drives one conversation instance: it owns the message store,
// creates the backend session lazily (once), opens one stream per submitted
// turn, and applies every received chunk through the reducer strictly in
// arrival order.
type Conversation struct {
	backend        domain.AgentBackend
	history        TranscriptStore // optional, nil = no persistence
	logger         *slog.Logger
	datasourcePath string
	onUpdate       UpdateFunc

	mu        sync.Mutex
	state     State
	sessionID string
	messages  []domain.Message
}

// NewConversation creates an idle conversation bound to a backend.
// history may be nil to disable transcript persistence.
func NewConversation(backend domain.AgentBackend, history TranscriptStore, datasourcePath string, logger *slog.Logger) *Conversation {
	return &Conversation{
		backend:        backend,
		history:        history,
		logger:         logger,
		datasourcePath: datasourcePath,
		state:          StateIdle,
	}
}

// SetOnUpdate registers the snapshot callback. Must be called before Submit.
func (c *Conversation) SetOnUpdate(fn UpdateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// SetDatasourcePath replaces the datasource path used for subsequent turns.
func (c *Conversation) SetDatasourcePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datasourcePath = path
}

// DatasourcePath returns the currently configured datasource path.
func (c *Conversation) DatasourcePath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.datasourcePath
}

// State returns the current lifecycle state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the backend session id, empty until the first
// successful session creation.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Messages returns a snapshot of the message store.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ClearMessages empties the message store. The backend session is kept, so
// the next turn continues the same session with a fresh local transcript.
func (c *Conversation) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Resume preloads a previously persisted session so new turns reuse it.
func (c *Conversation) Resume(sessionID string, msgs []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.messages = append([]domain.Message(nil), msgs...)
	c.state = StateSessionActive
}

// Submit runs one user turn to completion: it appends the user message,
// ensures a session exists, opens the turn stream, and applies each chunk
// sequentially. On any failure the partial messages are retained and the
// session id (if obtained) is preserved, so a retried Submit skips session
// creation. There is no automatic retry.
func (c *Conversation) Submit(ctx context.Context, text string) error {
	const op = "Conversation.Submit"

	c.mu.Lock()
	if c.state == StateTurnStreaming {
		c.mu.Unlock()
		return domain.NewDomainError(op, domain.ErrTurnInFlight, "")
	}
	datasource := c.datasourcePath
	c.mu.Unlock()

	// Configuration error: surfaced before any state is created.
	if datasource == "" {
		return domain.NewDomainError(op, domain.ErrNoDatasource, "set datasource_path in config or via /datasource")
	}

	// The user message is appended before any network call, so it survives
	// session and stream failures.
	c.appendAndPublish(domain.NewMessage(domain.RoleUser, text), true)

	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		c.fail(err)
		return domain.WrapOp(op, err)
	}

	c.setState(StateTurnStreaming)
	stream, err := c.backend.CreateTurn(ctx, sessionID, datasource, text)
	if err != nil {
		c.fail(err)
		return domain.WrapOp(op, err)
	}
	defer stream.Close()

	countBefore := len(c.Messages())

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Chunks already folded in stay in the store.
			c.fail(err)
			return domain.WrapOp(op, err)
		}
		c.applyChunk(chunk)
	}

	c.setState(StateSessionActive)
	c.publish(false)
	c.persistTurn(ctx, sessionID, countBefore-1) // include the user message
	return nil
}

// Sessions lists all sessions known to the backend agent.
func (c *Conversation) Sessions(ctx context.Context) ([]domain.SessionInfo, error) {
	return c.backend.ListSessions(ctx)
}

// DeleteSession removes a backend session. Deleting the active session also
// clears the local session id so the next Submit creates a fresh one.
func (c *Conversation) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.backend.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	c.mu.Lock()
	if c.sessionID == sessionID {
		c.sessionID = ""
		c.state = StateIdle
	}
	c.mu.Unlock()
	return nil
}

// ensureSession creates the backend session on first use and reuses it for
// every subsequent turn. A session id obtained before an earlier failure is
// kept, so retries never create a needless second session.
func (c *Conversation) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.sessionID != "" {
		id := c.sessionID
		c.mu.Unlock()
		return id, nil
	}
	c.state = StateSessionPending
	c.mu.Unlock()

	id, err := c.backend.CreateSession(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.sessionID = id
	c.state = StateSessionActive
	c.mu.Unlock()

	c.logger.Info("session created", "session_id", id)
	if c.history != nil {
		if err := c.history.SaveSession(ctx, id); err != nil {
			c.logger.Warn("persist session failed", "error", err)
		}
	}
	return id, nil
}

// applyChunk folds one chunk into the store and publishes the snapshot.
// Chunk application is strictly sequential: the store is updated before the
// next Recv is issued.
func (c *Conversation) applyChunk(chunk domain.StreamChunk) {
	c.mu.Lock()
	c.messages = Reduce(c.messages, chunk)
	c.mu.Unlock()
	c.publish(true)
}

func (c *Conversation) appendAndPublish(msg domain.Message, streaming bool) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.publish(streaming)
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Conversation) fail(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	c.logger.Error("turn failed", "error", err, "code", domain.ErrorCodeOf(err))
	c.publish(false)
}

func (c *Conversation) publish(streaming bool) {
	c.mu.Lock()
	fn := c.onUpdate
	snapshot := make([]domain.Message, len(c.messages))
	copy(snapshot, c.messages)
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot, streaming)
	}
}

// persistTurn appends the messages produced by the completed turn
// (from index first onward) to the transcript store.
func (c *Conversation) persistTurn(ctx context.Context, sessionID string, first int) {
	if c.history == nil {
		return
	}
	msgs := c.Messages()
	if first < 0 {
		first = 0
	}
	if first >= len(msgs) {
		return
	}
	if err := c.history.AppendMessages(ctx, sessionID, msgs[first:]); err != nil {
		c.logger.Warn("persist turn failed", "error", err, "session_id", sessionID)
	}
}
