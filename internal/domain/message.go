package domain

import "time"

// Role constants for conversation entries.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
	RoleTool   = "tool"
)

// ToolCallInfo carries the correlation and display payload of a tool entry.
// Result is nil until the matching tool response has arrived.
type ToolCallInfo struct {
	CallID   string            `json:"call_id"`
	ToolName string            `json:"tool_name"`
	Args     map[string]string `json:"args,omitempty"`
	Result   *string           `json:"result,omitempty"`
}

// Message is a single conversation entry. Agent message content may grow
// while a turn is streaming; all other fields are fixed at creation.
type Message struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	CreatedAt int64         `json:"created_at"` // unix seconds
	ToolCall  *ToolCallInfo `json:"tool_call,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().Unix()}
}

// IsTool reports whether the message is a tool entry with correlation data.
func (m Message) IsTool() bool {
	return m.Role == RoleTool && m.ToolCall != nil
}

// SessionInfo describes a backend session as returned by the sessions list.
type SessionInfo struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
}
