package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Event types emitted by the agent turn stream. The vocabulary is fixed by
// the backend wire protocol; unknown types are ignored by the reducer.
const (
	EventTurnStart         = "turn_start"
	EventStepStart         = "step_start"
	EventStepProgress      = "step_progress"
	EventStepComplete      = "step_complete"
	EventTurnComplete      = "turn_complete"
	EventTurnAwaitingInput = "turn_awaiting_input"
)

// DeltaTypeText is the only actionable step_progress delta variant.
const DeltaTypeText = "text"

// StepTypeToolExecution is the only actionable step_complete step type.
const StepTypeToolExecution = "tool_execution"

// StreamChunk is one SSE payload from an open turn stream, wrapped as
// {event: {payload: {...}}} on the wire. Chunks are consumed once by the
// reducer and discarded.
type StreamChunk struct {
	Event ChunkEvent `json:"event"`
}

// ChunkEvent wraps the payload envelope.
type ChunkEvent struct {
	Payload ChunkPayload `json:"payload"`
}

// ChunkPayload is the discriminated chunk body. Only the fields matching
// EventType are populated; the rest stay zero.
type ChunkPayload struct {
	EventType   string       `json:"event_type"`
	Delta       *Delta       `json:"delta,omitempty"`        // step_progress
	StepDetails *StepDetails `json:"step_details,omitempty"` // step_complete
	Turn        *TurnResult  `json:"turn,omitempty"`         // turn_complete
}

// Delta is an incremental content update. Non-text variants exist on the
// wire (tool call fragments, images) and are ignored.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StepDetails describes a completed step. For tool_execution steps,
// ToolResponses parallels ToolCalls by index but may be shorter when some
// calls have not resolved yet.
type StepDetails struct {
	StepType      string              `json:"step_type"`
	ToolCalls     []EventToolCall     `json:"tool_calls,omitempty"`
	ToolResponses []EventToolResponse `json:"tool_responses,omitempty"`
}

// EventToolCall is a tool invocation announced by the stream.
type EventToolCall struct {
	CallID    string   `json:"call_id"`
	ToolName  string   `json:"tool_name"`
	Arguments ToolArgs `json:"arguments,omitempty"`
}

// EventToolResponse is the resolved result of a tool invocation.
type EventToolResponse struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name,omitempty"`
	Content  string `json:"content"`
}

// TurnResult is the terminal payload of a turn. OutputMessage, when present,
// is the authoritative final text and replaces accumulated deltas.
type TurnResult struct {
	TurnID        string         `json:"turn_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	OutputMessage *OutputMessage `json:"output_message,omitempty"`
}

// OutputMessage is the final agent message of a completed turn.
type OutputMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// ToolArgs is a string-keyed argument mapping. Backends occasionally send
// non-string scalar values; those are coerced to their JSON text so the
// reducer stays total.
type ToolArgs map[string]string

// UnmarshalJSON accepts any JSON object and stringifies scalar values.
func (a *ToolArgs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tool arguments: %w", err)
	}
	out := make(ToolArgs, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	*a = out
	return nil
}

// String renders arguments as "k=v" pairs in key order, for display and logs.
func (a ToolArgs) String() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+a[k])
	}
	return strings.Join(parts, " ")
}

// ParseStreamChunk decodes one SSE data payload into a StreamChunk.
func ParseStreamChunk(data []byte) (StreamChunk, error) {
	var chunk StreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return StreamChunk{}, fmt.Errorf("parse stream chunk: %w", err)
	}
	return chunk, nil
}
