package usecase

import (
	"time"

	"persai-chat/internal/domain"
)

// nowUnix is swapped out in tests for deterministic timestamps.
var nowUnix = func() int64 { return time.Now().Unix() }

// Reduce folds one stream chunk into the message list and returns the next
// list. It never mutates its input: updates copy the slice, appends extend a
// fresh one. Unrecognized or malformed chunks return the input unchanged, so
// the reducer is total over any well-formed chunk.
func Reduce(messages []domain.Message, chunk domain.StreamChunk) []domain.Message {
	p := chunk.Event.Payload

	switch p.EventType {
	case domain.EventStepProgress:
		if p.Delta == nil || p.Delta.Type != domain.DeltaTypeText {
			return messages
		}
		return mergeAgentText(messages, p.Delta.Text, false)

	case domain.EventStepComplete:
		if p.StepDetails == nil || p.StepDetails.StepType != domain.StepTypeToolExecution {
			return messages
		}
		// Sequential fold: each pair sees the list produced by the previous
		// one, so duplicate call ids within one chunk still upsert.
		out := messages
		for i, call := range p.StepDetails.ToolCalls {
			var resp *domain.EventToolResponse
			if i < len(p.StepDetails.ToolResponses) {
				resp = &p.StepDetails.ToolResponses[i]
			}
			out = upsertToolCall(out, call, resp)
		}
		return out

	case domain.EventTurnComplete:
		if p.Turn == nil || p.Turn.OutputMessage == nil {
			return messages
		}
		// The final output message is authoritative: it replaces the trailing
		// agent content rather than appending to it.
		return mergeAgentText(messages, p.Turn.OutputMessage.Content, true)

	default:
		// turn_start, step_start, turn_awaiting_input, and anything the
		// backend grows later: lifecycle-only, no message state.
		return messages
	}
}

// mergeAgentText applies text to the trailing agent message, or starts a new
// one when the last entry is not an agent message (or the list is empty).
// replace selects full-replacement semantics (turn_complete) over
// concatenation (step_progress).
func mergeAgentText(messages []domain.Message, text string, replace bool) []domain.Message {
	if n := len(messages); n > 0 && messages[n-1].Role == domain.RoleAgent {
		out := make([]domain.Message, n)
		copy(out, messages)
		last := out[n-1]
		if replace {
			last.Content = text
		} else {
			last.Content += text
		}
		out[n-1] = last
		return out
	}

	out := make([]domain.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, domain.Message{
		Role:      domain.RoleAgent,
		Content:   text,
		CreatedAt: nowUnix(),
	})
}
