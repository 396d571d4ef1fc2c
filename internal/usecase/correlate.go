package usecase

import "persai-chat/internal/domain"

// upsertToolCall folds one (call, response?) pair into the message list.
// Tool entries are keyed by call id: a chunk referencing a known id replaces
// that entry wholesale (including its timestamp, so the entry always shows
// the latest known state); an unknown id appends a new tool entry. A linear
// scan is fine at conversation scale.
func upsertToolCall(messages []domain.Message, call domain.EventToolCall, resp *domain.EventToolResponse) []domain.Message {
	entry := domain.Message{
		Role:      domain.RoleTool,
		CreatedAt: nowUnix(),
		ToolCall: &domain.ToolCallInfo{
			CallID:   call.CallID,
			ToolName: call.ToolName,
			Args:     call.Arguments,
		},
	}
	if resp != nil {
		result := resp.Content
		entry.ToolCall.Result = &result
		entry.Content = resp.Content
	}

	for i, m := range messages {
		if m.IsTool() && m.ToolCall.CallID == call.CallID {
			out := make([]domain.Message, len(messages))
			copy(out, messages)
			out[i] = entry
			return out
		}
	}

	out := make([]domain.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, entry)
}
