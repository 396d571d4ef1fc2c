package usecase

import (
	"testing"

	"persai-chat/internal/domain"
)

func fixNow(t *testing.T) {
	t.Helper()
	old := nowUnix
	nowUnix = func() int64 { return 1700000000 }
	t.Cleanup(func() { nowUnix = old })
}

func textChunk(text string) domain.StreamChunk {
	return domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: domain.EventStepProgress,
		Delta:     &domain.Delta{Type: domain.DeltaTypeText, Text: text},
	}}}
}

func lifecycleChunk(eventType string) domain.StreamChunk {
	return domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: eventType,
	}}}
}

func toolChunk(calls []domain.EventToolCall, responses []domain.EventToolResponse) domain.StreamChunk {
	return domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: domain.EventStepComplete,
		StepDetails: &domain.StepDetails{
			StepType:      domain.StepTypeToolExecution,
			ToolCalls:     calls,
			ToolResponses: responses,
		},
	}}}
}

func turnCompleteChunk(content string) domain.StreamChunk {
	return domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: domain.EventTurnComplete,
		Turn:      &domain.TurnResult{TurnID: "t1", OutputMessage: &domain.OutputMessage{Role: domain.RoleAgent, Content: content}},
	}}}
}

func TestReduceLifecycleEventsAreNoOps(t *testing.T) {
	fixNow(t)
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "hi", CreatedAt: 1}}

	for _, et := range []string{
		domain.EventTurnStart,
		domain.EventStepStart,
		domain.EventTurnAwaitingInput,
		"some_future_event",
	} {
		out := Reduce(msgs, lifecycleChunk(et))
		if len(out) != 1 || out[0].Content != "hi" {
			t.Errorf("event %q changed the message list: %+v", et, out)
		}
	}
}

func TestReduceAppendsThenMergesDeltas(t *testing.T) {
	fixNow(t)
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "hi", CreatedAt: 1}}

	msgs = Reduce(msgs, textChunk("A"))
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages after first delta, got %d", len(msgs))
	}
	if msgs[1].Role != domain.RoleAgent || msgs[1].Content != "A" {
		t.Fatalf("unexpected agent message: %+v", msgs[1])
	}

	msgs = Reduce(msgs, textChunk("B"))
	if len(msgs) != 2 {
		t.Fatalf("second delta should merge, got %d messages", len(msgs))
	}
	if msgs[1].Content != "AB" {
		t.Errorf("expected merged content %q, got %q", "AB", msgs[1].Content)
	}
}

func TestReduceNonTextDeltaIgnored(t *testing.T) {
	fixNow(t)
	chunk := domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: domain.EventStepProgress,
		Delta:     &domain.Delta{Type: "tool_call", Text: "ignored"},
	}}}

	out := Reduce(nil, chunk)
	if len(out) != 0 {
		t.Errorf("non-text delta should be ignored, got %+v", out)
	}
}

func TestReduceNewAgentMessageAfterToolEntry(t *testing.T) {
	fixNow(t)
	var msgs []domain.Message

	msgs = Reduce(msgs, textChunk("before"))
	msgs = Reduce(msgs, toolChunk(
		[]domain.EventToolCall{{CallID: "c1", ToolName: "search", Arguments: domain.ToolArgs{"q": "go"}}},
		nil,
	))
	msgs = Reduce(msgs, textChunk("after"))

	if len(msgs) != 3 {
		t.Fatalf("expected [agent, tool, agent], got %d messages", len(msgs))
	}
	if msgs[0].Content != "before" || !msgs[1].IsTool() || msgs[2].Content != "after" {
		t.Errorf("unexpected sequence: %+v", msgs)
	}
	if msgs[2].Role != domain.RoleAgent {
		t.Errorf("text after a tool entry should start a new agent message, got role %q", msgs[2].Role)
	}
}

func TestReduceToolCallUpsertByID(t *testing.T) {
	fixNow(t)
	var msgs []domain.Message

	// Two calls announced, neither resolved yet.
	msgs = Reduce(msgs, toolChunk(
		[]domain.EventToolCall{
			{CallID: "c1", ToolName: "search", Arguments: domain.ToolArgs{"q": "go"}},
			{CallID: "c2", ToolName: "fetch", Arguments: domain.ToolArgs{"url": "x"}},
		},
		nil,
	))
	if len(msgs) != 2 {
		t.Fatalf("expected 2 tool entries, got %d", len(msgs))
	}
	if msgs[0].ToolCall.Result != nil || msgs[1].ToolCall.Result != nil {
		t.Fatal("results should be unset before responses arrive")
	}

	// A later chunk resolves c1 only. c2 must stay untouched, no duplicates.
	msgs = Reduce(msgs, toolChunk(
		[]domain.EventToolCall{{CallID: "c1", ToolName: "search", Arguments: domain.ToolArgs{"q": "go"}}},
		[]domain.EventToolResponse{{CallID: "c1", Content: "3 results"}},
	))
	if len(msgs) != 2 {
		t.Fatalf("resolving a known call id must not append, got %d messages", len(msgs))
	}
	if msgs[0].ToolCall.CallID != "c1" || msgs[0].ToolCall.Result == nil || *msgs[0].ToolCall.Result != "3 results" {
		t.Errorf("c1 entry not updated: %+v", msgs[0].ToolCall)
	}
	if msgs[1].ToolCall.CallID != "c2" || msgs[1].ToolCall.Result != nil {
		t.Errorf("c2 entry should be unchanged: %+v", msgs[1].ToolCall)
	}
}

func TestReduceParallelResponsesShorterThanCalls(t *testing.T) {
	fixNow(t)
	msgs := Reduce(nil, toolChunk(
		[]domain.EventToolCall{
			{CallID: "c1", ToolName: "search"},
			{CallID: "c2", ToolName: "fetch"},
		},
		[]domain.EventToolResponse{{CallID: "c1", Content: "done"}},
	))

	if len(msgs) != 2 {
		t.Fatalf("expected 2 tool entries, got %d", len(msgs))
	}
	if msgs[0].ToolCall.Result == nil || *msgs[0].ToolCall.Result != "done" {
		t.Errorf("first call should carry its response: %+v", msgs[0].ToolCall)
	}
	if msgs[1].ToolCall.Result != nil {
		t.Errorf("second call has no response yet: %+v", msgs[1].ToolCall)
	}
}

func TestReduceTurnCompleteReplacesTrailingAgentText(t *testing.T) {
	fixNow(t)
	var msgs []domain.Message
	msgs = Reduce(msgs, textChunk("Hello "))
	msgs = Reduce(msgs, textChunk("world"))
	msgs = Reduce(msgs, turnCompleteChunk("Goodbye"))

	if len(msgs) != 1 {
		t.Fatalf("expected single agent message, got %d", len(msgs))
	}
	if msgs[0].Content != "Goodbye" {
		t.Errorf("turn_complete should replace, not append: got %q", msgs[0].Content)
	}
}

func TestReduceTurnCompleteWithoutTrailingAgentAppends(t *testing.T) {
	fixNow(t)
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "hi", CreatedAt: 1}}

	out := Reduce(msgs, turnCompleteChunk("answer"))
	if len(out) != 2 {
		t.Fatalf("expected appended agent message, got %d messages", len(out))
	}
	if out[1].Role != domain.RoleAgent || out[1].Content != "answer" {
		t.Errorf("unexpected final message: %+v", out[1])
	}
}

func TestReduceTurnCompleteWithoutOutputMessage(t *testing.T) {
	fixNow(t)
	msgs := Reduce(nil, textChunk("partial"))
	chunk := domain.StreamChunk{Event: domain.ChunkEvent{Payload: domain.ChunkPayload{
		EventType: domain.EventTurnComplete,
		Turn:      &domain.TurnResult{TurnID: "t1"},
	}}}

	out := Reduce(msgs, chunk)
	if len(out) != 1 || out[0].Content != "partial" {
		t.Errorf("turn_complete without output_message must keep accumulated text: %+v", out)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	fixNow(t)
	msgs := Reduce(nil, textChunk("A"))
	before := msgs[0].Content

	_ = Reduce(msgs, textChunk("B"))
	if msgs[0].Content != before {
		t.Errorf("input slice mutated: %q became %q", before, msgs[0].Content)
	}

	_ = Reduce(msgs, turnCompleteChunk("replaced"))
	if msgs[0].Content != before {
		t.Errorf("input slice mutated by turn_complete: %q", msgs[0].Content)
	}
}
