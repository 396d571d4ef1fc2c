package domain

import (
	"encoding/json"
	"testing"
)

func TestToolArgsCoercesScalars(t *testing.T) {
	raw := []byte(`{"query": "up == 0", "limit": 10, "exact": true, "range": {"start": 1}}`)

	var args ToolArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]string{
		"query": "up == 0",
		"limit": "10",
		"exact": "true",
		"range": `{"start": 1}`,
	}
	if len(args) != len(want) {
		t.Fatalf("got %d args, want %d", len(args), len(want))
	}
	for k, v := range want {
		if args[k] != v {
			t.Errorf("args[%q] = %q, want %q", k, args[k], v)
		}
	}
}

func TestToolArgsRejectsNonObject(t *testing.T) {
	var args ToolArgs
	if err := json.Unmarshal([]byte(`["not", "an", "object"]`), &args); err == nil {
		t.Fatal("expected error for non-object arguments")
	}
}

func TestToolArgsStringIsKeyOrdered(t *testing.T) {
	args := ToolArgs{"z": "1", "a": "2", "m": "3"}
	if got, want := args.String(), "a=2 m=3 z=1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := ToolArgs(nil).String(); got != "" {
		t.Errorf("nil args String() = %q, want empty", got)
	}
}

func TestParseStreamChunk(t *testing.T) {
	data := []byte(`{"event":{"payload":{"event_type":"step_progress","delta":{"type":"text","text":"hi"}}}}`)

	chunk, err := ParseStreamChunk(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := chunk.Event.Payload
	if p.EventType != EventStepProgress {
		t.Errorf("event_type = %q, want %q", p.EventType, EventStepProgress)
	}
	if p.Delta == nil || p.Delta.Type != DeltaTypeText || p.Delta.Text != "hi" {
		t.Errorf("delta = %+v, want text delta %q", p.Delta, "hi")
	}
}

func TestParseStreamChunkToolExecution(t *testing.T) {
	data := []byte(`{"event":{"payload":{"event_type":"step_complete","step_details":{
		"step_type":"tool_execution",
		"tool_calls":[{"call_id":"c1","tool_name":"query_range","arguments":{"query":"up"}}],
		"tool_responses":[{"call_id":"c1","content":"ok"}]}}}}`)

	chunk, err := ParseStreamChunk(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := chunk.Event.Payload.StepDetails
	if d == nil || d.StepType != StepTypeToolExecution {
		t.Fatalf("step_details = %+v, want tool_execution", d)
	}
	if len(d.ToolCalls) != 1 || d.ToolCalls[0].CallID != "c1" || d.ToolCalls[0].Arguments["query"] != "up" {
		t.Errorf("tool_calls = %+v", d.ToolCalls)
	}
	if len(d.ToolResponses) != 1 || d.ToolResponses[0].Content != "ok" {
		t.Errorf("tool_responses = %+v", d.ToolResponses)
	}
}

func TestParseStreamChunkMalformed(t *testing.T) {
	if _, err := ParseStreamChunk([]byte(`{"event":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
