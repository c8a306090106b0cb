package audit

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewPublisherLogOnly(t *testing.T) {
	p := NewPublisher(Config{})
	if p.writer != nil {
		t.Error("writer created without brokers")
	}
	// Must not panic or block in log-only mode.
	p.Publish(Event{Type: EventOrchestration, RequestID: "r1"})
	if err := p.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(Config{Brokers: "localhost:9092"})
	if p.writer == nil {
		t.Fatal("writer not created")
	}
	defer p.Close()
	if p.writer.Topic != "conversa.audit" {
		t.Errorf("topic = %q, want default", p.writer.Topic)
	}
	if p.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", p.timeout)
	}
}

func TestEventSerialization(t *testing.T) {
	ev := Event{
		Type:          EventOrchestration,
		RequestID:     "req-1",
		ChatID:        "c1",
		Model:         "gpt-4o-mini",
		Iterations:    2,
		ToolNames:     []string{"calculator"},
		TotalTokens:   300,
		StoppedReason: "completed",
		Timestamp:     "2026-09-01T00:00:00Z",
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "orchestration" || got["request_id"] != "req-1" {
		t.Errorf("payload = %s", payload)
	}
	// Zero-valued optional fields stay off the wire.
	if _, ok := got["actor_id"]; ok {
		t.Error("empty actor_id serialized")
	}
	if _, ok := got["detail"]; ok {
		t.Error("empty detail serialized")
	}
}
