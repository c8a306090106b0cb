// Package audit publishes orchestration trace events to Kafka. Publishing
// is best effort: a broker failure is logged and never blocks or fails the
// request that produced the event.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	EventOrchestration = "orchestration"
	EventPromptChange  = "prompt_change"
)

// Event is one audit record.
type Event struct {
	Type          string   `json:"type"`
	RequestID     string   `json:"request_id"`
	ActorID       string   `json:"actor_id,omitempty"`
	ChatID        string   `json:"chat_id,omitempty"`
	Model         string   `json:"model,omitempty"`
	Iterations    int      `json:"iterations,omitempty"`
	ToolNames     []string `json:"tool_names,omitempty"`
	TotalTokens   int      `json:"total_tokens,omitempty"`
	StoppedReason string   `json:"stopped_reason,omitempty"`
	DurationMS    int64    `json:"duration_ms,omitempty"`
	Detail        string   `json:"detail,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// Config configures the publisher.
type Config struct {
	// Brokers is a comma-separated bootstrap list. Empty disables Kafka and
	// events go to the structured log only.
	Brokers string
	Topic   string
	// WriteTimeout bounds one produce attempt. Defaults to 5s.
	WriteTimeout time.Duration
}

// Publisher writes audit events.
type Publisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewPublisher creates an audit publisher. With no brokers configured the
// publisher degrades to log-only mode.
func NewPublisher(cfg Config) *Publisher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	p := &Publisher{timeout: cfg.WriteTimeout}
	if cfg.Brokers == "" {
		return p
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "conversa.audit"
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return p
}

// Publish emits one event. Errors are logged, never returned.
func (p *Publisher) Publish(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Audit event marshal failed", "type", ev.Type, "error", err)
		return
	}

	if p.writer == nil {
		slog.Info("Audit event", "type", ev.Type, "request_id", ev.RequestID, "payload", string(payload))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		slog.Warn("Audit event publish failed", "type", ev.Type, "request_id", ev.RequestID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
