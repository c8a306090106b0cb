// Package bus provides the async message bus between transport frontends
// and the orchestration core.
package bus

import (
	"context"
	"sync"
	"time"
)

// InboundMessage represents a user message entering the core.
type InboundMessage struct {
	UserID    string         `json:"user_id"`
	ChatID    string         `json:"chat_id"`
	RequestID string         `json:"request_id,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// OutboundMessage represents an assistant response leaving the core.
type OutboundMessage struct {
	UserID    string `json:"user_id"`
	ChatID    string `json:"chat_id"`
	RequestID string `json:"request_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content"`
}

// MessageBus decouples transports from the orchestration core.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound hands a user message to the core.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound hands an assistant response to subscribed transports.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// Subscribe registers a callback for responses addressed to a chat. The
// empty chat id subscribes to all responses.
func (b *MessageBus) Subscribe(chatID string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[chatID] = append(b.subs[chatID], callback)
}

// DispatchOutbound runs the outbound dispatcher. This should be run as a
// goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := append([]func(*OutboundMessage){}, b.subs[msg.ChatID]...)
			// Wildcard subscribers are already in callbacks when the
			// message itself is unaddressed.
			if msg.ChatID != "" {
				callbacks = append(callbacks, b.subs[""]...)
			}
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
