package governance

import (
	"context"
	"fmt"
	"sync"

	"github.com/conversa-ai/conversa/internal/orchestrator"
)

func reviewerActor(id string) orchestrator.Actor {
	return orchestrator.Actor{ID: id, Type: "system"}
}

// ReviewManager coordinates interactive prompt reviews: a submitter blocks on
// Wait until a reviewer delivers a decision through Respond. Decisions are
// applied to the prompt store before the waiter is released.
type ReviewManager struct {
	mu      sync.Mutex
	pending map[string]chan bool
	store   *Store
}

// NewReviewManager creates a review manager over the prompt store.
func NewReviewManager(store *Store) *ReviewManager {
	return &ReviewManager{
		pending: make(map[string]chan bool),
		store:   store,
	}
}

// Open registers a prompt id for interactive review. The prompt must already
// be in pending state.
func (m *ReviewManager) Open(promptID string) {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.pending[promptID] = ch
	m.mu.Unlock()
}

// Wait blocks until the review is responded to or the context expires. On a
// decision the store transition has already been applied.
func (m *ReviewManager) Wait(ctx context.Context, promptID string) (bool, error) {
	m.mu.Lock()
	ch, ok := m.pending[promptID]
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("no pending review: %s", promptID)
	}

	select {
	case approved := <-ch:
		m.cleanup(promptID)
		return approved, nil
	case <-ctx.Done():
		m.cleanup(promptID)
		return false, ctx.Err()
	}
}

// Respond applies the reviewer's decision and releases the waiter.
func (m *ReviewManager) Respond(ctx context.Context, reviewer string, promptID string, approved bool) error {
	m.mu.Lock()
	ch, ok := m.pending[promptID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending review: %s", promptID)
	}

	actor := reviewerActor(reviewer)
	var err error
	if approved {
		err = m.store.Approve(ctx, actor, promptID)
	} else {
		err = m.store.Deny(ctx, actor, promptID)
	}
	if err != nil {
		return err
	}

	// Non-blocking send (channel is buffered with size 1).
	select {
	case ch <- approved:
	default:
	}
	return nil
}

func (m *ReviewManager) cleanup(promptID string) {
	m.mu.Lock()
	delete(m.pending, promptID)
	m.mu.Unlock()
}
