package orchestrator

import (
	"context"

	"github.com/conversa-ai/conversa/internal/tools"
)

// SchemaLister is the executor-side surface the catalog reads from.
type SchemaLister interface {
	Schemas() []tools.Schema
}

// ExecutorCatalog exposes an executor's registered tools as the chat tool
// catalog. All registered tools are visible to every actor; per-actor
// filtering happens at execution time, not listing time.
type ExecutorCatalog struct {
	lister SchemaLister
}

// NewExecutorCatalog wraps a schema lister.
func NewExecutorCatalog(lister SchemaLister) *ExecutorCatalog {
	return &ExecutorCatalog{lister: lister}
}

// ListAvailable returns the registered tool schemas.
func (c *ExecutorCatalog) ListAvailable(ctx context.Context, actor Actor) ([]tools.Schema, error) {
	return c.lister.Schemas(), nil
}
