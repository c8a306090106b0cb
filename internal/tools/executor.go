package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/conversa-ai/conversa/internal/mcp"
	"github.com/conversa-ai/conversa/internal/n8n"
)

// BackendKind identifies which backend serves a routed tool.
type BackendKind string

const (
	// BackendLocal routes to an in-process Tool handler.
	BackendLocal BackendKind = "local"
	// BackendMCP routes to a tool on a remote MCP server.
	BackendMCP BackendKind = "mcp"
	// BackendN8N routes to an n8n workflow.
	BackendN8N BackendKind = "n8n"
)

// Route maps a tool name to its backend.
type Route struct {
	Kind BackendKind

	// Local backend.
	Tool Tool

	// MCP backend: registered server name plus the tool's name on that server.
	Server     string
	RemoteName string

	// N8N backend.
	WorkflowID string

	// Schema advertised to the model for non-local backends. Local routes
	// take their schema from the Tool itself.
	Description string
	Parameters  map[string]any
}

// Executor routes named tool calls to their backends and normalizes every
// outcome into an ExecutionResult. It never returns an error and never
// panics outward: unknown tools, unconfigured backends, handler errors and
// handler panics all become failure results.
type Executor struct {
	mu         sync.RWMutex
	routes     map[string]Route
	mcpClients map[string]*mcp.Client
	n8nClient  *n8n.Client
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{
		routes:     make(map[string]Route),
		mcpClients: make(map[string]*mcp.Client),
	}
}

// RegisterLocal registers an in-process tool under its own name.
func (e *Executor) RegisterLocal(tool Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[tool.Name()] = Route{Kind: BackendLocal, Tool: tool}
}

// RegisterRoute registers a remote route under the given tool name.
func (e *Executor) RegisterRoute(name string, route Route) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[name] = route
}

// AddMCPServer registers a named MCP server client for mcp routes.
func (e *Executor) AddMCPServer(name string, client *mcp.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mcpClients[name] = client
}

// SetN8NClient sets the workflow-engine client for n8n routes.
func (e *Executor) SetN8NClient(client *n8n.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n8nClient = client
}

// Schemas returns the advertised schema list for all registered routes,
// sorted by name for deterministic ordering.
func (e *Executor) Schemas() []Schema {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Schema, 0, len(e.routes))
	for name, route := range e.routes {
		s := Schema{Name: name, Description: route.Description, Parameters: route.Parameters}
		if route.Kind == BackendLocal && route.Tool != nil {
			s.Description = route.Tool.Description()
			s.Parameters = route.Tool.Parameters()
		}
		if s.Parameters == nil {
			s.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Execute dispatches one tool call. The per-call timeout from cc is applied
// on top of the caller's context. Any panic inside a backend is converted
// into a failure result.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]any, cc CallContext) (result ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", name, "panic", r)
			result = ExecutionResult{
				Success:  false,
				Error:    fmt.Sprintf("tool %s panicked: %v", name, r),
				Duration: time.Since(start),
			}
		}
	}()

	e.mu.RLock()
	route, ok := e.routes[name]
	mcpClient := e.mcpClients[route.Server]
	n8nClient := e.n8nClient
	e.mu.RUnlock()

	if !ok {
		return failure(start, fmt.Sprintf("unknown tool: %s", name))
	}

	if cc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.Timeout)
		defer cancel()
	}

	var (
		output string
		err    error
	)
	switch route.Kind {
	case BackendLocal:
		if route.Tool == nil {
			return failure(start, fmt.Sprintf("tool %s has no registered handler", name))
		}
		output, err = route.Tool.Execute(ctx, input)
	case BackendMCP:
		if mcpClient == nil {
			return failure(start, fmt.Sprintf("tool %s: MCP server %q not configured", name, route.Server))
		}
		remote := route.RemoteName
		if remote == "" {
			remote = name
		}
		output, err = mcpClient.CallTool(ctx, remote, input)
	case BackendN8N:
		if n8nClient == nil {
			return failure(start, fmt.Sprintf("tool %s: n8n backend not configured", name))
		}
		output, err = n8nClient.RunWorkflow(ctx, route.WorkflowID, input)
	default:
		return failure(start, fmt.Sprintf("tool %s: unknown backend kind %q", name, route.Kind))
	}

	duration := time.Since(start)
	if err != nil {
		slog.Debug("Tool failed", "tool", name, "error", err, "duration_ms", duration.Milliseconds())
		return ExecutionResult{Success: false, Error: err.Error(), Duration: duration}
	}

	slog.Debug("Tool executed", "tool", name, "result_length", len(output), "duration_ms", duration.Milliseconds())
	return ExecutionResult{Success: true, Output: output, Duration: duration}
}

func failure(start time.Time, msg string) ExecutionResult {
	return ExecutionResult{Success: false, Error: msg, Duration: time.Since(start)}
}
