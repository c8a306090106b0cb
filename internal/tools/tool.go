// Package tools provides the tool framework: local tool implementations and
// the routing executor that dispatches calls to their backends.
package tools

import (
	"context"
	"time"
)

// Tool is the interface implemented by in-process tool handlers.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	// Returns result string and error. On error, return user-friendly message.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Schema describes one callable tool to the completion backend.
type Schema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CallContext carries per-invocation identity and budget.
type CallContext struct {
	UserID    string
	ChatID    string
	RequestID string
	// Timeout bounds this single call. Zero means no per-call bound beyond
	// the caller's context.
	Timeout time.Duration
}

// ExecutionResult is the uniform outcome of a tool invocation. Ordinary
// tool failure is reported here, never as an error value.
type ExecutionResult struct {
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
