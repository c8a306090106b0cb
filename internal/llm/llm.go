// Package llm implements the completion-backend client abstraction.
package llm

import "context"

// Message roles understood by the completion backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported by the completion backend.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool_calls"
	FinishContentFilter = "content_filter"
)

// Client is the interface for completion-backend clients.
type Client interface {
	// Complete sends a chat completion request and returns the response.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// Stream sends a chat completion request and returns an incremental
	// chunk sequence. The caller must drain or Close the stream.
	Stream(ctx context.Context, req *ChatRequest) (*Stream, error)
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the normalized response from a completion request.
// Absent backend fields are normalized: missing content is the empty string
// and missing usage is all-zero counters.
type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// First returns the first choice, or a zero Choice when the backend sent
// none. Callers treat a zero Choice as an empty stop.
func (r *ChatResponse) First() Choice {
	if len(r.Choices) == 0 {
		return Choice{FinishReason: FinishStop}
	}
	return r.Choices[0]
}

// Choice is one completion alternative.
type Choice struct {
	Message      Message
	FinishReason string
}

// Message represents a role-tagged chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the model. Arguments is
// the raw JSON payload as emitted by the backend.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition defines a tool the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage counters.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Chunk is one incremental streaming delta. The terminal chunk carries the
// finish reason and, when the backend reports it, final usage.
type Chunk struct {
	Role           string
	ContentDelta   string
	ToolCallDeltas []ToolCallDelta
	FinishReason   string
	Usage          *Usage
}

// ToolCallDelta is a partial tool-call fragment within a streaming response.
// Fragments with the same Index belong to the same call; ArgumentsDelta
// pieces concatenate into the raw JSON payload.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}
