// Package orchestrator implements the AI orchestration engine: context
// assembly, prompt building, the tool-calling loop and the run façade.
package orchestrator

import (
	"time"

	"github.com/conversa-ai/conversa/internal/llm"
	"github.com/conversa-ai/conversa/internal/tools"
)

// ContextSchemaVersion tags the AIContext layout.
const ContextSchemaVersion = 1

// AIContext is the immutable snapshot used for one generation turn. It is
// built once by the Assembler and read-only thereafter.
type AIContext struct {
	SchemaVersion int
	// SystemPrompt is the governance-approved prompt, empty when none is
	// active. The immutable core instructions are not part of the context;
	// they are compiled into the prompt builder.
	SystemPrompt string
	Preferences  Preferences
	Memories     []MemoryFragment
	Knowledge    []KnowledgeFragment
	History      []ChatMessage
	Tools        []tools.Schema
	UserID       string
	ChatID       string
}

// Config is the per-deployment orchestration policy.
type Config struct {
	Model           string
	MaxInputTokens  int
	MaxOutputTokens int
	MaxIterations   int
	MaxToolCalls    int
	ToolTimeout     time.Duration
	TotalTimeout    time.Duration
	Temperature     float64
}

// DefaultConfig returns the default orchestration policy.
func DefaultConfig() Config {
	return Config{
		Model:           "gpt-4o-mini",
		MaxInputTokens:  16000,
		MaxOutputTokens: 4096,
		MaxIterations:   8,
		MaxToolCalls:    16,
		ToolTimeout:     30 * time.Second,
		TotalTimeout:    2 * time.Minute,
		Temperature:     0.7,
	}
}

// Overrides are per-request policy overrides. Zero-valued fields inherit
// from the base config.
type Overrides struct {
	Model           string
	MaxOutputTokens int
	MaxIterations   int
	MaxToolCalls    int
	Temperature     float64
}

// merged returns the effective config for one run.
func (c Config) merged(o *Overrides) Config {
	if o == nil {
		return c
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.MaxOutputTokens > 0 {
		c.MaxOutputTokens = o.MaxOutputTokens
	}
	if o.MaxIterations > 0 {
		c.MaxIterations = o.MaxIterations
	}
	if o.MaxToolCalls > 0 {
		c.MaxToolCalls = o.MaxToolCalls
	}
	if o.Temperature > 0 {
		c.Temperature = o.Temperature
	}
	return c
}

// Stop reasons for the tool loop. max_iterations and max_tool_calls are
// successful-but-bounded terminations, not errors.
const (
	StopCompleted     = "completed"
	StopMaxIterations = "max_iterations"
	StopMaxToolCalls  = "max_tool_calls"
)

// ToolCallRecord is one completed tool invocation, accumulated across all
// loop iterations into the final result.
type ToolCallRecord struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	Output   string         `json:"output,omitempty"`
	Status   string         `json:"status"` // "success" or "failure"
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Result is the final outcome of one orchestration run.
type Result struct {
	Content       string
	Model         string
	Usage         llm.Usage
	Iterations    int
	ToolCalls     []ToolCallRecord
	StoppedReason string
	// MessageID is the id of the persisted assistant message.
	MessageID string
}
