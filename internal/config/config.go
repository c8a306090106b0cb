// Package config provides configuration types and loading for conversa.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths        PathsConfig        `json:"paths"`
	Model        ModelConfig        `json:"model"`
	Provider     ProviderConfig     `json:"provider"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Retrieval    RetrievalConfig    `json:"retrieval"`
	MCP          []MCPServerConfig  `json:"mcp"`
	N8N          N8NConfig          `json:"n8n"`
	Audit        AuditConfig        `json:"audit"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ModelConfig groups LLM model settings.
type ModelConfig struct {
	Name            string  `json:"name" envconfig:"MODEL"`
	MaxInputTokens  int     `json:"maxInputTokens" envconfig:"MAX_INPUT_TOKENS"`
	MaxOutputTokens int     `json:"maxOutputTokens" envconfig:"MAX_OUTPUT_TOKENS"`
	Temperature     float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ProviderConfig holds the completion backend credentials.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// OrchestratorConfig bounds the tool loop.
type OrchestratorConfig struct {
	MaxIterations int           `json:"maxIterations" envconfig:"MAX_ITERATIONS"`
	MaxToolCalls  int           `json:"maxToolCalls" envconfig:"MAX_TOOL_CALLS"`
	ToolTimeout   time.Duration `json:"toolTimeout" envconfig:"TOOL_TIMEOUT"`
	TotalTimeout  time.Duration `json:"totalTimeout" envconfig:"TOTAL_TIMEOUT"`
}

// RetrievalConfig bounds context assembly fetches.
type RetrievalConfig struct {
	HistoryLimit  int `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
	MemoryTopK    int `json:"memoryTopK" envconfig:"MEMORY_TOP_K"`
	KnowledgeTopK int `json:"knowledgeTopK" envconfig:"KNOWLEDGE_TOP_K"`
}

// MCPServerConfig configures one MCP tool server.
type MCPServerConfig struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// N8NConfig configures the n8n workflow backend.
type N8NConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
}

// AuditConfig configures the Kafka audit publisher. Empty brokers disable
// Kafka and audit events go to the structured log.
type AuditConfig struct {
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.conversa",
		},
		Model: ModelConfig{
			Name:            "gpt-4o-mini",
			MaxInputTokens:  16000,
			MaxOutputTokens: 4096,
			Temperature:     0.7,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations: 8,
			MaxToolCalls:  16,
			ToolTimeout:   30 * time.Second,
			TotalTimeout:  2 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			HistoryLimit:  50,
			MemoryTopK:    5,
			KnowledgeTopK: 5,
		},
		Audit: AuditConfig{
			Topic: "conversa.audit",
		},
	}
}
