package orchestrator

import (
	"context"
	"time"

	"github.com/conversa-ai/conversa/internal/tools"
)

// Actor is the identity on whose behalf an operation executes. Collaborators
// use it for authorization decisions.
type Actor struct {
	ID   string
	Type string // "user", "system", "ai"
}

// SystemActor is the elevated identity used for system-level side effects
// such as appending the AI response to the conversation log.
var SystemActor = Actor{ID: "system", Type: "system"}

// ActorTypeAI tags machine-authored messages in persisted metadata so
// downstream audit/UI code can distinguish them from human ones.
const ActorTypeAI = "ai"

// Preferences are a user's AI response preferences. Zero-valued fields are
// simply not rendered into the prompt.
type Preferences struct {
	ResponseLength     string // "short", "medium", "long"
	Formality          string // "casual", "neutral", "formal"
	CustomInstructions string
}

// Chat identifies a conversation and its owner.
type Chat struct {
	ID     string
	UserID string
}

// ChatMessage is one prior conversation entry in chronological order.
type ChatMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// NewMessage is the payload for appending to the conversation log.
type NewMessage struct {
	Role        string
	Content     string
	ActorType   string
	Model       string
	TotalTokens int
	// ToolCalls is the serialized tool-call record list, stored alongside
	// the message for audit purposes.
	ToolCalls string
}

// MemoryFragment is one retrieved, already-ranked memory.
type MemoryFragment struct {
	Content    string
	Category   string
	Importance int     // 1-10
	Similarity float64 // 0-1
}

// KnowledgeFragment is one retrieved, already-ranked knowledge entry.
type KnowledgeFragment struct {
	Title      string
	Content    string
	Similarity float64
}

// UserDirectory resolves per-user AI preferences.
type UserDirectory interface {
	AIPreferences(ctx context.Context, actor Actor, userID string) (Preferences, error)
}

// ChatLog is the conversation-log collaborator. GetChat failures (not-found,
// permission-denied) are the only hard context-assembly failures.
type ChatLog interface {
	GetChat(ctx context.Context, actor Actor, chatID string) (Chat, error)
	Messages(ctx context.Context, actor Actor, chatID string, limit int) ([]ChatMessage, error)
	AddMessage(ctx context.Context, actor Actor, chatID string, msg NewMessage) (string, error)
}

// MemorySearcher returns ranked memory fragments for a query.
type MemorySearcher interface {
	SearchMemories(ctx context.Context, actor Actor, userID, query string, limit int) ([]MemoryFragment, error)
}

// KnowledgeSearcher returns ranked knowledge fragments for a query.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, actor Actor, query string, limit int) ([]KnowledgeFragment, error)
}

// PromptProvider resolves the currently active governance-approved system
// prompt. An empty string with nil error means no prompt is active.
type PromptProvider interface {
	ActivePrompt(ctx context.Context, actor Actor) (string, error)
}

// ToolCatalog lists the tool schemas available to a chat.
type ToolCatalog interface {
	ListAvailable(ctx context.Context, actor Actor) ([]tools.Schema, error)
}
