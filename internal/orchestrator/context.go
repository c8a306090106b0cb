package orchestrator

import (
	"context"
	"log/slog"
	"sync"
)

const (
	defaultHistoryLimit  = 50
	defaultMemoryTopK    = 5
	defaultKnowledgeTopK = 5
	maxRetrievalTopK     = 20
)

// Assembler fetches and aggregates everything the prompt builder needs. It
// is read-only: assembly has no side effects.
type Assembler struct {
	users     UserDirectory
	chats     ChatLog
	memories  MemorySearcher
	knowledge KnowledgeSearcher
	prompts   PromptProvider
	catalog   ToolCatalog

	historyLimit  int
	memoryTopK    int
	knowledgeTopK int
}

// AssemblerOptions configures an Assembler. Zero limits fall back to
// defaults.
type AssemblerOptions struct {
	Users         UserDirectory
	Chats         ChatLog
	Memories      MemorySearcher
	Knowledge     KnowledgeSearcher
	Prompts       PromptProvider
	Catalog       ToolCatalog
	HistoryLimit  int
	MemoryTopK    int
	KnowledgeTopK int
}

// NewAssembler creates a context assembler.
func NewAssembler(opts AssemblerOptions) *Assembler {
	return &Assembler{
		users:         opts.Users,
		chats:         opts.Chats,
		memories:      opts.Memories,
		knowledge:     opts.Knowledge,
		prompts:       opts.Prompts,
		catalog:       opts.Catalog,
		historyLimit:  clampTopK(opts.HistoryLimit, defaultHistoryLimit),
		memoryTopK:    clampTopK(opts.MemoryTopK, defaultMemoryTopK),
		knowledgeTopK: clampTopK(opts.KnowledgeTopK, defaultKnowledgeTopK),
	}
}

func clampTopK(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxRetrievalTopK && def != defaultHistoryLimit {
		return maxRetrievalTopK
	}
	return v
}

// Assemble fetches all generation inputs. The chat resolution is
// authoritative: a not-found or permission-denied error aborts assembly and
// is returned verbatim. Every other fetch failure degrades to an
// empty/default value so generation is never blocked on a non-essential
// signal.
func (a *Assembler) Assemble(ctx context.Context, actor Actor, chatID, userID, userMessage string) (*AIContext, error) {
	out := &AIContext{
		SchemaVersion: ContextSchemaVersion,
		UserID:        userID,
		ChatID:        chatID,
	}

	var (
		wg      sync.WaitGroup
		chatErr error
	)

	// Chat plus history: the history fetch depends on the chat resolving,
	// so both run sequentially inside one goroutine. The other fetches are
	// independent and run concurrently with it.
	wg.Add(1)
	go func() {
		defer wg.Done()
		chat, err := a.chats.GetChat(ctx, actor, chatID)
		if err != nil {
			chatErr = err
			return
		}
		if out.UserID == "" {
			out.UserID = chat.UserID
		}
		history, err := a.chats.Messages(ctx, actor, chatID, a.historyLimit)
		if err != nil {
			slog.Warn("History fetch failed, continuing without history", "chat_id", chatID, "error", err)
			return
		}
		out.History = history
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if a.users == nil {
			return
		}
		prefs, err := a.users.AIPreferences(ctx, actor, userID)
		if err != nil {
			slog.Warn("Preferences fetch failed, using defaults", "user_id", userID, "error", err)
			return
		}
		out.Preferences = prefs
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if a.prompts == nil {
			return
		}
		prompt, err := a.prompts.ActivePrompt(ctx, actor)
		if err != nil {
			slog.Warn("Active prompt fetch failed, continuing without", "error", err)
			return
		}
		out.SystemPrompt = prompt
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if a.memories == nil {
			return
		}
		fragments, err := a.memories.SearchMemories(ctx, actor, userID, userMessage, a.memoryTopK)
		if err != nil {
			slog.Warn("Memory search failed, continuing without memories", "error", err)
			return
		}
		out.Memories = fragments
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if a.knowledge == nil {
			return
		}
		fragments, err := a.knowledge.SearchKnowledge(ctx, actor, userMessage, a.knowledgeTopK)
		if err != nil {
			slog.Warn("Knowledge search failed, continuing without knowledge", "error", err)
			return
		}
		out.Knowledge = fragments
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if a.catalog == nil {
			return
		}
		schemas, err := a.catalog.ListAvailable(ctx, actor)
		if err != nil {
			slog.Warn("Tool list fetch failed, continuing without tools", "error", err)
			return
		}
		out.Tools = schemas
	}()

	wg.Wait()

	if chatErr != nil {
		return nil, chatErr
	}
	return out, nil
}
