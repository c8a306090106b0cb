package cli

import (
	"fmt"
	"path/filepath"

	"github.com/conversa-ai/conversa/internal/audit"
	"github.com/conversa-ai/conversa/internal/chatstore"
	"github.com/conversa-ai/conversa/internal/config"
	"github.com/conversa-ai/conversa/internal/governance"
	"github.com/conversa-ai/conversa/internal/knowledge"
	"github.com/conversa-ai/conversa/internal/llm"
	"github.com/conversa-ai/conversa/internal/mcp"
	"github.com/conversa-ai/conversa/internal/memory"
	"github.com/conversa-ai/conversa/internal/n8n"
	"github.com/conversa-ai/conversa/internal/orchestrator"
	"github.com/conversa-ai/conversa/internal/profile"
	"github.com/conversa-ai/conversa/internal/tools"
)

// engine bundles the wired orchestration stack for CLI commands.
type engine struct {
	cfg       *config.Config
	orch      *orchestrator.Orchestrator
	chats     *chatstore.Store
	profiles  *profile.Store
	memories  *memory.Store
	knowledge *knowledge.Store
	prompts   *governance.Store
	auditor   *audit.Publisher
}

// buildEngine loads configuration and wires every component.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	chats, err := chatstore.Open(filepath.Join(cfg.Paths.DataDir, "chats.db"))
	if err != nil {
		return nil, err
	}
	profiles, err := profile.Open(filepath.Join(cfg.Paths.DataDir, "profiles.db"))
	if err != nil {
		return nil, err
	}
	memories, err := memory.Open(filepath.Join(cfg.Paths.DataDir, "memories.db"))
	if err != nil {
		return nil, err
	}
	kb, err := knowledge.Open(filepath.Join(cfg.Paths.DataDir, "knowledge.db"))
	if err != nil {
		return nil, err
	}
	prompts, err := governance.Open(filepath.Join(cfg.Paths.DataDir, "governance.db"))
	if err != nil {
		return nil, err
	}

	executor := tools.NewExecutor()
	executor.RegisterLocal(tools.NewCalculatorTool())
	executor.RegisterLocal(tools.NewClockTool())
	for _, server := range cfg.MCP {
		executor.AddMCPServer(server.Name, mcp.NewClient(mcp.Config{
			URL:     server.URL,
			Headers: server.Headers,
		}))
	}
	if cfg.N8N.BaseURL != "" {
		executor.SetN8NClient(n8n.NewClient(cfg.N8N.BaseURL, cfg.N8N.APIKey, 0))
	}

	client := llm.NewOpenAIClient(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Model.Name)

	assembler := orchestrator.NewAssembler(orchestrator.AssemblerOptions{
		Users:         profiles,
		Chats:         chats,
		Memories:      memories,
		Knowledge:     kb,
		Prompts:       prompts,
		Catalog:       orchestrator.NewExecutorCatalog(executor),
		HistoryLimit:  cfg.Retrieval.HistoryLimit,
		MemoryTopK:    cfg.Retrieval.MemoryTopK,
		KnowledgeTopK: cfg.Retrieval.KnowledgeTopK,
	})

	auditor := audit.NewPublisher(audit.Config{
		Brokers: cfg.Audit.Brokers,
		Topic:   cfg.Audit.Topic,
	})

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Model = cfg.Model.Name
	orchCfg.MaxInputTokens = cfg.Model.MaxInputTokens
	orchCfg.MaxOutputTokens = cfg.Model.MaxOutputTokens
	orchCfg.Temperature = cfg.Model.Temperature
	if cfg.Orchestrator.MaxIterations > 0 {
		orchCfg.MaxIterations = cfg.Orchestrator.MaxIterations
	}
	if cfg.Orchestrator.MaxToolCalls > 0 {
		orchCfg.MaxToolCalls = cfg.Orchestrator.MaxToolCalls
	}
	if cfg.Orchestrator.ToolTimeout > 0 {
		orchCfg.ToolTimeout = cfg.Orchestrator.ToolTimeout
	}
	if cfg.Orchestrator.TotalTimeout > 0 {
		orchCfg.TotalTimeout = cfg.Orchestrator.TotalTimeout
	}

	orch := orchestrator.New(orchestrator.Options{
		Assembler: assembler,
		Client:    client,
		Runner:    executor,
		Chats:     chats,
		Config:    orchCfg,
		Auditor:   auditor,
	})

	return &engine{
		cfg:       cfg,
		orch:      orch,
		chats:     chats,
		profiles:  profiles,
		memories:  memories,
		knowledge: kb,
		prompts:   prompts,
		auditor:   auditor,
	}, nil
}

// Close releases every store the engine opened.
func (e *engine) Close() {
	e.auditor.Close()
	e.prompts.Close()
	e.knowledge.Close()
	e.memories.Close()
	e.profiles.Close()
	e.chats.Close()
}
