package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conversa-ai/conversa/internal/audit"
	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/llm"
	"github.com/conversa-ai/conversa/internal/tools"
)

// Orchestrator is the top-level façade over context assembly, prompt
// building, the tool loop and response persistence.
type Orchestrator struct {
	assembler *Assembler
	client    llm.Client
	runner    ToolRunner
	chats     ChatLog
	cfg       Config
	auditor   *audit.Publisher
}

// Options wires an Orchestrator.
type Options struct {
	Assembler *Assembler
	Client    llm.Client
	Runner    ToolRunner
	Chats     ChatLog
	Config    Config
	// Auditor publishes orchestration trace events. Nil disables auditing.
	Auditor *audit.Publisher
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		assembler: opts.Assembler,
		client:    opts.Client,
		runner:    opts.Runner,
		chats:     opts.Chats,
		cfg:       cfg,
		auditor:   opts.Auditor,
	}
}

// RunInput is the request for one orchestration turn.
type RunInput struct {
	Actor       Actor
	UserID      string
	ChatID      string
	UserMessage string
	Overrides   *Overrides
}

// Run executes one full orchestration turn: assemble context, build the
// prompt, drive the tool loop, persist the user turn and the assistant
// reply. Hard
// context-assembly failures and LLM backend errors are returned as-is; a
// total-timeout expiry surfaces as fault.ErrTimeout.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*Result, error) {
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, fmt.Errorf("user message must not be empty: %w", fault.ErrInvalidInput)
	}

	cfg := o.cfg.merged(in.Overrides)
	requestID := uuid.NewString()

	if cfg.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TotalTimeout)
		defer cancel()
	}

	start := time.Now()

	aictx, err := o.assembler.Assemble(ctx, in.Actor, in.ChatID, in.UserID, in.UserMessage)
	if err != nil {
		return nil, o.mapTimeout(ctx, err)
	}

	// The user turn is recorded only after assembly: the history snapshot
	// must not contain the in-flight message, which the prompt builder
	// appends itself as the final user message.
	if _, err := o.chats.AddMessage(ctx, in.Actor, in.ChatID, NewMessage{
		Role:    llm.RoleUser,
		Content: in.UserMessage,
	}); err != nil {
		return nil, o.mapTimeout(ctx, fmt.Errorf("persist user message: %w", err))
	}

	prompt := BuildPrompt(aictx, in.UserMessage)
	if cfg.MaxInputTokens > 0 && prompt.EstimatedTokens > cfg.MaxInputTokens {
		slog.Warn("Prompt estimate exceeds input budget",
			"request_id", requestID,
			"estimated_tokens", prompt.EstimatedTokens,
			"max_input_tokens", cfg.MaxInputTokens,
		)
	}

	loop := &toolLoop{
		client: o.client,
		runner: o.runner,
		cfg:    cfg,
		cc: tools.CallContext{
			UserID:    aictx.UserID,
			ChatID:    in.ChatID,
			RequestID: requestID,
			Timeout:   cfg.ToolTimeout,
		},
	}
	loopRes, err := loop.run(ctx, prompt.Messages, prompt.Tools)
	if err != nil {
		return nil, o.mapTimeout(ctx, err)
	}

	model := loopRes.Model
	if model == "" {
		model = cfg.Model
	}

	result := &Result{
		Content:       loopRes.Content,
		Model:         model,
		Usage:         loopRes.Usage,
		Iterations:    loopRes.Iterations,
		ToolCalls:     loopRes.ToolCalls,
		StoppedReason: loopRes.StoppedReason,
	}

	// Message append is a system-level side effect of a user-initiated
	// action, so it runs under the elevated system actor even when the
	// requesting actor holds no write permission here.
	recordsJSON, _ := json.Marshal(loopRes.ToolCalls)
	msgID, err := o.chats.AddMessage(ctx, SystemActor, in.ChatID, NewMessage{
		Role:        llm.RoleAssistant,
		Content:     loopRes.Content,
		ActorType:   ActorTypeAI,
		Model:       model,
		TotalTokens: loopRes.Usage.TotalTokens,
		ToolCalls:   string(recordsJSON),
	})
	if err != nil {
		return nil, o.mapTimeout(ctx, fmt.Errorf("persist assistant message: %w", err))
	}
	result.MessageID = msgID

	o.publishAudit(requestID, in, result, time.Since(start))

	slog.Info("Orchestration completed",
		"request_id", requestID,
		"chat_id", in.ChatID,
		"iterations", result.Iterations,
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.Usage.TotalTokens,
		"stopped_reason", result.StoppedReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// mapTimeout converts a context-deadline failure of the whole run into the
// dedicated timeout error; all other errors pass through unchanged.
func (o *Orchestrator) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", fault.ErrTimeout, err)
	}
	return err
}

func (o *Orchestrator) publishAudit(requestID string, in RunInput, result *Result, elapsed time.Duration) {
	if o.auditor == nil {
		return
	}
	toolNames := make([]string, len(result.ToolCalls))
	for i, tc := range result.ToolCalls {
		toolNames[i] = tc.ToolName
	}
	o.auditor.Publish(audit.Event{
		Type:          audit.EventOrchestration,
		RequestID:     requestID,
		ActorID:       in.Actor.ID,
		ChatID:        in.ChatID,
		Model:         result.Model,
		Iterations:    result.Iterations,
		ToolNames:     toolNames,
		TotalTokens:   result.Usage.TotalTokens,
		StoppedReason: result.StoppedReason,
		DurationMS:    elapsed.Milliseconds(),
	})
}
