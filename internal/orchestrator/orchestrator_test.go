package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/llm"
	"github.com/conversa-ai/conversa/internal/tools"
)

func testOrchestrator(client llm.Client, runner ToolRunner, chats ChatLog) *Orchestrator {
	assembler := NewAssembler(AssemblerOptions{Chats: chats})
	cfg := DefaultConfig()
	cfg.TotalTimeout = 0
	return New(Options{
		Assembler: assembler,
		Client:    client,
		Runner:    runner,
		Chats:     chats,
		Config:    cfg,
	})
}

func TestRunRejectsEmptyMessage(t *testing.T) {
	client := &scriptedClient{}
	orch := testOrchestrator(client, &mapRunner{}, &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}})

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := orch.Run(context.Background(), RunInput{
			Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: msg,
		})
		if !errors.Is(err, fault.ErrInvalidInput) {
			t.Errorf("message %q: err = %v, want ErrInvalidInput", msg, err)
		}
	}
	if len(client.requests) != 0 {
		t.Errorf("client invoked %d times for invalid input", len(client.requests))
	}
}

func TestRunChatNotFoundShortCircuits(t *testing.T) {
	client := &scriptedClient{}
	chats := &fakeChatLog{chatErr: fault.NotFound("chat", "c-gone")}
	orch := testOrchestrator(client, &mapRunner{}, chats)

	_, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c-gone", UserMessage: "hi",
	})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("client invoked despite hard assembly failure")
	}
}

func TestRunPersistsAssistantMessage(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		textResponse("sure thing", llm.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28}),
	}}
	chats := &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}}
	orch := testOrchestrator(client, &mapRunner{}, chats)

	res, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: "help",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Content != "sure thing" {
		t.Errorf("content = %q", res.Content)
	}
	if res.MessageID != "msg-1" {
		t.Errorf("message id = %q, want msg-1", res.MessageID)
	}
	if chats.addedRole != llm.RoleAssistant {
		t.Errorf("persisted role = %q, want assistant", chats.addedRole)
	}
	if chats.addedActorType != ActorTypeAI {
		t.Errorf("persisted actor type = %q, want %q", chats.addedActorType, ActorTypeAI)
	}
	if chats.addedActor != SystemActor {
		t.Errorf("persisting actor = %+v, want system actor", chats.addedActor)
	}
}

func TestRunPersistFailurePropagates(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		textResponse("ok", llm.Usage{TotalTokens: 5}),
	}}
	chats := &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}, addErr: errors.New("disk full")}
	orch := testOrchestrator(client, &mapRunner{}, chats)

	_, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: "help",
	})
	if err == nil || !errors.Is(err, chats.addErr) {
		t.Fatalf("err = %v, want wrapped disk full", err)
	}
}

func TestRunOverridesApply(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		textResponse("ok", llm.Usage{}),
	}}
	chats := &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}}
	orch := testOrchestrator(client, &mapRunner{}, chats)

	_, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: "help",
		Overrides: &Overrides{Model: "gpt-4o", MaxOutputTokens: 256, Temperature: 0.1},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	req := client.requests[0]
	if req.Model != "gpt-4o" {
		t.Errorf("model = %q, want override", req.Model)
	}
	if req.MaxTokens != 256 {
		t.Errorf("max tokens = %d, want 256", req.MaxTokens)
	}
	if req.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", req.Temperature)
	}
}

// TestRunWithCalculatorEndToEnd drives a full turn through the real tool
// executor: the model asks for the calculator, the executor evaluates the
// expression, and the follow-up completion produces the final answer.
func TestRunWithCalculatorEndToEnd(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResponse(llm.Usage{TotalTokens: 100},
			llm.ToolCall{ID: "call_calc", Name: "calculator", Arguments: `{"expr":"2+2"}`}),
		textResponse("The answer is 4.", llm.Usage{TotalTokens: 60}),
	}}

	executor := tools.NewExecutor()
	executor.RegisterLocal(tools.NewCalculatorTool())

	chats := &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}}
	assembler := NewAssembler(AssemblerOptions{
		Chats:   chats,
		Catalog: NewExecutorCatalog(executor),
	})
	cfg := DefaultConfig()
	cfg.TotalTimeout = 0
	orch := New(Options{
		Assembler: assembler,
		Client:    client,
		Runner:    executor,
		Chats:     chats,
		Config:    cfg,
	})

	res, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: "What is 2+2?",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Content != "The answer is 4." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("tool records = %d, want 1", len(res.ToolCalls))
	}
	rec := res.ToolCalls[0]
	if rec.ToolName != "calculator" || rec.Status != "success" || rec.Output != `{"result":4}` {
		t.Errorf("tool record = %+v", rec)
	}

	// The first request advertised the calculator schema.
	if len(client.requests[0].Tools) != 1 || client.requests[0].Tools[0].Name != "calculator" {
		t.Errorf("advertised tools = %+v", client.requests[0].Tools)
	}
	// The executor's real output reached the second request.
	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.Content != `{"result":4}` || last.ToolCallID != "call_calc" {
		t.Errorf("tool message = %+v", last)
	}
}

// journalChatLog keeps appended messages and serves them back as history,
// mirroring the real store's behavior across turns.
type journalChatLog struct {
	chat Chat
	msgs []ChatMessage
}

func (j *journalChatLog) GetChat(ctx context.Context, actor Actor, chatID string) (Chat, error) {
	return j.chat, nil
}

func (j *journalChatLog) Messages(ctx context.Context, actor Actor, chatID string, limit int) ([]ChatMessage, error) {
	out := make([]ChatMessage, len(j.msgs))
	copy(out, j.msgs)
	return out, nil
}

func (j *journalChatLog) AddMessage(ctx context.Context, actor Actor, chatID string, msg NewMessage) (string, error) {
	j.msgs = append(j.msgs, ChatMessage{Role: msg.Role, Content: msg.Content})
	return "msg-" + msg.Role, nil
}

func countUserMessages(msgs []llm.Message, content string) int {
	n := 0
	for _, m := range msgs {
		if m.Role == llm.RoleUser && m.Content == content {
			n++
		}
	}
	return n
}

func TestRunUserTurnAppearsOncePerPrompt(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		textResponse("first reply", llm.Usage{}),
		textResponse("second reply", llm.Usage{}),
	}}
	chats := &journalChatLog{chat: Chat{ID: "c1", UserID: "u1"}}
	orch := testOrchestrator(client, &mapRunner{}, chats)

	for i, msg := range []string{"first question", "second question"} {
		if _, err := orch.Run(context.Background(), RunInput{
			Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: msg,
		}); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		sent := client.requests[i].Messages
		if got := countUserMessages(sent, msg); got != 1 {
			t.Fatalf("run %d: current user turn appears %d times in the prompt", i, got)
		}
		if last := sent[len(sent)-1]; last.Role != llm.RoleUser || last.Content != msg {
			t.Errorf("run %d: last prompt message = %+v", i, last)
		}
	}

	// The second prompt carries the first turn exactly once, from history.
	if got := countUserMessages(client.requests[1].Messages, "first question"); got != 1 {
		t.Errorf("prior user turn appears %d times in the second prompt", got)
	}

	// The journal holds the full alternating conversation.
	want := []string{"first question", "first reply", "second question", "second reply"}
	if len(chats.msgs) != len(want) {
		t.Fatalf("journal = %d messages, want %d", len(chats.msgs), len(want))
	}
	for i, content := range want {
		if chats.msgs[i].Content != content {
			t.Errorf("journal[%d] = %q, want %q", i, chats.msgs[i].Content, content)
		}
	}
}

// stallClient blocks until the request context expires.
type stallClient struct{}

func (stallClient) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallClient) Stream(ctx context.Context, req *llm.ChatRequest) (*llm.Stream, error) {
	return nil, errors.New("stall client does not stream")
}

func TestRunTotalTimeout(t *testing.T) {
	chats := &fakeChatLog{chat: Chat{ID: "c1", UserID: "u1"}}
	assembler := NewAssembler(AssemblerOptions{Chats: chats})
	cfg := DefaultConfig()
	cfg.TotalTimeout = 20 * time.Millisecond
	orch := New(Options{
		Assembler: assembler,
		Client:    stallClient{},
		Runner:    &mapRunner{},
		Chats:     chats,
		Config:    cfg,
	})

	_, err := orch.Run(context.Background(), RunInput{
		Actor: userActor(), UserID: "u1", ChatID: "c1", UserMessage: "hi",
	})
	if !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestMergedOverrides(t *testing.T) {
	base := DefaultConfig()
	got := base.merged(nil)
	if got != base {
		t.Errorf("nil overrides changed config")
	}
	got = base.merged(&Overrides{MaxIterations: 2})
	if got.MaxIterations != 2 {
		t.Errorf("max iterations = %d, want 2", got.MaxIterations)
	}
	if got.Model != base.Model || got.MaxToolCalls != base.MaxToolCalls {
		t.Errorf("unset override fields changed: %+v", got)
	}
}
