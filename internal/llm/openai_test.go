package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conversa-ai/conversa/internal/fault"
)

func TestCompleteRequestShape(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl-1","model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, "gpt-4o-mini")
	resp, err := client.Complete(context.Background(), &ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		Tools:       []ToolDefinition{{Name: "calculator", Description: "math"}},
		MaxTokens:   128,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want default model", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(128) {
		t.Errorf("max_tokens = %v", gotBody["max_tokens"])
	}
	if gotBody["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", gotBody["tool_choice"])
	}
	tools, _ := gotBody["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", gotBody["tools"])
	}
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	// Nil parameters are replaced with an empty object schema on the wire.
	if fn["parameters"] == nil {
		t.Error("nil tool parameters sent as null")
	}

	if resp.First().Message.Content != "hi" {
		t.Errorf("content = %q", resp.First().Message.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestCompleteToolCallResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"model":"m","choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"expr\":\"2+2\"}"}}]},"finish_reason":"tool_calls"}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL, "m")
	resp, err := client.Complete(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	choice := resp.First()
	if choice.FinishReason != FinishToolCalls {
		t.Errorf("finish reason = %q", choice.FinishReason)
	}
	if len(choice.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", choice.Message.ToolCalls)
	}
	tc := choice.Message.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "calculator" || tc.Arguments != `{"expr":"2+2"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestCompleteNormalizesAbsentFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"model":"m","choices":[{"message":{}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL, "m")
	resp, err := client.Complete(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	choice := resp.First()
	if choice.Message.Role != RoleAssistant {
		t.Errorf("role = %q, want assistant default", choice.Message.Role)
	}
	if choice.FinishReason != FinishStop {
		t.Errorf("finish reason = %q, want stop default", choice.FinishReason)
	}
	if resp.Usage != (Usage{}) {
		t.Errorf("usage = %+v, want zero", resp.Usage)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL, "m")
	_, err := client.Complete(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if !errors.Is(err, fault.ErrLLM) {
		t.Fatalf("err = %v, want ErrLLM", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestResponseFirstOnEmptyChoices(t *testing.T) {
	resp := &ChatResponse{}
	choice := resp.First()
	if choice.FinishReason != FinishStop {
		t.Errorf("finish reason = %q, want stop", choice.FinishReason)
	}
	if choice.Message.Content != "" {
		t.Errorf("content = %q, want empty", choice.Message.Content)
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	if u != (Usage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}) {
		t.Errorf("usage = %+v", u)
	}
}
