package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/conversa-ai/conversa/internal/fault"
)

// OpenAIClient implements Client against an OpenAI-compatible
// chat-completions API. It works with OpenAI, OpenRouter, vLLM and other
// compatible endpoints.
type OpenAIClient struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(apiKey, apiBase, defaultModel string) *OpenAIClient {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// DefaultModel returns the configured default model.
func (c *OpenAIClient) DefaultModel() string {
	return c.defaultModel
}

// Complete sends a completion request to the backend. Backend failures are
// returned wrapped in fault.ErrLLM and are never retried here.
func (c *OpenAIClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.LLM(fmt.Errorf("read response: %w", err))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fault.LLM(fmt.Errorf("parse response: %w", err))
	}

	return normalizeResponse(&apiResp), nil
}

// Stream sends a completion request with streaming enabled and returns the
// chunk sequence. The sequence is lazy, finite and consumed exactly once.
func (c *OpenAIClient) Stream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body), nil
}

func (c *OpenAIClient) send(ctx context.Context, req *ChatRequest, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	body := map[string]any{
		"model":    model,
		"messages": convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
		choice := req.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		body["tool_choice"] = choice
	}
	if stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fault.LLM(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fault.LLM(fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fault.LLM(fmt.Errorf("execute request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fault.LLM(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	return resp, nil
}

// convertMessages converts messages to the OpenAI API wire format.
func convertMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, len(messages))
	for i, msg := range messages {
		m := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			toolCalls := make([]map[string]any, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				toolCalls[j] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				}
			}
			m["tool_calls"] = toolCalls
		}
		result[i] = m
	}
	return result
}

// convertTools translates tool schemas 1:1 into the backend's
// function-calling shape.
func convertTools(tools []ToolDefinition) []map[string]any {
	result := make([]map[string]any, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		}
	}
	return result
}

// normalizeResponse converts the wire response to a ChatResponse. Absent
// fields become zero values so callers never branch on optional-vs-absent.
func normalizeResponse(resp *openAIResponse) *ChatResponse {
	out := &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, ch := range resp.Choices {
		choice := Choice{
			Message: Message{
				Role:    ch.Message.Role,
				Content: ch.Message.Content,
			},
			FinishReason: ch.FinishReason,
		}
		if choice.Message.Role == "" {
			choice.Message.Role = RoleAssistant
		}
		if choice.FinishReason == "" {
			choice.FinishReason = FinishStop
		}
		for _, tc := range ch.Message.ToolCalls {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, choice)
	}
	return out
}

// OpenAI API wire types.
type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}
