package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conversa-ai/conversa/internal/llm"
	"github.com/conversa-ai/conversa/internal/tools"
)

// ToolRunner dispatches one tool call and never fails structurally; every
// outcome is an ExecutionResult.
type ToolRunner interface {
	Execute(ctx context.Context, name string, input map[string]any, cc tools.CallContext) tools.ExecutionResult
}

// loopResult is the tool loop's outcome.
type loopResult struct {
	Content       string
	Model         string
	Iterations    int
	Usage         llm.Usage
	ToolCalls     []ToolCallRecord
	StoppedReason string
}

// toolLoop drives the completion/tool-execution state machine under the
// configured bounds. LLM client errors propagate; tool failures do not.
type toolLoop struct {
	client llm.Client
	runner ToolRunner
	cfg    Config
	cc     tools.CallContext
}

// run executes the loop until a natural stop or a bound is reached.
//
// Bound policy: maxIterations counts completion round-trips; maxToolCalls
// counts cumulative tool invocations. A batch already requested by the
// model is always executed in full, but no new completion is requested once
// the cumulative call count has reached the limit.
func (l *toolLoop) run(ctx context.Context, messages []llm.Message, toolDefs []llm.ToolDefinition) (*loopResult, error) {
	result := &loopResult{StoppedReason: StopCompleted}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		llmStart := time.Now()
		resp, err := l.client.Complete(ctx, &llm.ChatRequest{
			Model:       l.cfg.Model,
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   l.cfg.MaxOutputTokens,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		result.Iterations++
		result.Usage.Add(resp.Usage)
		if result.Model == "" {
			result.Model = resp.Model
		}

		choice := resp.First()
		result.Content = choice.Message.Content

		slog.Debug("Completion received",
			"iteration", result.Iterations,
			"finish_reason", choice.FinishReason,
			"tool_calls", len(choice.Message.ToolCalls),
			"total_tokens", resp.Usage.TotalTokens,
			"duration_ms", time.Since(llmStart).Milliseconds(),
		)

		if choice.FinishReason != llm.FinishToolCalls || len(choice.Message.ToolCalls) == 0 {
			return result, nil
		}

		messages = append(messages, choice.Message)

		// Execute the whole batch: a mid-turn batch is never truncated,
		// even when it crosses the cumulative tool-call limit.
		records, toolMessages := l.executeBatch(ctx, choice.Message.ToolCalls)
		result.ToolCalls = append(result.ToolCalls, records...)
		messages = append(messages, toolMessages...)

		if result.Iterations >= l.cfg.MaxIterations {
			result.StoppedReason = StopMaxIterations
			return result, nil
		}
		if l.cfg.MaxToolCalls > 0 && len(result.ToolCalls) >= l.cfg.MaxToolCalls {
			result.StoppedReason = StopMaxToolCalls
			return result, nil
		}
	}
}

// executeBatch dispatches every call of one assistant turn concurrently and
// reassembles records and tool messages in request order, so tool-call-id
// correlation in the next request is exact regardless of completion order.
func (l *toolLoop) executeBatch(ctx context.Context, calls []llm.ToolCall) ([]ToolCallRecord, []llm.Message) {
	records := make([]ToolCallRecord, len(calls))
	messages := make([]llm.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			records[i], messages[i] = l.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return records, messages
}

func (l *toolLoop) executeOne(ctx context.Context, call llm.ToolCall) (ToolCallRecord, llm.Message) {
	input := parseArguments(call.Arguments)

	res := l.runner.Execute(ctx, call.Name, input, l.cc)

	record := ToolCallRecord{
		ToolName: call.Name,
		Input:    input,
		Duration: res.Duration,
	}
	content := res.Output
	if res.Success {
		record.Status = "success"
		record.Output = res.Output
	} else {
		record.Status = "failure"
		record.Error = res.Error
		// The failure message is what the model sees, giving it a chance
		// to recover or apologize.
		content = fmt.Sprintf("Error: %s", res.Error)
	}

	return record, llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}

// parseArguments decodes the raw JSON argument payload. Undecodable
// payloads are preserved under a raw key rather than dropped.
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}
