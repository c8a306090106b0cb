package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/conversa-ai/conversa/internal/fault"
)

// Stream is a pull-based, finite, single-consumer sequence of completion
// chunks. Recv returns io.EOF after the terminal chunk. Abandoning the
// stream early requires an explicit Close; partial content already observed
// by the caller stands.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	// usage arrives in a trailing chunk after the finish reason with some
	// backends; it is folded into the terminal chunk when seen first.
	pendingFinish string
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Recv returns the next chunk. After the terminal chunk it returns io.EOF.
func (s *Stream) Recv() (*Chunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			s.done = true
			s.body.Close()
			if s.pendingFinish != "" {
				return &Chunk{FinishReason: s.pendingFinish}, nil
			}
			return nil, io.EOF
		}

		var event openAIStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue // skip malformed events
		}

		chunk, ok := s.convertEvent(&event)
		if !ok {
			continue
		}
		if chunk.FinishReason != "" || chunk.Usage != nil {
			s.done = true
			s.body.Close()
		}
		return chunk, nil
	}

	s.done = true
	s.body.Close()
	if err := s.scanner.Err(); err != nil {
		return nil, fault.LLM(fmt.Errorf("read stream: %w", err))
	}
	return nil, io.EOF
}

// convertEvent maps one SSE event to a Chunk. Events that carry nothing the
// caller can act on are skipped.
func (s *Stream) convertEvent(event *openAIStreamEvent) (*Chunk, bool) {
	// Usage-only trailer: terminal chunk with the buffered finish reason.
	if len(event.Choices) == 0 {
		if event.Usage == nil {
			return nil, false
		}
		u := Usage{
			PromptTokens:     event.Usage.PromptTokens,
			CompletionTokens: event.Usage.CompletionTokens,
			TotalTokens:      event.Usage.TotalTokens,
		}
		finish := s.pendingFinish
		if finish == "" {
			finish = FinishStop
		}
		return &Chunk{FinishReason: finish, Usage: &u}, true
	}

	ch := event.Choices[0]
	chunk := &Chunk{
		Role:         ch.Delta.Role,
		ContentDelta: ch.Delta.Content,
	}
	for _, tc := range ch.Delta.ToolCalls {
		chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, ToolCallDelta{
			Index:          tc.Index,
			ID:             tc.ID,
			Name:           tc.Function.Name,
			ArgumentsDelta: tc.Function.Arguments,
		})
	}
	if ch.FinishReason != "" {
		// Hold the finish reason until usage arrives (or [DONE]) so the
		// terminal chunk can carry both.
		s.pendingFinish = ch.FinishReason
		if event.Usage != nil {
			u := Usage{
				PromptTokens:     event.Usage.PromptTokens,
				CompletionTokens: event.Usage.CompletionTokens,
				TotalTokens:      event.Usage.TotalTokens,
			}
			chunk.FinishReason = ch.FinishReason
			chunk.Usage = &u
			return chunk, true
		}
		if chunk.ContentDelta == "" && len(chunk.ToolCallDeltas) == 0 && chunk.Role == "" {
			return nil, false
		}
	}
	return chunk, true
}

// Close abandons the stream. Safe to call after exhaustion.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.body.Close()
}

// Streaming wire types.
type openAIStreamEvent struct {
	Choices []struct {
		Delta struct {
			Role      string `json:"role,omitempty"`
			Content   string `json:"content,omitempty"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}
