// Package mcp implements a minimal Model Context Protocol client speaking
// JSON-RPC over streamable HTTP.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Client talks to one remote MCP server. It is safe for concurrent use.
type Client struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
	nextID     atomic.Int64

	mu        sync.RWMutex
	sessionID string // Mcp-Session header for session affinity
}

// Config configures an MCP client.
type Config struct {
	// URL is the MCP server endpoint.
	URL string
	// Headers are additional HTTP headers sent with every request
	// (e.g. Authorization).
	Headers map[string]string
	// Timeout bounds each HTTP round-trip. Zero means 30s.
	Timeout time.Duration
}

// NewClient creates a client for the given server config.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// callToolResult is the MCP tools/call result shape.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

// CallTool invokes a named tool on the remote server and returns the
// concatenated text content. A tool-level error is returned as a Go error
// carrying the server's message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, err := c.send(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var ctr callToolResult
	if err := json.Unmarshal(result, &ctr); err != nil {
		return "", fmt.Errorf("unmarshal tool result: %w", err)
	}

	var sb bytes.Buffer
	for _, block := range ctr.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if ctr.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, sb.String())
	}
	return sb.String(), nil
}

func (c *Client) send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	c.mu.RLock()
	if c.sessionID != "" {
		httpReq.Header.Set("Mcp-Session", c.sessionID)
	}
	c.mu.RUnlock()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s: %w", c.url, err)
	}
	defer httpResp.Body.Close()

	if sid := httpResp.Header.Get("Mcp-Session"); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	if httpResp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("MCP server returned %d: %s", httpResp.StatusCode, string(errBody))
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
