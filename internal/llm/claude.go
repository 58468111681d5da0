// Package llm talks to the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.anthropic.com"

// Request is one completion call. Op labels the call in Stats.
type Request struct {
	Op          string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is what the interpreter and the report writer need.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client calls the Messages API and records call latency.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	stats      *Stats
}

func NewClient(apiKey, model string, stats *Stats) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		stats: stats,
	}
}

// WithBaseURL points the client at another host, for tests and proxies.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete returns the text of the first content block.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	temp := req.Temperature
	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: &temp,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if c.stats != nil {
		c.stats.Record(req.Op, time.Since(start).Milliseconds())
	}
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	return strings.TrimSpace(apiResp.Content[0].Text), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:[a-zA-Z]*[ \t]*\n)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a Markdown code fence wrapped around a model reply.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
