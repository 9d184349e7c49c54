// Package llm provides the Claude Haiku client used to write turn bulletins.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	model      = "claude-haiku-4-5-20251001"
)

// ErrRateLimited is returned once the per-minute call quota is spent.
var ErrRateLimited = errors.New("llm rate limit exceeded")

// Client calls the Anthropic Messages API with a per-minute call quota.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient returns nil for an empty key, which disables every call.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:     apiKey,
		url:        apiURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		maxPerMin:  20,
	}
}

// Enabled reports whether calls will reach the API.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Prompt is one single-turn request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// take reserves one call from the per-minute quota.
func (c *Client) take() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.now(); now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return false
	}
	c.callCount++
	return true
}

// Complete sends p to Haiku and returns the first text block.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	if !c.Enabled() {
		return "", errors.New("llm client not configured")
	}
	if !c.take() {
		return "", fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}

	out, err := c.send(ctx, messagesRequest{
		Model:     model,
		MaxTokens: p.MaxTokens,
		System:    p.System,
		Messages:  []message{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", errors.New("llm returned no content")
	}
	slog.Debug("haiku call",
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
	)
	return out.Content[0].Text, nil
}

func (c *Client) send(ctx context.Context, in messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode messages request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messages call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messages API returned %d: %s", resp.StatusCode, raw)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}
	return &out, nil
}
