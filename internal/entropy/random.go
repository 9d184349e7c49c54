// Package entropy provides the random sources behind economic shocks.
// Each session gets its own seeded generator; seeds come from crypto/rand
// or, when an API key is configured, from random.org.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// NewSeeded returns a deterministic generator. It is not safe for concurrent
// use; callers serialize access per session.
func NewSeeded(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Fixed replays a fixed sequence of values, cycling when exhausted.
type Fixed struct {
	values []float64
	next   int
}

// NewFixed returns a Fixed source. With no values it always yields 0.
func NewFixed(values ...float64) *Fixed {
	return &Fixed{values: values}
}

// Float64 returns the next value in the sequence.
func (f *Fixed) Float64() float64 {
	if len(f.values) == 0 {
		return 0
	}
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

// NoShock always yields 0, which selects the first outcome with a positive
// weight ("none" under the default weights).
func NoShock() *Fixed {
	return NewFixed(0)
}

// Client draws seeds from random.org with a local pool.
type Client struct {
	apiKey string
	client *http.Client
	url    string

	mu   sync.Mutex
	pool []int64
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		url:    "https://api.random.org/json-rpc/4/invoke",
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a pooled random.org seed, refilling when low. Falls back to
// crypto/rand when the client is nil or the API fails.
func (c *Client) Seed() (int64, error) {
	if !c.Enabled() {
		return NewSeed()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < 4 {
		c.refill()
	}
	if len(c.pool) == 0 {
		return NewSeed()
	}

	v := c.pool[0]
	c.pool = c.pool[1:]
	return v, nil
}

func (c *Client) refill() {
	// Two integers per seed; random.org caps each at 1e9.
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      32,
			"min":    0,
			"max":    1_000_000_000,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}
	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	data := result.Result.Random.Data
	for i := 0; i+1 < len(data); i += 2 {
		c.pool = append(c.pool, data[i]<<32|data[i+1])
	}
	slog.Debug("random.org pool refilled", "count", len(data)/2)
}
