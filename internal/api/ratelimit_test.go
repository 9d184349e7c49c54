package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("other IPs have their own bucket")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("window should reset")
	}

	now = now.Add(3 * time.Minute)
	rl.cleanup()
	if _, ok := rl.buckets["b"]; ok {
		t.Fatalf("stale bucket not cleaned up")
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	rl.Stop()
	rl.Stop()
	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatalf("cleanup loop still running after Stop")
	}

	var none *RateLimiter
	none.Stop()
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatalf("disabled limiter blocked request %d", i)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"remote ipv4", "10.0.0.1:5555", "", "10.0.0.1"},
		{"remote ipv6", "[::1]:5555", "", "::1"},
		{"forwarded", "10.0.0.1:5555", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"no port", "10.0.0.2", "", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
