// Package ratelimit throttles calls to remote embedding, vector and
// generation APIs and backs off after HTTP 429 responses.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider identifies a remote API for rate limiting purposes.
type Provider string

// Remote providers with their own limits.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderPinecone  Provider = "pinecone"
	ProviderAnthropic Provider = "anthropic"
)

// DefaultBackoff applies when a 429 carries no usable Retry-After.
const DefaultBackoff = 60 * time.Second

// Config is a token bucket configuration.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Defaults are kept well under the published free-tier limits.
var Defaults = map[Provider]Config{
	ProviderOpenAI:    {RequestsPerSecond: 5, BurstSize: 10},
	ProviderGemini:    {RequestsPerSecond: 2, BurstSize: 5},
	ProviderPinecone:  {RequestsPerSecond: 10, BurstSize: 20},
	ProviderAnthropic: {RequestsPerSecond: 1, BurstSize: 3},
}

var fallback = Config{RequestsPerSecond: 5, BurstSize: 10}

// Limiter is a token bucket with a shared backoff deadline.
// A nil *Limiter never blocks.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	provider Provider
}

// New returns a limiter with the provider's default limits.
func New(provider Provider) *Limiter {
	cfg, ok := Defaults[provider]
	if !ok {
		cfg = fallback
	}
	l := NewWithConfig(cfg)
	l.provider = provider
	return l
}

// NewWithConfig returns a limiter with custom limits.
func NewWithConfig(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = fallback.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize)}
}

// Provider returns the provider this limiter was created for.
func (l *Limiter) Provider() Provider {
	if l == nil {
		return ""
	}
	return l.provider
}

// Wait blocks until a request may be sent, honouring any backoff first.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff pauses all callers for d, or DefaultBackoff when d <= 0.
// An earlier deadline never shortens a later one.
func (l *Limiter) Backoff(d time.Duration) {
	if l == nil {
		return
	}
	if d <= 0 {
		d = DefaultBackoff
	}
	until := time.Now().Add(d)

	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.retryAt) {
		l.retryAt = until
	}
}

// Observe inspects a response and backs off if it was throttled.
// It reports whether the response was a 429.
func (l *Limiter) Observe(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	l.Backoff(RetryAfter(resp.Header))
	return true
}

// Allow reports whether a request may be sent now without blocking.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP
// date. It returns 0 when the header is missing or unparseable.
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
