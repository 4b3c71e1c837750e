// Package ratelimit provides per-key token bucket rate limiting for the
// acpsim MCP tools.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve consumes a token for key if one is available. Otherwise it returns
// false and how long until the next token is due.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key, l.nowFunc())
	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, time.Duration(math.MaxInt64)
	}
	wait := (1.0 - b.tokens) / l.rate
	return false, time.Duration(math.Ceil(wait * float64(time.Second)))
}

// Tokens returns the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key, l.nowFunc()).tokens
}

// refill returns key's bucket topped up for the time elapsed since its last
// check. Callers hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Rule is the limit for one tool.
type Rule struct {
	PerMinute float64
	Burst     int
}

// Tool names rate-limited by default.
const (
	ToolRunConfiguration = "acpsim_run_configuration"
	ToolRunExperiment    = "acpsim_run_experiment"
	ToolListRuns         = "acpsim_list_runs"
	ToolGetRun           = "acpsim_get_run"
	ToolValidateConfig   = "acpsim_validate_config"
	ToolBackup           = "acpsim_backup"
)

// DefaultRules returns the default per-tool limits. Experiments are the
// expensive call and get the tightest budget.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ToolRunConfiguration: {PerMinute: 60, Burst: 10},
		ToolRunExperiment:    {PerMinute: 4, Burst: 1},
		ToolListRuns:         {PerMinute: 60, Burst: 10},
		ToolGetRun:           {PerMinute: 60, Burst: 10},
		ToolValidateConfig:   {PerMinute: 120, Burst: 20},
		ToolBackup:           {PerMinute: 2, Burst: 1},
	}
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates one limiter per rule.
func NewToolLimiters(rules map[string]Rule) ToolLimiters {
	limiters := make(ToolLimiters, len(rules))
	for tool, rule := range rules {
		limiters[tool] = NewLimiter(rule.PerMinute/60.0, rule.Burst)
	}
	return limiters
}

// ExceededError is returned when a tool has used up its budget.
type ExceededError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an *ExceededError if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if ok, wait := limiter.Reserve(toolName); !ok {
		return &ExceededError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
