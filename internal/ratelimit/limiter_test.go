package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock returns a limiter whose clock is advanced by the returned func.
func fakeClock(l *Limiter) func(time.Duration) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
	if !l.Allow("key2") {
		t.Error("key2 should be allowed (independent bucket)")
	}
}

func TestAllow_Refill(t *testing.T) {
	l := NewLimiter(10.0, 2)
	advance := fakeClock(l)

	l.Allow("key1")
	l.Allow("key1")
	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	advance(200 * time.Millisecond)
	if !l.Allow("key1") {
		t.Error("expected allow after token refill")
	}
}

func TestAllow_RefillCappedAtBurst(t *testing.T) {
	l := NewLimiter(100.0, 3)
	advance := fakeClock(l)
	for i := 0; i < 3; i++ {
		l.Allow("key1")
	}

	advance(10 * time.Second)
	if got := l.Tokens("key1"); got != 3 {
		t.Errorf("Tokens() = %v, want 3", got)
	}
}

func TestReserve_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		rate  float64
		burst int
		used  int
		want  time.Duration
	}{
		{"one per second", 1, 1, 1, time.Second},
		{"four per minute", 4.0 / 60.0, 1, 1, 15 * time.Second},
		{"ten per second", 10, 2, 2, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.rate, tt.burst)
			fakeClock(l)
			for i := 0; i < tt.used; i++ {
				if ok, _ := l.Reserve("k"); !ok {
					t.Fatalf("reserve %d rejected", i)
				}
			}
			ok, wait := l.Reserve("k")
			if ok {
				t.Fatal("expected rejection")
			}
			if d := wait - tt.want; d < -time.Millisecond || d > time.Millisecond {
				t.Errorf("retry after = %v, want %v", wait, tt.want)
			}
		})
	}
}

func TestReserve_ZeroRate(t *testing.T) {
	l := NewLimiter(0, 1)
	l.Allow("k")
	ok, wait := l.Reserve("k")
	if ok {
		t.Error("should be rejected with zero rate")
	}
	if wait < time.Hour {
		t.Errorf("retry after = %v, want effectively forever", wait)
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(0, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("concurrent-key") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d requests, want exactly the burst of 100", allowed)
	}
}

func TestDefaultRules(t *testing.T) {
	limiters := NewToolLimiters(DefaultRules())

	tests := []struct {
		tool  string
		burst int
	}{
		{ToolRunConfiguration, 10},
		{ToolRunExperiment, 1},
		{ToolListRuns, 10},
		{ToolGetRun, 10},
		{ToolValidateConfig, 20},
		{ToolBackup, 1},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			limiter, ok := limiters[tt.tool]
			if !ok {
				t.Fatalf("missing rate limiter for tool: %s", tt.tool)
			}
			if limiter.burst != tt.burst {
				t.Errorf("burst = %d, want %d", limiter.burst, tt.burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters(DefaultRules())

	if err := CheckLimit(limiters, ToolListRuns); err != nil {
		t.Errorf("unexpected error for %s: %v", ToolListRuns, err)
	}
	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}

	if err := CheckLimit(limiters, ToolRunExperiment); err != nil {
		t.Fatalf("first experiment should be allowed: %v", err)
	}
	err := CheckLimit(limiters, ToolRunExperiment)
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %v", err)
	}
	if exceeded.Tool != ToolRunExperiment {
		t.Errorf("Tool = %q", exceeded.Tool)
	}
	if exceeded.RetryAfter <= 0 || exceeded.RetryAfter > 15*time.Second {
		t.Errorf("RetryAfter = %v, want within (0, 15s]", exceeded.RetryAfter)
	}
}
