package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterPool_GetOrCreate(t *testing.T) {
	p := NewRateLimiterPool(nil, 0)

	a := p.GetOrCreate("m", 60)
	if got := a.Burst(); got != 12 {
		t.Errorf("Burst() = %d, want 12", got)
	}
	if got := float64(a.Limit()); got != 1 {
		t.Errorf("Limit() = %v, want 1", got)
	}

	// a second call with another rate keeps the first limiter
	if b := p.GetOrCreate("m", 600); b != a {
		t.Error("GetOrCreate() returned a new limiter for an existing model")
	}
	if got := p.GetOrCreate("small", 10).Burst(); got != 5 {
		t.Errorf("Burst() for 10 rpm = %d, want 5", got)
	}
}

func TestRateLimiterPool_ProviderLimiter(t *testing.T) {
	tests := []struct {
		name      string
		rates     map[string]int
		burstPct  int
		provider  string
		wantNil   bool
		wantBurst int
	}{
		{"not configured", map[string]int{"openai": 100}, 15, "gemini", true, 0},
		{"zero rate", map[string]int{"openai": 0}, 15, "openai", true, 0},
		{"configured", map[string]int{"openai": 100}, 15, "openai", false, 15},
		{"burst floor", map[string]int{"openai": 2}, 10, "openai", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRateLimiterPool(tt.rates, tt.burstPct)
			l := p.providerLimiter(tt.provider)
			if (l == nil) != tt.wantNil {
				t.Fatalf("providerLimiter() = %v, wantNil %v", l, tt.wantNil)
			}
			if l != nil && l.Burst() != tt.wantBurst {
				t.Errorf("Burst() = %d, want %d", l.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestRateLimiterPool_WaitHonoursContext(t *testing.T) {
	p := NewRateLimiterPool(map[string]int{"slow": 1}, 1)

	// first request uses the single burst token
	if err := p.Wait(context.Background(), "m", 6000, "slow"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx, "m", 6000, "slow")
	if err == nil {
		t.Fatal("Wait() error = nil, want the provider limit to block past the deadline")
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want deadline related error", err)
	}
}
