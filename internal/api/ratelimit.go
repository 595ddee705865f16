package api

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPool manages per-model and per-provider outbound rate limiters
type RateLimiterPool struct {
	limiters         map[string]*rate.Limiter
	rates            map[string]int // Track original rates for consistency check
	providerLimiters map[string]*rate.Limiter
	providerRates    map[string]int
	providerBurstPct int
	mu               sync.Mutex
}

// NewRateLimiterPool creates a new rate limiter pool.
// providerRates maps provider names (see config.GetProviderName) to requests per minute.
func NewRateLimiterPool(providerRates map[string]int, burstPercent int) *RateLimiterPool {
	if burstPercent <= 0 {
		burstPercent = 15
	}
	return &RateLimiterPool{
		limiters:         make(map[string]*rate.Limiter),
		rates:            make(map[string]int),
		providerLimiters: make(map[string]*rate.Limiter),
		providerRates:    providerRates,
		providerBurstPct: burstPercent,
	}
}

// GetOrCreate returns an existing rate limiter or creates a new one.
// If a limiter exists with a different rate, it logs a warning and keeps the existing one.
func (p *RateLimiterPool) GetOrCreate(modelID string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, exists := p.limiters[modelID]; exists {
		if existingRate, ok := p.rates[modelID]; ok && existingRate != requestsPerMinute {
			slog.Warn("Rate limiter already exists with different rate, using existing rate",
				"model_id", modelID,
				"existing_rpm", existingRate,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	// Convert requests per minute to requests per second
	rps := float64(requestsPerMinute) / 60.0
	burst := max(5, requestsPerMinute/5) // 20% burst capacity
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[modelID] = limiter
	p.rates[modelID] = requestsPerMinute

	slog.Debug("Created rate limiter",
		"model_id", modelID,
		"rpm", requestsPerMinute,
		"burst", burst)

	return limiter
}

// providerLimiter returns the shared limiter for a provider, or nil when none is configured
func (p *RateLimiterPool) providerLimiter(provider string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	rpm, ok := p.providerRates[provider]
	if !ok || rpm <= 0 {
		return nil
	}
	if limiter, exists := p.providerLimiters[provider]; exists {
		return limiter
	}

	burst := max(1, rpm*p.providerBurstPct/100)
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	p.providerLimiters[provider] = limiter

	slog.Debug("Created provider rate limiter",
		"provider", provider,
		"rpm", rpm,
		"burst", burst)

	return limiter
}

// Wait blocks until both the provider limiter (if any) and the model limiter allow the next request
func (p *RateLimiterPool) Wait(ctx context.Context, modelID string, requestsPerMinute int, provider string) error {
	if limiter := p.providerLimiter(provider); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return p.GetOrCreate(modelID, requestsPerMinute).Wait(ctx)
}
