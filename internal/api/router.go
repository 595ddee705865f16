package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lamim/chorus/internal/config"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/stream"
)

// Provider opens a stream for one configured model
type Provider interface {
	Stream(ctx context.Context, mc config.ModelConfig, apiKey string, req ChatRequest) (stream.Reader, error)
}

// Router resolves a catalog model id to its configured provider and applies outbound rate limits.
// It is the Backend used by the playground and the conversation service.
type Router struct {
	models    map[string]config.ModelConfig
	secrets   *config.Secrets
	providers map[string]Provider
	limiter   *RateLimiterPool
	metrics   *metrics.Collector
	logger    *slog.Logger
	nats      *NATSBackend
}

// NewRouter wires the OpenAI, Gemini and NATS adapters for cfg
func NewRouter(cfg *config.Config, secrets *config.Secrets, collector *metrics.Collector, logger *slog.Logger) *Router {
	if secrets == nil {
		secrets = &config.Secrets{APIKeys: map[string]string{}}
	}
	natsBackend := NewNATSBackend(logger.With("provider", config.ProviderNATS), "chorus")
	return &Router{
		models:  cfg.Models,
		secrets: secrets,
		providers: map[string]Provider{
			config.ProviderOpenAI: NewClient(logger.With("provider", config.ProviderOpenAI)),
			config.ProviderGemini: NewGeminiBackend(logger.With("provider", config.ProviderGemini), nil),
			config.ProviderNATS:   natsBackend,
		},
		limiter: NewRateLimiterPool(cfg.ProviderRateLimits, cfg.ProviderBurstPercent),
		metrics: collector,
		logger:  logger,
		nats:    natsBackend,
	}
}

// SetProvider replaces the adapter for a provider name
func (r *Router) SetProvider(name string, p Provider) {
	r.providers[name] = p
}

// SendChatRequest implements Backend
func (r *Router) SendChatRequest(ctx context.Context, req ChatRequest) (stream.Reader, error) {
	mc, ok := r.models[req.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}
	p, ok := r.providers[mc.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter for provider %q", mc.Provider)
	}

	providerName := mc.Provider
	if mc.BaseURL != "" {
		providerName = config.GetProviderName(mc.BaseURL)
	}

	waitStart := time.Now()
	if err := r.limiter.Wait(ctx, req.Model, mc.RateLimitPerMinute, providerName); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	r.metrics.RecordRateLimiterWait(req.Model, time.Since(waitStart))

	start := time.Now()
	reader, err := p.Stream(ctx, mc, r.secrets.GetAPIKey(mc), req)
	r.metrics.RecordBackendRequest(req.Model, time.Since(start), err == nil)
	if err != nil {
		r.logger.Warn("Backend request failed",
			"model", req.Model,
			"provider", mc.Provider,
			"error", err)
		return nil, err
	}
	return reader, nil
}

// Close releases provider connections
func (r *Router) Close() {
	r.nats.Close()
}
