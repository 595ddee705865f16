package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation kinds used as label values
const (
	KindSlot         = "slot"
	KindRemix        = "remix"
	KindSocialPost   = "social_post"
	KindConversation = "conversation"
)

var (
	// Backend metrics
	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_backend_request_duration_seconds",
			Help:    "Time until a model backend accepted the request and began streaming",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	// Generation metrics
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_generation_total",
			Help: "Total number of generations that reached a terminal state",
		},
		[]string{"kind", "status"}, // status: "success"/"error"
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_generation_duration_seconds",
			Help:    "Generation duration from dispatch to terminal state",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~200s
		},
		[]string{"kind"},
	)

	activeGenerations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chorus_active_generations",
			Help: "Number of in-flight generations by kind",
		},
		[]string{"kind"},
	)

	playgroundSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_playground_sessions",
			Help: "Number of open playground sessions",
		},
	)

	conversationsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_conversations_stored",
			Help: "Number of conversations held by the conversation store",
		},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector is valid and records nothing.
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordBackendRequest records how long a backend took to start streaming
func (c *Collector) RecordBackendRequest(model string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	backendRequestDuration.WithLabelValues(model, status(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// GenerationStarted increments the in-flight gauge for kind
func (c *Collector) GenerationStarted(kind string) {
	if c == nil {
		return
	}
	activeGenerations.WithLabelValues(kind).Inc()
}

// GenerationFinished records a terminal generation and decrements the in-flight gauge
func (c *Collector) GenerationFinished(kind string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	activeGenerations.WithLabelValues(kind).Dec()
	generationTotal.WithLabelValues(kind, status(success)).Inc()
	generationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetSessions sets the number of open playground sessions
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	playgroundSessions.Set(float64(n))
}

// SetConversations sets the conversation store size
func (c *Collector) SetConversations(n int) {
	if c == nil {
		return
	}
	conversationsStored.Set(float64(n))
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
