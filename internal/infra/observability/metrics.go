package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// Metrics holds the Prometheus instruments for the cobrança service.
type Metrics struct {
	// Registry owns every instrument below; the /metrics endpoint serves it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	statements      prometheus.Counter
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	chatRequests    *prometheus.CounterVec
}

// NewMetrics registers all instruments in a fresh private registry. A private
// registry keeps repeated construction (tests, mainly) from tripping
// duplicate-collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cobranca_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_external_errors_total",
				Help: "Total errors from external providers.",
			},
			[]string{"service"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_notifications_total",
				Help: "Total charge notifications by channel and outcome.",
			},
			[]string{"channel", "status"},
		),
		statements: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cobranca_statements_computed_total",
				Help: "Total debt statements computed.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		chatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobranca_chat_requests_total",
				Help: "Total chat requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records how long an operation took.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError counts a failure of the named provider.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// RecordNotification counts one notification attempt per channel
// ("whatsapp", "email") with outcome "sent" or "error".
func (m *Metrics) RecordNotification(channel, status string) {
	m.notifications.WithLabelValues(channel, status).Inc()
}

// IncrStatement counts one computed statement.
func (m *Metrics) IncrStatement() {
	m.statements.Inc()
}

// IncrCacheHit counts a hit on the named cache.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss counts a miss on the named cache.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrChatRequest counts a chat request with outcome "success" or "error".
func (m *Metrics) IncrChatRequest(status string) {
	m.chatRequests.WithLabelValues(status).Inc()
}

// GetChatSnapshot assembles the aggregate view served by
// GET /v1/metrics/chat from the cumulative counters.
func (m *Metrics) GetChatSnapshot() *domain.ChatMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	successCount := getCounterValue(m.chatRequests, "success")
	errorCount := getCounterValue(m.chatRequests, "error")
	totalRequests := successCount + errorCount
	hits := getCounterValue(m.cacheHits, "conversation")
	misses := getCounterValue(m.cacheMisses, "conversation")

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		avgTokens = totalTokens / totalRequests
		errorRate = errorCount / totalRequests
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	// Groq llama-3.1-8b-instant list price: $0.05/1M prompt tokens,
	// $0.08/1M completion tokens.
	estimatedCost := promptTokens/1e6*0.05 + completionTokens/1e6*0.08

	return &domain.ChatMetrics{
		TotalRequests:       int64(totalRequests),
		ErrorRate:           errorRate,
		AvgTokensPerRequest: avgTokens,
		EstimatedCostUSD:    estimatedCost,
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue reads the current value of one labelled counter.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
