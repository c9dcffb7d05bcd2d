package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's Prometheus metrics.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Shot generation metrics
	generationsTotal    *prometheus.CounterVec
	generationDuration  *prometheus.HistogramVec
	generationRetries   *prometheus.CounterVec
	qualityScore        *prometheus.HistogramVec
	mechanismUsed       *prometheus.CounterVec
	generationCredits   *prometheus.CounterVec

	// Persistence metrics
	versionConflicts *prometheus.CounterVec
	legacyFallbacks  prometheus.Counter
	dbQueryDuration  *prometheus.HistogramVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on the default
// Prometheus registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shot_generations_total",
			Help:      "Total number of shot generations by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shot_generation_duration_seconds",
			Help:      "End-to-end shot generation duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"provider"},
	)

	c.generationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shot_generation_retries_total",
			Help:      "Total number of quality-gate retries by provider",
		},
		[]string{"provider"},
	)

	c.qualityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shot_quality_score",
			Help:      "Style similarity scores produced by the quality gate",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"provider", "method"},
	)

	c.mechanismUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continuity_mechanism_total",
			Help:      "Continuity mechanisms used for completed shots",
		},
		[]string{"provider", "mechanism"},
	)

	c.generationCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_credits_total",
			Help:      "Estimated credits consumed by shot generations",
		},
		[]string{"provider"},
	)

	c.versionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_version_conflicts_total",
			Help:      "Optimistic-concurrency conflicts by outcome (reconciled/surfaced)",
		},
		[]string{"outcome"},
	)

	c.legacyFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_legacy_fallbacks_total",
			Help:      "Session reads served by the legacy store and backfilled",
		},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records an HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records a finished shot generation.
func (c *Collector) RecordGeneration(provider, status string, duration time.Duration) {
	c.generationsTotal.WithLabelValues(provider, status).Inc()
	c.generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRetry records one quality-gate retry.
func (c *Collector) RecordRetry(provider string) {
	c.generationRetries.WithLabelValues(provider).Inc()
}

// RecordQualityScore records a quality-gate style score.
func (c *Collector) RecordQualityScore(provider, method string, score float64) {
	c.qualityScore.WithLabelValues(provider, method).Observe(score)
}

// RecordMechanism records the continuity mechanism used for a shot.
func (c *Collector) RecordMechanism(provider, mechanism string) {
	c.mechanismUsed.WithLabelValues(provider, mechanism).Inc()
}

// RecordCredits records estimated credit consumption.
func (c *Collector) RecordCredits(provider string, credits float64) {
	c.generationCredits.WithLabelValues(provider).Add(credits)
}

// RecordVersionConflict records an optimistic-concurrency conflict and how
// it was resolved.
func (c *Collector) RecordVersionConflict(outcome string) {
	c.versionConflicts.WithLabelValues(outcome).Inc()
}

// RecordLegacyFallback records a read served by the legacy store.
func (c *Collector) RecordLegacyFallback() {
	c.legacyFallbacks.Inc()
}

// RecordDBQuery records a database query duration.
func (c *Collector) RecordDBQuery(operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}
