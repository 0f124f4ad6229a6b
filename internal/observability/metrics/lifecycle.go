package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// LifecycleMetrics observes the ingestion pipeline, the retriever and the offline cache.
type LifecycleMetrics struct {
	service string

	stageTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	retrievalAttempt *prometheus.CounterVec
	retrievalLatency *prometheus.HistogramVec
	retrievalResult  *prometheus.CounterVec
	cacheRequests    *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	cacheEvictBytes  prometheus.Counter
}

func newLifecycleMetrics(registry prometheus.Registerer, service string) *LifecycleMetrics {
	constLabels := prometheus.Labels{"service": service}

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_total",
			Help:        "Pipeline stage executions by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"stage", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	retrievalAttempt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "attempts_total",
			Help:        "Retrieval tier attempts by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"tier", "outcome"},
	)
	retrievalLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "attempt_duration_seconds",
			Help:        "Retrieval attempt duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"tier"},
	)
	retrievalResult := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "resolutions_total",
			Help:        "Completed resolutions by serving tier.",
			ConstLabels: constLabels,
		},
		[]string{"tier"},
	)
	cacheRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "requests_total",
			Help:        "Offline cache lookups by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "evicted_entries_total",
		Help:        "Entries removed by size-budget eviction.",
		ConstLabels: constLabels,
	})
	cacheEvictBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "evicted_bytes_total",
		Help:        "Bytes removed by size-budget eviction.",
		ConstLabels: constLabels,
	})

	registry.MustRegister(
		stageTotal,
		stageDuration,
		retrievalAttempt,
		retrievalLatency,
		retrievalResult,
		cacheRequests,
		cacheEvictions,
		cacheEvictBytes,
	)

	return &LifecycleMetrics{
		service:          service,
		stageTotal:       stageTotal,
		stageDuration:    stageDuration,
		retrievalAttempt: retrievalAttempt,
		retrievalLatency: retrievalLatency,
		retrievalResult:  retrievalResult,
		cacheRequests:    cacheRequests,
		cacheEvictions:   cacheEvictions,
		cacheEvictBytes:  cacheEvictBytes,
	}
}

func (m *LifecycleMetrics) ObserveStage(stage domain.Stage, outcome string, duration time.Duration) {
	m.stageTotal.WithLabelValues(string(stage), outcome).Inc()
	m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}

func (m *LifecycleMetrics) ObserveAttempt(tier domain.Tier, outcome string, duration time.Duration) {
	m.retrievalAttempt.WithLabelValues(string(tier), outcome).Inc()
	m.retrievalLatency.WithLabelValues(string(tier)).Observe(duration.Seconds())
}

func (m *LifecycleMetrics) ObserveResolution(tier domain.Tier) {
	if tier == "" {
		tier = "none"
	}
	m.retrievalResult.WithLabelValues(string(tier)).Inc()
}

func (m *LifecycleMetrics) CacheHit() {
	m.cacheRequests.WithLabelValues("hit").Inc()
}

func (m *LifecycleMetrics) CacheMiss() {
	m.cacheRequests.WithLabelValues("miss").Inc()
}

func (m *LifecycleMetrics) CacheEvicted(entries int, bytes int64) {
	m.cacheEvictions.Add(float64(entries))
	m.cacheEvictBytes.Add(float64(bytes))
}
