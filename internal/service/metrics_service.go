package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// Match cycle outcomes recorded by RecordMatchCycle.
const (
	CycleOutcomeCompleted = "completed"
	CycleOutcomeBusy      = "busy"
	CycleOutcomeFailed    = "failed"
)

// MetricsService encapsulates Prometheus instrumentation and a lightweight snapshot for API consumption.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	cacheLatency         prometheus.Histogram
	cacheWrite           prometheus.Histogram
	cacheHitRatio        prometheus.Gauge
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	matchCycles          *prometheus.CounterVec
	matchCycleDuration   prometheus.Histogram
	matchesProposed      prometheus.Counter
	queueDepth           *prometheus.GaugeVec
	sessionsMaterialized prometheus.Counter
	resourceConflicts    prometheus.Counter
	notifications        *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	matchCycleCount      uint64
	matchCount           uint64
	sessionCount         uint64
	conflictCount        uint64
}

const metricsNamespace = "tutorhub"

func counterOpts(subsystem, name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: metricsNamespace, Subsystem: subsystem, Name: name, Help: help}
}

func histogramOpts(subsystem, name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: metricsNamespace, Subsystem: subsystem, Name: name, Help: help, Buckets: prometheus.DefBuckets}
}

// NewMetricsService registers the collectors on a private registry.
// Every metric is exported under the tutorhub namespace.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(histogramOpts("http", "request_duration_seconds", "Duration of HTTP requests"), []string{"method", "path", "status"}),
		requestTotal:    prometheus.NewCounterVec(counterOpts("http", "requests_total", "HTTP requests served"), []string{"method", "path", "status"}),

		cacheLatency: prometheus.NewHistogram(histogramOpts("cache", "read_seconds", "Latency of cache reads")),
		cacheWrite:   prometheus.NewHistogram(histogramOpts("cache", "write_seconds", "Latency of cache writes")),
		cacheHits:    prometheus.NewCounter(counterOpts("cache", "hits_total", "Cache reads served from Redis")),
		cacheMisses:  prometheus.NewCounter(counterOpts("cache", "misses_total", "Cache reads that fell through to Postgres")),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "hit_ratio", Help: "Hits over all cache reads",
		}),

		matchCycles:        prometheus.NewCounterVec(counterOpts("pairing", "match_cycles_total", "Match cycles by outcome"), []string{"outcome"}),
		matchCycleDuration: prometheus.NewHistogram(histogramOpts("pairing", "match_cycle_duration_seconds", "Duration of completed match cycles")),
		matchesProposed:    prometheus.NewCounter(counterOpts("pairing", "matches_proposed_total", "Tutor/student pairings proposed by match cycles")),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "pairing", Name: "queue_depth", Help: "Pending requests left after the last cycle",
		}, []string{"type"}),

		sessionsMaterialized: prometheus.NewCounter(counterOpts("sessions", "materialized_total", "Sessions created from enrollment availability")),
		resourceConflicts:    prometheus.NewCounter(counterOpts("sessions", "meeting_conflicts_total", "Session writes rejected because the meeting was booked")),
		notifications:        prometheus.NewCounterVec(counterOpts("notifications", "handled_total", "Notifications handled by the delivery queue"), []string{"status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "goroutines", Help: "Live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.registry.MustRegister(m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHits, m.cacheMisses, m.cacheHitRatio,
		m.matchCycles, m.matchCycleDuration, m.matchesProposed, m.queueDepth,
		m.sessionsMaterialized, m.resourceConflicts, m.notifications, goroutines)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordMatchCycle counts a cycle attempt; matches and duration only apply to completed cycles.
func (m *MetricsService) RecordMatchCycle(outcome string, matches int, duration time.Duration) {
	if m == nil {
		return
	}
	m.matchCycles.WithLabelValues(outcome).Inc()
	if outcome != CycleOutcomeCompleted {
		return
	}
	atomic.AddUint64(&m.matchCycleCount, 1)
	m.matchCycleDuration.Observe(duration.Seconds())
	if matches > 0 {
		m.matchesProposed.Add(float64(matches))
		atomic.AddUint64(&m.matchCount, uint64(matches))
	}
}

// SetQueueDepth publishes the number of pending requests per role.
func (m *MetricsService) SetQueueDepth(role models.ProfileRole, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(string(role)).Set(float64(depth))
}

// RecordSessionsMaterialized counts sessions created by a materialization run.
func (m *MetricsService) RecordSessionsMaterialized(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsMaterialized.Add(float64(count))
	atomic.AddUint64(&m.sessionCount, uint64(count))
}

// RecordResourceConflict counts a rejected booking.
func (m *MetricsService) RecordResourceConflict() {
	if m == nil {
		return
	}
	m.resourceConflicts.Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// RecordNotification counts notification deliveries by status.
func (m *MetricsService) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		MatchCycles:              atomic.LoadUint64(&m.matchCycleCount),
		MatchesProposed:          atomic.LoadUint64(&m.matchCount),
		SessionsMaterialized:     atomic.LoadUint64(&m.sessionCount),
		ResourceConflicts:        atomic.LoadUint64(&m.conflictCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
