package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store outcome labels.
const (
	outcomeHit           = "hit"
	outcomeMiss          = "miss"
	outcomeExpired       = "expired"
	outcomeOrphanMarker  = "orphan_marker"
	outcomeMarkerRepair  = "marker_repaired"
	outcomeBackendError  = "backend_error"
	outcomeWritten       = "written"
	outcomePartialWrite  = "partial_write"
	outcomeDeleted       = "deleted"
	outcomePartialDelete = "partial_delete"
)

// CacheMetrics holds Prometheus metrics for cache operations.
type CacheMetrics struct {
	storeOutcomes     *prometheus.CounterVec
	evictionsTotal    *prometheus.CounterVec
	sizeGauge         *prometheus.GaugeVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

var (
	cacheMetricsInstance *CacheMetrics
	cacheMetricsOnce     sync.Once
)

// GetCacheMetrics returns the singleton cache metrics instance, registered
// with the default Prometheus registry.
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = newCacheMetrics()
	})
	return cacheMetricsInstance
}

// Init pre-populates label combinations so the series appear at startup.
func (m *CacheMetrics) Init() {
	for _, op := range []string{"get", "set", "delete"} {
		for _, o := range []string{outcomeHit, outcomeMiss, outcomeExpired, outcomeBackendError} {
			m.storeOutcomes.WithLabelValues(op, o)
		}
		for _, backend := range []string{backendMemory, backendRedis} {
			m.operationDuration.WithLabelValues(backend, op)
			m.errorsTotal.WithLabelValues(backend, op)
		}
	}
}

func newCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		storeOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "store_operations_total",
				Help:      "Total number of TTL store operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		evictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of LRU evictions",
			},
			[]string{"backend"},
		),
		sizeGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "size",
				Help:      "Number of keys held by the backend",
			},
			[]string{"backend"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "operation_duration_seconds",
				Help:      "Backend operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Total number of backend errors",
			},
			[]string{"backend", "operation"},
		),
	}
}
