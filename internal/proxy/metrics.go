package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// proxyMetrics contains Prometheus metrics for upstream forwarding.
type proxyMetrics struct {
	upstreamDuration *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	streamsActive    prometheus.Gauge
	breakerState     prometheus.Gauge
}

var (
	proxyMetricsInstance *proxyMetrics
	proxyMetricsOnce     sync.Once
)

// initProxyMetrics initializes the singleton with registerer, or the
// default registerer when nil. Later calls are no-ops.
func initProxyMetrics(registerer prometheus.Registerer) {
	proxyMetricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		factory := promauto.With(registerer)
		proxyMetricsInstance = &proxyMetrics{
			upstreamDuration: factory.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "upstream_duration_seconds",
					Help:      "Time until the upstream response headers arrived",
					Buckets: []float64{
						.005, .01, .025, .05, .1, .25,
						.5, 1, 2.5, 5, 10, 30, 60, 300,
					},
				},
				[]string{"mode"},
			),
			errorsTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "errors_total",
					Help:      "Total number of failed upstream exchanges",
				},
				[]string{"mode", "error_type"},
			),
			streamsActive: factory.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "streams_active",
					Help:      "Number of open upstream streams",
				},
			),
			breakerState: factory.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "circuit_breaker_state",
					Help:      "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
				},
			),
		}

		for _, mode := range []string{ModeBlocking.String(), ModeStreaming.String()} {
			proxyMetricsInstance.upstreamDuration.WithLabelValues(mode)
			for _, et := range []string{"timeout", "connection_refused", "transport", "circuit_open"} {
				proxyMetricsInstance.errorsTotal.WithLabelValues(mode, et)
			}
		}
	})
}

// getProxyMetrics returns the singleton, initializing it lazily.
func getProxyMetrics() *proxyMetrics {
	initProxyMetrics(nil)
	return proxyMetricsInstance
}

// InitMetrics registers the proxy metrics with registerer. It must run
// before the first Forwarder is created to take effect.
func InitMetrics(registerer prometheus.Registerer) {
	initProxyMetrics(registerer)
}
