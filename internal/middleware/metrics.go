package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type middlewareMetrics struct {
	panicsRecovered prometheus.Counter
	rateLimited     *prometheus.CounterVec
}

var (
	middlewareMetricsInstance *middlewareMetrics
	middlewareMetricsOnce     sync.Once
)

func getMiddlewareMetrics() *middlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		factory := promauto.With(prometheus.DefaultRegisterer)
		middlewareMetricsInstance = &middlewareMetrics{
			panicsRecovered: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of recovered handler panics",
			}),
			rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "middleware",
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			}, []string{"scope"}),
		}
	})
	return middlewareMetricsInstance
}
