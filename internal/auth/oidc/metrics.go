package oidc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for discovery and key resolution.
type Metrics struct {
	discoveryTotal    *prometheus.CounterVec
	jwksFetchTotal    *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	keySetLookupTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	factory := promauto.With(reg)

	return &Metrics{
		discoveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oidc",
				Name:      "discovery_total",
				Help:      "Total number of OIDC discovery requests",
			},
			[]string{"status"},
		),
		jwksFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oidc",
				Name:      "jwks_fetch_total",
				Help:      "Total number of JWKS fetches",
			},
			[]string{"status"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "oidc",
				Name:      "fetch_duration_seconds",
				Help:      "Identity provider request duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		keySetLookupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oidc",
				Name:      "key_set_lookups_total",
				Help:      "Total number of key set lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordDiscovery records a discovery document request.
func (m *Metrics) RecordDiscovery(status string, d time.Duration) {
	m.discoveryTotal.WithLabelValues(status).Inc()
	m.fetchDuration.WithLabelValues(StageDiscovery).Observe(d.Seconds())
}

// RecordJWKSFetch records a JWKS request.
func (m *Metrics) RecordJWKSFetch(status string, d time.Duration) {
	m.jwksFetchTotal.WithLabelValues(status).Inc()
	m.fetchDuration.WithLabelValues(StageJWKS).Observe(d.Seconds())
}

// RecordKeySet records the outcome of a KeySet call.
func (m *Metrics) RecordKeySet(result string) {
	m.keySetLookupTotal.WithLabelValues(result).Inc()
}
