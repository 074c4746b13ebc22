package jwt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const resultSuccess = "success"

// Metrics holds token verification metrics.
type Metrics struct {
	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	factory := promauto.With(reg)

	return &Metrics{
		verificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jwt",
				Name:      "verifications_total",
				Help:      "Total number of token verifications by result and failure reason",
			},
			[]string{"result", "reason"},
		),
		verificationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jwt",
				Name:      "verification_duration_seconds",
				Help:      "Token verification duration in seconds, key resolution included",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
	}
}

// RecordVerification records one verification. reason is "success" for
// accepted tokens.
func (m *Metrics) RecordVerification(reason string, d time.Duration) {
	result := "failure"
	if reason == resultSuccess {
		result = resultSuccess
		reason = ""
	}
	m.verificationsTotal.WithLabelValues(result, reason).Inc()
	m.verificationDuration.Observe(d.Seconds())
}
