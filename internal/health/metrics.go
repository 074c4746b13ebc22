package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for health checks.
type HealthMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = &HealthMetrics{
			checksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "checks_total",
					Help:      "Total number of health endpoint requests",
				},
				[]string{"type"},
			),
			checkStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "check_status",
					Help:      "Current check status (1=healthy, 0=unhealthy)",
				},
				[]string{"check"},
			),
			checkDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "health",
					Name:      "check_duration_seconds",
					Help:      "Duration of dependency checks",
					Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"check"},
			),
		}
	})
	return healthMetricsInstance
}

// Init pre-populates label combinations so they appear before the first probe.
func (m *HealthMetrics) Init() {
	for _, t := range []string{"health", "liveness", "readiness"} {
		m.checksTotal.WithLabelValues(t)
	}
	m.checkStatus.WithLabelValues("overall")
}

// RecordHealthCheck records the outcome of one dependency check.
func RecordHealthCheck(name string, healthy bool, d time.Duration) {
	m := GetHealthMetrics()
	m.checkStatus.WithLabelValues(name).Set(boolToFloat(healthy))
	m.checkDuration.WithLabelValues(name).Observe(d.Seconds())
}
