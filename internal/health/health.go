package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// Endpoint paths.
const (
	PathHealth    = "/health"
	PathReadiness = "/ready"
	PathLiveness  = "/live"
)

const contentTypeJSON = "application/json"

// DefaultCheckTimeout bounds a readiness probe.
const DefaultCheckTimeout = 5 * time.Second

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check represents an individual check result.
type Check struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"critical"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type dependency struct {
	check    CheckFunc
	critical bool
}

// Checker aggregates dependency checks.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	logger    observability.Logger

	mu       sync.RWMutex
	checks   map[string]dependency
	draining atomic.Bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each readiness probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker creates a new health checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		logger:    observability.NopLogger(),
		checks:    make(map[string]dependency),
	}
	for _, opt := range opts {
		opt(c)
	}
	GetHealthMetrics().Init()
	return c
}

// RegisterCheck adds or replaces a named readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = dependency{check: check, critical: critical}
}

// UnregisterCheck removes a readiness check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// SetDraining marks the process as shutting down.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// IsDraining reports whether SetDraining(true) was called.
func (c *Checker) IsDraining() bool {
	return c.draining.Load()
}

// Health returns the process health.
func (c *Checker) Health() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness runs every registered check concurrently.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	deps := make([]dependency, 0, len(c.checks))
	for name, dep := range c.checks {
		names = append(names, name)
		deps = append(deps, dep)
	}
	c.mu.RUnlock()

	results := make([]Check, len(deps))
	var wg sync.WaitGroup
	for i := range deps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.run(ctx, names[i], deps[i])
		}(i)
	}
	wg.Wait()

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(results)+1),
		Timestamp: time.Now(),
	}
	for i, check := range results {
		response.Checks[names[i]] = check
		switch {
		case check.Status == StatusUnhealthy && check.Critical:
			response.Status = StatusUnhealthy
		case check.Status == StatusUnhealthy && response.Status == StatusHealthy:
			response.Status = StatusDegraded
		}
	}

	if c.IsDraining() {
		response.Status = StatusUnhealthy
		response.Checks["draining"] = Check{Status: StatusUnhealthy, Message: "shutting down", Critical: true}
	}

	GetHealthMetrics().checkStatus.WithLabelValues("overall").Set(boolToFloat(response.Status != StatusUnhealthy))
	return response
}

func (c *Checker) run(ctx context.Context, name string, dep dependency) Check {
	start := time.Now()
	err := dep.check(ctx)
	RecordHealthCheck(name, err == nil, time.Since(start))

	if err != nil {
		c.logger.Warn("readiness check failed",
			observability.String("check", name),
			observability.Bool("critical", dep.critical),
			observability.Error(err),
		)
		return Check{Status: StatusUnhealthy, Message: err.Error(), Critical: dep.critical}
	}
	return Check{Status: StatusHealthy, Critical: dep.critical}
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthHandler returns an HTTP handler for the health endpoint.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		GetHealthMetrics().checksTotal.WithLabelValues("health").Inc()
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler returns an HTTP handler for the readiness endpoint.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		GetHealthMetrics().checksTotal.WithLabelValues("readiness").Inc()
		response := c.Readiness(r.Context())

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

// LivenessHandler returns an HTTP handler for the liveness endpoint.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		GetHealthMetrics().checksTotal.WithLabelValues("liveness").Inc()
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Register mounts the three endpoints on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.Handle(PathHealth, c.HealthHandler())
	mux.Handle(PathReadiness, c.ReadinessHandler())
	mux.Handle(PathLiveness, c.LivenessHandler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
