package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/health"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// newMetricsMux serves metrics and the health endpoints.
func newMetricsMux(path string, metrics *observability.Metrics, checker *health.Checker) *http.ServeMux {
	if path == "" {
		path = config.DefaultMetricsPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	checker.Register(mux)
	return mux
}

// startMetricsServer binds the metrics port when metrics are enabled.
func (a *application) startMetricsServer(ctx context.Context) error {
	mcfg := a.config.Observability.Metrics
	if !mcfg.Enabled {
		return nil
	}

	port := mcfg.Port
	if port == 0 {
		port = config.DefaultMetricsPort
	}
	addr := fmt.Sprintf(":%d", port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	a.metricsServer = &http.Server{
		Handler:           newMetricsMux(mcfg.Path, a.metrics, a.healthChecker),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	a.logger.Info("starting metrics server",
		observability.String("address", ln.Addr().String()),
		observability.String("metrics_path", mcfg.Path),
	)

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", observability.Error(err))
		}
	}()
	return nil
}
