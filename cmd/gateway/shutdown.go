package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/oidcgw/internal/gateway"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// waitForShutdown waits for SIGINT or SIGTERM and shuts down gracefully.
func waitForShutdown(app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), gateway.DefaultShutdownTimeout)
	defer cancel()
	app.shutdown(ctx)
}

// shutdown stops components in reverse dependency order. Readiness fails
// first so traffic drains before the listener closes.
func (a *application) shutdown(ctx context.Context) {
	a.healthChecker.SetDraining(true)

	if a.watcher != nil {
		_ = a.watcher.Stop()
	}

	if a.gateway.IsRunning() {
		if err := a.gateway.Stop(ctx); err != nil {
			a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
		}
	}

	if a.metricsServer != nil {
		a.logger.Info("stopping metrics server")
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	a.forwarder.Close()

	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	if err := a.cacheBackend.Close(); err != nil {
		a.logger.Error("failed to close cache backend", observability.Error(err))
	}

	if err := a.vaultClient.Close(); err != nil {
		a.logger.Error("failed to close vault client", observability.Error(err))
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	a.logger.Info("gateway stopped")
}
