package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pinger is implemented by cache backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a backend with Ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

// HTTPCheck issues a GET to the URL returned by target and expects a 2xx.
// An empty URL counts as healthy so unconfigured dependencies do not fail
// readiness on their own.
func HTTPCheck(client *http.Client, timeout time.Duration, target func() string) CheckFunc {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return func(ctx context.Context) error {
		url := target()
		if url == "" {
			return nil
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
		}
		return nil
	}
}
