package proxy

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	// Threshold is the minimum number of requests in an interval before
	// the failure ratio can trip the breaker.
	Threshold        int
	Timeout          time.Duration
	HalfOpenRequests int
}

// breaker wraps gobreaker around the upstream round trip. 5xx responses
// count as failures but are still returned to the caller.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(cfg BreakerConfig, logger observability.Logger) *breaker {
	threshold := safeIntToUint32(cfg.Threshold)
	halfOpen := safeIntToUint32(cfg.HalfOpenRequests)
	if halfOpen == 0 {
		halfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: halfOpen,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			getProxyMetrics().breakerState.Set(float64(to))
		},
	}
	return &breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

type upstreamStatusError struct {
	resp *http.Response
}

func (e *upstreamStatusError) Error() string {
	return "upstream returned " + e.resp.Status
}

func (b *breaker) roundTrip(do func() (*http.Response, error)) (*http.Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		resp, err := do()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &upstreamStatusError{resp: resp}
		}
		return resp, nil
	})

	var se *upstreamStatusError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUpstreamUnavailable
	}
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

func (b *breaker) state() gobreaker.State {
	return b.cb.State()
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
