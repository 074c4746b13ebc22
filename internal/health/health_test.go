package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(*Checker)
		status Status
	}{
		{"no checks", func(*Checker) {}, StatusHealthy},
		{"all healthy", func(c *Checker) {
			c.RegisterCheck("cache", ok, true)
			c.RegisterCheck("issuer", ok, false)
		}, StatusHealthy},
		{"non-critical failure degrades", func(c *Checker) {
			c.RegisterCheck("cache", ok, true)
			c.RegisterCheck("issuer", failing("down"), false)
		}, StatusDegraded},
		{"critical failure", func(c *Checker) {
			c.RegisterCheck("cache", failing("refused"), true)
			c.RegisterCheck("issuer", failing("down"), false)
		}, StatusUnhealthy},
		{"draining", func(c *Checker) {
			c.RegisterCheck("cache", ok, true)
			c.SetDraining(true)
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewChecker("test")
			tt.setup(c)
			assert.Equal(t, tt.status, c.Readiness(context.Background()).Status)
		})
	}
}

func TestChecker_ReadinessRecordsMessages(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("cache", failing("refused"), true)

	resp := c.Readiness(context.Background())
	require.Contains(t, resp.Checks, "cache")
	assert.Equal(t, "refused", resp.Checks["cache"].Message)
	assert.True(t, resp.Checks["cache"].Critical)

	c.UnregisterCheck("cache")
	assert.Empty(t, c.Names())
	assert.Equal(t, StatusHealthy, c.Readiness(context.Background()).Status)
}

func TestChecker_ReadinessTimeout(t *testing.T) {
	t.Parallel()

	c := NewChecker("test", WithTimeout(20*time.Millisecond))
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, true)

	start := time.Now()
	resp := c.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestChecker_Handlers(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	mux := http.NewServeMux()
	c.Register(mux)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get(PathHealth)
	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, "1.2.3", health.Version)

	w = get(PathLiveness)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(PathReadiness).Code)

	c.RegisterCheck("cache", failing("refused"), true)
	w = get(PathReadiness)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, contentTypeJSON, w.Header().Get("Content-Type"))
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, PingCheck(fakePinger{})(context.Background()))
	err := PingCheck(fakePinger{err: errors.New("refused")})(context.Background())
	assert.ErrorContains(t, err, "refused")
}

func TestHTTPCheck(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	check := HTTPCheck(srv.Client(), time.Second, func() string { return srv.URL })
	assert.NoError(t, check(context.Background()))

	status.Store(http.StatusBadGateway)
	assert.ErrorContains(t, check(context.Background()), "502")

	empty := HTTPCheck(nil, time.Second, func() string { return "" })
	assert.NoError(t, empty(context.Background()))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	down := HTTPCheck(nil, time.Second, func() string { return closed.URL })
	assert.Error(t, down(context.Background()))
}
