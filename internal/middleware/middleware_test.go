package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestIDWithGenerator(func() string { return "generated" })(http.HandlerFunc(
		func(_ http.ResponseWriter, r *http.Request) {
			seen = observability.RequestIDFromContext(r.Context())
		}))

	t.Run("propagates caller id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderXRequestID, "abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", w.Header().Get(HeaderXRequestID))
	})

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "generated", seen)
		assert.Equal(t, "generated", w.Header().Get(HeaderXRequestID))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderXRequestID, strings.Repeat("x", maxRequestIDLength+1))
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, "generated", seen)
	})
}

func TestRequestID_UUID(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	RequestID()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), RequestIDWithGenerator(func() string { return "rid" }), Logging(logger, nil))

	r := httptest.NewRequest(http.MethodPost, "/chat-messages", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(len("short and stout")), fields["size"])
	assert.Equal(t, "10.0.0.1", fields["client_ip"])
	assert.Equal(t, "rid", fields["request_id"])
}

func TestLogging_PreservesFlusher(t *testing.T) {
	t.Parallel()

	var flushed bool
	h := Logging(observability.NopLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		flushed = http.NewResponseController(w).Flush() == nil
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, flushed)
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	h := Recovery(observability.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ContentTypeJSON, w.Header().Get(HeaderContentType))
	assert.JSONEq(t, ErrInternalServerError, w.Body.String())
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	t.Parallel()

	h := Recovery(observability.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRateLimit_Global(t *testing.T) {
	t.Parallel()

	var rejected atomic.Int32
	rl := NewRateLimiter(1, 2, false, WithRejectHook(func() { rejected.Add(1) }))
	h := RateLimit(rl, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get(HeaderRetryAfter))
			assert.JSONEq(t, ErrRateLimitExceeded, w.Body.String())
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, int32(1), rejected.Load())
}

func TestRateLimit_PerClient(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, true)
	h := RateLimit(rl, nil)(okHandler())

	do := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:2"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1"))
}

func TestRateLimiter_CleanupOldClients(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(10, 10, true)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(time.Hour)
	rl.Allow("b")

	assert.Equal(t, 1, rl.CleanupOldClients(time.Minute))
	rl.mu.Lock()
	_, hasB := rl.clients["b"]
	rl.mu.Unlock()
	assert.True(t, hasB)

	rl.StartAutoCleanup()
	rl.Stop()
	rl.Stop()
}

func TestRateLimitFromConfig(t *testing.T) {
	t.Parallel()

	mw, rl := RateLimitFromConfig(config.RateLimitConfig{}, nil)
	assert.Nil(t, rl)
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	_, rl = RateLimitFromConfig(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 5, PerClient: true}, nil)
	require.NotNil(t, rl)
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		want    string
	}{
		{name: "no trusted proxies ignores xff", remote: "1.2.3.4:5", xff: "9.9.9.9", want: "1.2.3.4"},
		{name: "untrusted peer ignores xff", trusted: []string{"10.0.0.0/8"}, remote: "1.2.3.4:5", xff: "9.9.9.9", want: "1.2.3.4"},
		{name: "trusted peer uses xff", trusted: []string{"10.0.0.0/8"}, remote: "10.1.1.1:5", xff: "9.9.9.9, 10.2.2.2", want: "9.9.9.9"},
		{name: "single trusted ip", trusted: []string{"10.1.1.1"}, remote: "10.1.1.1:5", xff: "8.8.8.8", want: "8.8.8.8"},
		{name: "all trusted falls back", trusted: []string{"10.0.0.0/8"}, remote: "10.1.1.1:5", xff: "10.3.3.3", want: "10.1.1.1"},
		{name: "invalid entries skipped", trusted: []string{"nope"}, remote: "10.1.1.1:5", xff: "8.8.8.8", want: "10.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set(HeaderXForwardedFor, tt.xff)
			}
			assert.Equal(t, tt.want, NewClientIP(tt.trusted).Extract(r))
		})
	}
}
