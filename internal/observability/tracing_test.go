package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tr, err := NewTracer(TracerConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Contains(t, createSampler(0.5).Description(), "TraceIDRatioBased")
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	t.Parallel()

	tr, err := NewTracer(TracerConfig{ServiceName: "test"})
	require.NoError(t, err)

	handler := TracingMiddleware(tr)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestInjectTraceContext_NoSpan(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	InjectTraceContext(context.Background(), h)
	assert.Empty(t, h.Get("traceparent"))
}
