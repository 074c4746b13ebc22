package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/oidcgw/internal/config"
)

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestNew_RequiresHandler(t *testing.T) {
	t.Parallel()

	_, err := New(config.ListenerConfig{}, nil)
	require.Error(t, err)
}

func TestGateway_Lifecycle(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path)
	})

	g, err := New(config.ListenerConfig{Address: "127.0.0.1:0"}, handler,
		WithShutdownTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Nil(t, g.Addr())
	assert.NotNil(t, g.Engine())
	assert.Equal(t, StateStopped, g.State())
	assert.Zero(t, g.Uptime())

	ctx := context.Background()
	require.NoError(t, g.Start(ctx))
	assert.True(t, g.IsRunning())
	assert.ErrorIs(t, g.Start(ctx), ErrGatewayNotStopped)

	base := "http://" + g.Addr().String()
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/v1/chat-messages"},
		{http.MethodGet, "/"},
		{http.MethodDelete, "/conversations/123"},
		{http.MethodPatch, "/deep/nested/path/"},
	} {
		req, err := http.NewRequest(tc.method, base+tc.path, strings.NewReader(""))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode, tc.path)
		assert.Equal(t, tc.method+" "+tc.path, string(body))
	}

	require.NoError(t, g.Stop(ctx))
	assert.Equal(t, StateStopped, g.State())
	assert.ErrorIs(t, g.Stop(ctx), ErrGatewayNotRunning)

	// A stopped gateway can be started again.
	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.Stop(ctx))
}

func TestGateway_StartFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	first, err := New(config.ListenerConfig{Address: "127.0.0.1:0"}, http.NotFoundHandler())
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	second, err := New(config.ListenerConfig{Address: first.Addr().String()}, http.NotFoundHandler())
	require.NoError(t, err)
	require.Error(t, second.Start(context.Background()))
	assert.Equal(t, StateStopped, second.State())
}
