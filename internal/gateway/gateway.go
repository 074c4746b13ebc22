package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// DefaultShutdownTimeout bounds the drain of in-flight requests on Stop.
const DefaultShutdownTimeout = 30 * time.Second

const maxHeaderBytes = 1 << 20

var ginModeOnce sync.Once

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway serves the pipeline handler on the configured listener.
type Gateway struct {
	config  config.ListenerConfig
	handler http.Handler
	logger  observability.Logger
	engine  *gin.Engine

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}

	state     atomic.Int32
	startTime time.Time

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New creates a gateway. Every method and path is routed to handler.
func New(cfg config.ListenerConfig, handler http.Handler, opts ...Option) (*Gateway, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	g := &Gateway{
		config:          cfg,
		handler:         handler,
		logger:          observability.NopLogger(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}

	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	g.engine = gin.New()
	g.engine.NoRoute(gin.WrapH(g.handler))

	g.state.Store(int32(StateStopped))
	return g, nil
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	addr := g.config.Address
	if addr == "" {
		addr = config.DefaultListenAddress
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// No server-wide read/write timeouts; streamed responses are bounded by
	// the upstream socket deadlines.
	server := &http.Server{
		Handler:           g.engine,
		ReadHeaderTimeout: durationOr(g.config.ReadHeaderTimeout, config.DefaultReadHeaderTimeout),
		IdleTimeout:       durationOr(g.config.IdleTimeout, config.DefaultIdleTimeout),
		MaxHeaderBytes:    maxHeaderBytes,
	}

	done := make(chan struct{})
	g.mu.Lock()
	g.server = server
	g.listener = ln
	g.done = done
	g.mu.Unlock()

	go g.serve(server, ln, done)

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started", observability.String("address", ln.Addr().String()))
	return nil
}

func (g *Gateway) serve(server *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		g.logger.Error("listener error", observability.Error(err))
	}
}

// Stop drains in-flight requests, forcing connections closed once the
// shutdown timeout elapses.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}
	defer g.state.Store(int32(StateStopped))

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	g.mu.RLock()
	server, done := g.server, g.done
	g.mu.RUnlock()

	var result error
	if err := server.Shutdown(ctx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		result = fmt.Errorf("failed to shutdown gracefully: %w", err)
	}
	<-done

	g.logger.Info("gateway stopped", observability.Duration("uptime", g.Uptime()))
	return result
}

// Addr returns the bound address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the time since the last successful Start.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

func durationOr(d config.Duration, fallback time.Duration) time.Duration {
	if d.Duration() > 0 {
		return d.Duration()
	}
	return fallback
}
