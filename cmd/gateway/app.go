package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/oidcgw/internal/auth/jwt"
	"github.com/vyrodovalexey/oidcgw/internal/auth/oidc"
	"github.com/vyrodovalexey/oidcgw/internal/cache"
	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/gateway"
	"github.com/vyrodovalexey/oidcgw/internal/health"
	"github.com/vyrodovalexey/oidcgw/internal/middleware"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/proxy"
	"github.com/vyrodovalexey/oidcgw/internal/vault"
)

// application holds all application components.
type application struct {
	config        *config.GatewayConfig
	logger        observability.Logger
	gateway       *gateway.Gateway
	handler       http.Handler
	settings      *config.SettingsStore
	healthChecker *health.Checker
	metrics       *observability.Metrics
	metricsServer *http.Server
	tracer        *observability.Tracer
	vaultClient   vault.Client
	cacheBackend  cache.Backend
	forwarder     *proxy.Forwarder
	rateLimiter   *middleware.RateLimiter
	watcher       *config.Watcher
}

// newApplication builds every component from cfg without binding sockets.
func newApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("gateway")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	// Component singletons live on the default registry, which
	// metrics.Handler gathers alongside the gateway registry.
	proxy.InitMetrics(prometheus.DefaultRegisterer)
	cache.GetCacheMetrics().Init()

	tracer, err := initTracer(cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	vaultClient, err := vault.New(cfg.Vault, vault.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	backend, err := cache.New(ctx, cfg.Cache, logger, cache.WithVaultClient(vaultClient))
	if err != nil {
		_ = vaultClient.Close()
		return nil, fmt.Errorf("failed to create cache backend: %w", err)
	}
	store := cache.NewStore(backend,
		cache.WithTTL(cfg.Cache.TTL.Duration()),
		cache.WithLogger(logger),
	)

	resolver := oidc.NewResolver(store,
		oidc.WithHTTPClient(&http.Client{Timeout: durationOr(cfg.Discovery.HTTPTimeout, oidc.DefaultHTTPTimeout)}),
		oidc.WithLogger(logger),
		oidc.WithMetrics(oidc.NewMetrics("gateway", metrics.Registry())),
	)
	verifier := jwt.NewVerifier(resolver,
		jwt.WithLogger(logger),
		jwt.WithMetrics(jwt.NewMetrics("gateway", metrics.Registry())),
	)

	forwarderOpts := []proxy.ForwarderOption{proxy.WithLogger(logger)}
	if cb := cfg.CircuitBreaker; cb.Enabled {
		forwarderOpts = append(forwarderOpts, proxy.WithCircuitBreaker(proxy.BreakerConfig{
			Threshold:        cb.Threshold,
			Timeout:          cb.Timeout.Duration(),
			HalfOpenRequests: cb.HalfOpenRequests,
		}))
	}
	forwarder := proxy.NewForwarder(forwarderOpts...)

	settings := config.NewSettingsStore(resolveSettings(ctx, cfg.Proxy, vaultClient, logger))

	pipeline := gateway.NewHandler(settings, verifier, forwarder,
		gateway.WithHandlerLogger(logger),
		gateway.WithTimeouts(cfg.Timeouts),
		gateway.WithMaxBodySize(cfg.Listener.MaxBodySize),
	)

	clientIP := middleware.NewClientIP(cfg.Listener.TrustedProxies)
	rateLimit, rateLimiter := middleware.RateLimitFromConfig(cfg.RateLimit, clientIP,
		middleware.WithRateLimiterLogger(logger),
		middleware.WithRejectHook(metrics.RecordRateLimitHit),
	)

	handler := middleware.Chain(pipeline,
		middleware.Recovery(logger),
		middleware.RequestID(),
		observability.TracingMiddleware(tracer),
		observability.MetricsMiddleware(metrics),
		middleware.Logging(logger, clientIP),
		rateLimit,
	)

	gw, err := gateway.New(cfg.Listener, handler, gateway.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	app := &application{
		config:       cfg,
		logger:       logger,
		gateway:      gw,
		handler:      handler,
		settings:     settings,
		metrics:      metrics,
		tracer:       tracer,
		vaultClient:  vaultClient,
		cacheBackend: backend,
		forwarder:    forwarder,
		rateLimiter:  rateLimiter,
	}
	app.healthChecker = app.newHealthChecker()
	return app, nil
}

func (a *application) newHealthChecker() *health.Checker {
	c := health.NewChecker(version, health.WithLogger(a.logger))
	c.RegisterCheck("cache", health.PingCheck(a.cacheBackend), true)
	c.RegisterCheck("settings", func(context.Context) error {
		return gateway.CheckSettings(a.settings.Load())
	}, false)
	c.RegisterCheck("issuer", health.HTTPCheck(nil, health.DefaultCheckTimeout, func() string {
		issuer := a.settings.Load().OIDCIssuer
		if issuer == "" {
			return ""
		}
		return oidc.DiscoveryURL(issuer)
	}), false)
	return c
}

// start binds the listeners and begins watching the config file.
func (a *application) start(ctx context.Context, flags cliFlags) error {
	if err := a.gateway.Start(ctx); err != nil {
		return err
	}
	if err := a.startMetricsServer(ctx); err != nil {
		return err
	}
	if flags.watchConfig {
		a.startConfigWatcher(ctx, flags.configPath)
	}
	return nil
}

// startConfigWatcher hot-reloads proxy settings. Other sections need a restart.
func (a *application) startConfigWatcher(ctx context.Context, path string) {
	watcher, err := config.NewWatcher(path, func(newCfg *config.GatewayConfig) {
		a.reload(ctx, newCfg)
	}, config.WithLogger(a.logger))
	if err != nil {
		a.logger.Warn("failed to create config watcher", observability.Error(err))
		return
	}
	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return
	}
	a.watcher = watcher
}

func (a *application) reload(ctx context.Context, newCfg *config.GatewayConfig) {
	a.settings.Store(resolveSettings(ctx, newCfg.Proxy, a.vaultClient, a.logger))
	a.logger.Info("proxy settings reloaded",
		observability.String("issuer", newCfg.Proxy.OIDCIssuer),
		observability.String("upstream", newCfg.Proxy.UpstreamAPIURL),
	)
}

// initTracer initializes the tracer.
func initTracer(cfg config.TracingConfig) (*observability.Tracer, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	return observability.NewTracer(observability.TracerConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
		Enabled:      cfg.Enabled,
	})
}
