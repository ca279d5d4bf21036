// Package main implements the ShopStream gateway: the HTTP front door that
// forwards REST calls to the user and item backends over the broker and
// pushes catalog change events to connected WebSocket clients.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/shopstream/config"
	"github.com/c360/shopstream/fanout"
	"github.com/c360/shopstream/gateway"
	"github.com/c360/shopstream/health"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/pkg/timestamp"
	"github.com/c360/shopstream/pkg/tlsutil"
	"github.com/c360/shopstream/realtime"
	"github.com/c360/shopstream/rpc"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "shopstream"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(resolveLogSettings(cliCfg, cfg))
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("starting gateway",
		"version", Version,
		"build_time", BuildTime,
		"listen_addr", cfg.Gateway.ListenAddr,
		"broker_url", cfg.Broker.URL)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	registry := metric.NewMetricsRegistry()

	nc, err := buildBrokerClient(cfg, logger, registry)
	if err != nil {
		return fmt.Errorf("create broker client: %w", err)
	}
	if err := nc.Connect(signalCtx); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = nc.Close(closeCtx)
	}()

	// Workers provision the stream too; doing it here as well means a
	// gateway that starts before any worker can still accept requests.
	subjects := []string{cfg.Broker.Subjects.UserRequests, cfg.Broker.Subjects.ItemRequests}
	if err := nc.EnsureRequestStream(signalCtx, cfg.Broker.Subjects.Stream, subjects); err != nil {
		return fmt.Errorf("provision request stream: %w", err)
	}

	parts, err := assembleGateway(signalCtx, cfg, nc, logger, registry)
	if err != nil {
		return err
	}
	defer parts.close()

	srv, err := buildServer(cfg, parts.mux)
	if err != nil {
		return err
	}

	return serveUntilSignal(signalCtx, srv, cfg.Gateway.ShutdownTimeout.Std())
}

// gatewayParts groups everything assembleGateway wires together so run can
// shut the pieces down in order.
type gatewayParts struct {
	mux      *http.ServeMux
	hub      *realtime.Hub
	userCorr *rpc.Correlator
	itemCorr *rpc.Correlator
}

func (p *gatewayParts) close() {
	if err := p.hub.Close(); err != nil {
		slog.Error("realtime hub close failed", "error", err)
	}
	if err := p.userCorr.Close(); err != nil {
		slog.Error("user correlator close failed", "error", err)
	}
	if err := p.itemCorr.Close(); err != nil {
		slog.Error("item correlator close failed", "error", err)
	}
}

// assembleGateway builds the reply correlators, the backend callers, the
// fan-out bus, the realtime hub, and the HTTP routes over them.
func assembleGateway(
	ctx context.Context,
	cfg *config.Config,
	nc *natsclient.Client,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*gatewayParts, error) {
	userCorr, err := rpc.NewCorrelator(nc, "user", logger, registry)
	if err != nil {
		return nil, fmt.Errorf("create user correlator: %w", err)
	}
	itemCorr, err := rpc.NewCorrelator(nc, "item", logger, registry)
	if err != nil {
		_ = userCorr.Close()
		return nil, fmt.Errorf("create item correlator: %w", err)
	}

	cleanup := func() {
		_ = userCorr.Close()
		_ = itemCorr.Close()
	}

	callTimeout := rpc.WithCallTimeout(cfg.Gateway.CallTimeout.Std())
	users, err := rpc.NewClient(nc, userCorr, cfg.Broker.Subjects.UserRequests, callTimeout)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create user caller: %w", err)
	}
	items, err := rpc.NewClient(nc, itemCorr, cfg.Broker.Subjects.ItemRequests, callTimeout)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create item caller: %w", err)
	}

	bus := fanout.NewBus(nc, cfg.Broker.Subjects.ItemUpdates, logger, registry)
	hub := realtime.NewHub(realtime.DefaultConfig(), gateway.NewAuthorizer(users), logger, registry)

	// Every replica subscribes; each rebroadcasts to its own clients.
	if err := bus.Subscribe(ctx, hub.Broadcast); err != nil {
		_ = hub.Close()
		cleanup()
		return nil, fmt.Errorf("subscribe to %s: %w", bus.Subject(), err)
	}

	router, err := gateway.NewRouter(gateway.Dependencies{
		Users:        users,
		Items:        items,
		Events:       bus,
		Realtime:     hub,
		Logger:       logger,
		Registry:     registry,
		MaxBodyBytes: cfg.Gateway.MaxRequestSize,
	})
	if err != nil {
		_ = hub.Close()
		cleanup()
		return nil, fmt.Errorf("create router: %w", err)
	}

	mux := http.NewServeMux()
	router.RegisterHandlers(mux)
	mux.Handle("GET /healthz", newHealthHandler(nc, logger))
	mux.Handle("GET /metrics", registry.Handler())

	return &gatewayParts{
		mux:      mux,
		hub:      hub,
		userCorr: userCorr,
		itemCorr: itemCorr,
	}, nil
}

// newHealthHandler reports broker connectivity and process uptime. A broker
// mid-reconnect is degraded, not unhealthy: the client buffers publishes
// across short reconnects, so the replica can still serve.
func newHealthHandler(nc *natsclient.Client, logger *slog.Logger) *health.Handler {
	startMs := timestamp.Now()

	h := health.NewHandler(appName, logger)
	h.RegisterFunc("broker", func() health.Status {
		status := nc.Status()
		switch {
		case nc.IsHealthy():
			return health.NewHealthy("broker", "connected")
		case status == natsclient.StatusReconnecting:
			return health.NewDegraded("broker", "reconnecting to broker")
		default:
			return health.NewUnhealthy("broker", "broker is "+status.String())
		}
	})
	h.RegisterFunc("process", func() health.Status {
		uptime := timestamp.Since(startMs).Round(time.Second)
		return health.NewHealthy("process", fmt.Sprintf("up %s", uptime)).
			WithMetrics(&health.Metrics{Uptime: uptime})
	})
	return h
}

func buildBrokerClient(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithConnectAttempts(cfg.Broker.ConnectAttempts),
		natsclient.WithConnectBackoff(cfg.Broker.ConnectBackoff.Std()),
		natsclient.WithMaxReconnects(cfg.Broker.MaxReconnects),
		natsclient.WithReconnectWait(cfg.Broker.ReconnectWait.Std()),
		natsclient.WithTLS(cfg.Broker.TLS),
	}
	if cfg.Broker.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Broker.Username, cfg.Broker.Password))
	}
	if cfg.Broker.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Broker.Token))
	}
	return natsclient.NewClient(cfg.Broker.URL, opts...)
}

func buildServer(cfg *config.Config, mux *http.ServeMux) (*http.Server, error) {
	srv := &http.Server{
		Addr:         cfg.Gateway.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.Gateway.ReadTimeout.Std(),
		WriteTimeout: cfg.Gateway.WriteTimeout.Std(),
	}

	// nil when TLS is disabled; the websocket upgrade clears the server's
	// deadlines on hijack, so the timeouts above do not cut push connections
	tlsConfig, err := tlsutil.LoadServerTLSConfig(cfg.Gateway.TLS)
	if err != nil {
		return nil, fmt.Errorf("load server TLS config: %w", err)
	}
	srv.TLSConfig = tlsConfig

	return srv, nil
}

// serveUntilSignal runs the server until it fails or the context is
// cancelled by a signal, then drains it within the shutdown timeout.
func serveUntilSignal(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if srv.TLSConfig != nil {
			slog.Info("gateway listening", "addr", srv.Addr, "tls", true)
			err = srv.ListenAndServeTLS("", "")
		} else {
			slog.Info("gateway listening", "addr", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("gateway shutdown complete")
	return nil
}
