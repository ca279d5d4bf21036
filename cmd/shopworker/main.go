// Package main implements the ShopStream reference backend worker. It
// consumes one or both request queues, runs the in-memory user and item
// stores against them, and publishes replies to each request's reply inbox.
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
	"sync"
	"syscall"
	"time"

	"github.com/c360/shopstream/config"
	"github.com/c360/shopstream/health"
	"github.com/c360/shopstream/metric"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/worker"
	"github.com/c360/shopstream/worker/backends"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "shopworker"
)

// Backend selections accepted by --backend
const (
	backendUser = "user"
	backendItem = "item"
	backendAll  = "all"
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
		slog.Error("worker failed", "error", err, "exit_code", 1)
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

	slog.Info("starting worker",
		"version", Version,
		"build_time", BuildTime,
		"backend", cliCfg.Backend,
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

	workers, err := buildWorkers(cliCfg.Backend, cfg, nc, logger, registry)
	if err != nil {
		return err
	}

	monitor := health.NewMonitor()

	stopOps := startOpsServer(cliCfg.ListenAddr, nc, monitor, logger, registry)
	defer stopOps()

	return runWorkers(signalCtx, workers, monitor)
}

// buildWorkers creates the selected backend workers with their command
// handlers registered. Both backends share the work-queue stream; each
// consumes only its own queue.
func buildWorkers(
	selection string,
	cfg *config.Config,
	nc *natsclient.Client,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) ([]*worker.Worker, error) {
	subjects := []string{cfg.Broker.Subjects.UserRequests, cfg.Broker.Subjects.ItemRequests}

	var workers []*worker.Worker

	if selection == backendUser || selection == backendAll {
		w, err := worker.New(nc, worker.Config{
			Stream:   cfg.Broker.Subjects.Stream,
			Subjects: subjects,
			Queue:    cfg.Broker.Subjects.UserRequests,
			Durable:  "user-workers",
		}, logger, registry)
		if err != nil {
			return nil, fmt.Errorf("create user worker: %w", err)
		}

		users := backends.NewUserStore()
		w.Handle("signup", users.Signup)
		w.Handle("login", users.Login)
		w.Handle("verify_token", users.VerifyToken)
		workers = append(workers, w)
	}

	if selection == backendItem || selection == backendAll {
		w, err := worker.New(nc, worker.Config{
			Stream:   cfg.Broker.Subjects.Stream,
			Subjects: subjects,
			Queue:    cfg.Broker.Subjects.ItemRequests,
			Durable:  "item-workers",
		}, logger, registry)
		if err != nil {
			return nil, fmt.Errorf("create item worker: %w", err)
		}

		items := backends.NewItemStore()
		w.Handle("create_item", items.CreateItem)
		w.Handle("get_item", items.GetItem)
		w.Handle("list_items", items.ListItems)
		w.Handle("update_item", items.UpdateItem)
		w.Handle("delete_item", items.DeleteItem)
		workers = append(workers, w)
	}

	return workers, nil
}

// runWorkers runs every worker until the context is cancelled or one of
// them fails, then waits for the rest to stop. Each worker reports its
// state to the monitor so the ops endpoint shows per-queue health.
func runWorkers(ctx context.Context, workers []*worker.Worker, monitor *health.Monitor) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(workers))
	var wg sync.WaitGroup

	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			monitor.UpdateHealthy(w.Queue(), "consuming")
			if err := w.Run(runCtx); err != nil {
				monitor.Update(w.Queue(), health.FromError(w.Queue(), err))
				errCh <- fmt.Errorf("worker %s: %w", w.Queue(), err)
				cancel()
				return
			}
			monitor.Remove(w.Queue())
		}(w)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}

	slog.Info("worker shutdown complete")
	return nil
}

// startOpsServer exposes /healthz and /metrics on a separate listener when
// an address is configured. Returns a stop function; a no-op when disabled.
func startOpsServer(addr string, nc *natsclient.Client, monitor *health.Monitor, logger *slog.Logger, registry *metric.MetricsRegistry) func() {
	if addr == "" {
		return func() {}
	}

	healthHandler := health.NewHandler(appName, logger)
	healthHandler.RegisterFunc("broker", func() health.Status {
		return health.FromError("broker", brokerError(nc))
	})
	healthHandler.RegisterFunc("workers", func() health.Status {
		return monitor.AggregateHealth("workers")
	})

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler)
	mux.Handle("GET /metrics", registry.Handler())

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("ops endpoints listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func brokerError(nc *natsclient.Client) error {
	if nc.IsHealthy() {
		return nil
	}
	return fmt.Errorf("broker is %s", nc.Status())
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
