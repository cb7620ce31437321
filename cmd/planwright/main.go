package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	pwhttp "github.com/planwright/planwright/internal/adapter/http"
	"github.com/planwright/planwright/internal/adapter/jsonfile"
	"github.com/planwright/planwright/internal/adapter/natsbridge"
	pwotel "github.com/planwright/planwright/internal/adapter/otel"
	"github.com/planwright/planwright/internal/adapter/postgres"
	"github.com/planwright/planwright/internal/adapter/ristretto"
	"github.com/planwright/planwright/internal/adapter/ws"
	"github.com/planwright/planwright/internal/bus"
	"github.com/planwright/planwright/internal/config"
	"github.com/planwright/planwright/internal/domain/task"
	"github.com/planwright/planwright/internal/executor"
	"github.com/planwright/planwright/internal/logger"
	"github.com/planwright/planwright/internal/port/snapshot"
	"github.com/planwright/planwright/internal/service"
)

// defaultHandle is the workflow driven by the built-in executor.
const defaultHandle = "default"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Telemetry ---

	var (
		work        executor.WorkFunc = shellWork
		middlewares []func(http.Handler) http.Handler
		metrics     *pwotel.Metrics
	)
	if cfg.Telemetry.Enabled {
		shutdown, err := pwotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("telemetry shutdown", "error", err)
			}
		}()

		metrics, err = pwotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("telemetry metrics: %w", err)
		}
		work = pwotel.TraceWork(metrics, shellWork)
		middlewares = append(middlewares, pwotel.HTTPMiddleware(cfg.Logging.Service))
	}

	// --- Infrastructure ---

	cacheAdapter, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cacheAdapter.Close()

	storeFactory, closeStorage, err := buildStoreFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStorage()

	// --- Event bus and listeners ---
	// All subscriptions happen here, explicitly; nothing registers itself
	// as an import side effect.

	eventBus := bus.New()
	hub := ws.NewHub()
	for _, t := range []bus.Type{
		bus.TypePlanCreated, bus.TypePlanCompleted, bus.TypePlanArchived, bus.TypePlanDeleted,
		bus.TypeTaskAdded, bus.TypeTaskRequeued, bus.TypeTaskStarted,
		bus.TypeTaskCompleted, bus.TypeTaskBlocked, bus.TypeTaskCancelled,
	} {
		eventBus.Subscribe(t, hub.Listener())
	}

	if cfg.NATS.Enabled {
		bridge, err := natsbridge.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats bridge: %w", err)
		}
		defer bridge.Close()
		bridge.SubscribeAll(eventBus)
	}

	// --- Services ---

	registry := service.NewRegistry(storeFactory, func(ctx context.Context, store snapshot.Store) (*service.Manager, error) {
		return service.NewManager(ctx, store, eventBus, service.Options{
			Cache:            cacheAdapter,
			HistoryRetention: cfg.Storage.HistoryRetention,
		})
	})
	defer func() {
		if err := registry.Close(); err != nil {
			slog.Warn("registry close", "error", err)
		}
	}()

	mgr, err := registry.Open(ctx, defaultHandle)
	if err != nil {
		return fmt.Errorf("open default workflow: %w", err)
	}

	exec := executor.New(mgr, work, executor.Config{
		AutoSkipBlocked: cfg.Executor.AutoSkipBlocked,
		PauseOnError:    cfg.Executor.PauseOnError,
		InterTaskDelay:  cfg.Executor.InterTaskDelay,
		PollInterval:    cfg.Executor.PollInterval,
	})
	if metrics != nil {
		exec.OnBlocked(func(task.Task, []string) {
			metrics.TasksSkipped.Add(ctx, 1)
		})
	}
	if err := exec.Start(); err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	defer func() {
		if err := exec.Stop(cfg.Executor.StopTimeout); err != nil {
			slog.Warn("executor stop", "error", err)
		}
	}()

	// --- HTTP ---

	handlers := &pwhttp.Handlers{
		Registry:    registry,
		Executor:    exec,
		Hub:         hub,
		StopTimeout: cfg.Executor.StopTimeout,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           pwhttp.NewRouter(handlers, middlewares...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStoreFactory selects the snapshot backend from config.
func buildStoreFactory(ctx context.Context, cfg *config.Config) (service.StoreFactory, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		factory := func(handle string) (snapshot.Store, error) {
			return postgres.NewStore(pool, handle), nil
		}
		return factory, pool.Close, nil

	case "jsonfile":
		factory := func(handle string) (snapshot.Store, error) {
			return jsonfile.New(filepath.Join(cfg.Storage.Dir, handle+".json"))
		}
		return factory, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
