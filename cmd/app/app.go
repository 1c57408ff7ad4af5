// Package main is the entry point for the currency converter service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"converterservice/internal/api"
	"converterservice/internal/cache"
	"converterservice/internal/config"
	"converterservice/internal/metrics"
	"converterservice/internal/provider"
	"converterservice/internal/service"
	"converterservice/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg            *config.Config
	logger         *zap.SugaredLogger
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	rdbCache       *redis.Client
	store          *cache.RedisStore
	rdbAsynq       *redis.Client
	asynqClient    *asynq.Client
	asynqServer    *asynq.Server
	asynqScheduler *asynq.Scheduler
	asynqMux       *asynq.ServeMux
	asynqmon       *asynqmon.HTTPHandler
	httpServer     *http.Server
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases Redis connections and the asynq client.
func (app *App) close() error {
	var errs []error
	if app.asynqmon != nil {
		if err := app.asynqmon.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynqmon close: %w", err))
		}
	}
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	app.rdbCache = redis.NewClient(&redis.Options{
		Addr: app.cfg.Redis.CacheAddr,
	})
	app.store = cache.NewRedisStore(app.rdbCache, app.cfg.Cache.KeyPrefix)

	// An unreachable cache is not fatal: conversions fall back to the ECB feed.
	if err := app.store.Ping(context.Background()); err != nil {
		app.logger.Warnw("Redis cache unreachable at startup", "addr", app.cfg.Redis.CacheAddr, "error", err)
	} else {
		app.logger.Infow("Connected to Redis cache", "addr", app.cfg.Redis.CacheAddr)
	}

	return nil
}

func (app *App) initServices() error {
	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr}

	app.rdbAsynq = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.AsynqAddr})
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: app.cfg.Worker.Concurrency,
			Logger:      app.logger,
		},
	)
	app.asynqScheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   app.logger,
	})
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.AsynqAddr)

	cachedPrimary, chain := newRateProviders(app.cfg, app.store, app.logger, app.metrics)
	converter := service.NewConverter(chain, app.logger, app.metrics)

	enqueuer := worker.NewAsynqEnqueuer(
		app.asynqClient,
		app.cfg.Worker.MaxRetry,
		time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
	)
	if app.cfg.Worker.Enabled {
		entryID, err := enqueuer.RegisterSchedule(app.asynqScheduler, app.cfg.Worker.RefreshCron)
		if err != nil {
			return fmt.Errorf("register refresh schedule %q: %w", app.cfg.Worker.RefreshCron, err)
		}
		app.logger.Infow("Rate refresh scheduled", "cron", app.cfg.Worker.RefreshCron, "entry_id", entryID)
	}

	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(worker.TaskTypeRefreshRates, worker.NewRefreshRatesHandler(cachedPrimary, app.logger))

	if app.cfg.Server.ServeAsynqmon {
		app.asynqmon = asynqmon.New(asynqmon.Options{
			RootPath:     "/monitoring",
			RedisConnOpt: redisOpt,
		})
	}

	// Without a worker nobody consumes refresh tasks, so the endpoint refuses them.
	var refresher api.RefreshEnqueuer
	if app.cfg.Worker.Enabled {
		refresher = enqueuer
	}

	app.initHTTP(converter, refresher)
	return nil
}

// newRateProviders builds the cache-backed Fixer provider and the chain that
// falls back from it to the uncached ECB feed.
func newRateProviders(cfg *config.Config, store cache.Store, logger *zap.SugaredLogger, m *metrics.Metrics) (*provider.CachedRatesProvider, *provider.FallbackChain) {
	fixer := provider.NewFixerProvider(cfg.Fixer.BaseURL, cfg.Fixer.AccessKey, cfg.Fixer.TimeoutSec, cfg.Fixer.RequestsPerMinute)
	cached := provider.NewCachedRatesProvider(fixer, store, cfg.Cache.Freshness(), logger, m)
	ecb := provider.NewECBProvider(cfg.ECB.URL, cfg.ECB.TimeoutSec)
	return cached, provider.NewFallbackChain(logger, m, cached, ecb)
}

// Run starts the HTTP server, Asynq worker and scheduler, blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if app.cfg.Worker.Enabled {
		g.Go(func() error {
			app.logger.Infow("Starting Asynq worker server")
			if err := app.asynqServer.Start(app.asynqMux); err != nil {
				return fmt.Errorf("asynq worker failed to start: %w", err)
			}
			if err := app.asynqScheduler.Start(); err != nil {
				return fmt.Errorf("asynq scheduler failed to start: %w", err)
			}

			<-ctx.Done()
			return nil
		})
	}

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server -> scheduler -> Asynq worker -> connections.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests, drain in-flight
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// 2. Stop scheduling and drain in-flight refresh tasks
	if app.cfg.Worker.Enabled {
		app.asynqScheduler.Shutdown()
		app.asynqServer.Shutdown()
	}

	// 3. Close connections (asynqmon, asynq client, Redis)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}
