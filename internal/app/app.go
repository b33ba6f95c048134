// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the advisory server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"agrohub/config"
	"agrohub/internal/advisor"
	"agrohub/internal/cache"
	"agrohub/internal/core"
	"agrohub/internal/httpclient"
	"agrohub/internal/observability"
	"agrohub/internal/pkg/llmclient"
	"agrohub/internal/providers/gemini"
	"agrohub/internal/quota"
	"agrohub/internal/retry"
	"agrohub/internal/server"
	"agrohub/internal/storage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config   *config.Config
	cache    *cache.Result
	guard    *quota.Guard
	executor *retry.Executor
	advisor  *advisor.Service
	server   *server.Server
	logger   *slog.Logger

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration
	AppConfig *config.Config

	// Generator overrides the Gemini provider. Optional, used by tests.
	Generator core.Generator

	// Hooks overrides the metrics hooks. When nil, Prometheus hooks are
	// installed if metrics are enabled.
	Hooks *observability.Hooks

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// RetryOptions are appended to the executor options. Optional, used by tests.
	RetryOptions []retry.Option
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hooks := cfg.Hooks
	if hooks == nil && appCfg.Metrics.Enabled {
		hooks = observability.NewPrometheusHooks()
	}

	app := &App{
		config: appCfg,
		logger: logger,
	}

	cacheResult, err := cache.New(ctx, cacheConfig(appCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize location cache: %w", err)
	}
	app.cache = cacheResult

	app.guard = quota.NewGuard(quota.WithCooldown(appCfg.Resilience.QuotaCooldown))

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = appCfg.Resilience.MaxRetries
	retryCfg.InitialDelay = appCfg.Resilience.InitialDelay
	retryOpts := append([]retry.Option{retry.WithHooks(hooks), retry.WithLogger(logger)}, cfg.RetryOptions...)
	app.executor = retry.NewExecutor(retryCfg, app.guard, retryOpts...)

	generator := cfg.Generator
	if generator == nil {
		httpCfg := httpclient.DefaultConfig(appCfg.Gemini.Timeout)
		generator = gemini.New(appCfg.Gemini.APIKey, gemini.Options{
			BaseURL:    appCfg.Gemini.BaseURL,
			HTTPClient: httpclient.NewHTTPClient(&httpCfg),
			Config:     llmclient.Config{Hooks: hooks},
		})
	}

	app.advisor = advisor.New(generator, app.executor, cacheResult.Store, advisor.Config{
		Model:          appCfg.Gemini.Model,
		CacheNamespace: appCfg.Cache.Namespace,
	}, advisor.WithHooks(hooks), advisor.WithLogger(logger))

	app.logStartupInfo()

	app.server = server.New(app.advisor, app.guard, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		Logger:          logger,
	})

	return app, nil
}

func cacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Type:      cfg.Cache.Type,
		LocalPath: cfg.Cache.Local.Path,
		Redis: cache.RedisConfig{
			URL:    cfg.Cache.Redis.URL,
			Prefix: cfg.Cache.Redis.Prefix,
		},
		Storage: storage.Config{
			Type:       cfg.Storage.Type,
			SQLite:     storage.SQLiteConfig{Path: cfg.Storage.SQLite.Path},
			PostgreSQL: storage.PostgreSQLConfig{URL: cfg.Storage.PostgreSQL.URL, MaxConns: cfg.Storage.PostgreSQL.MaxConns},
			MongoDB:    storage.MongoDBConfig{URL: cfg.Storage.MongoDB.URL, Database: cfg.Storage.MongoDB.Database},
		},
	}
}

// Advisor returns the resolver service.
func (a *App) Advisor() *advisor.Service {
	return a.advisor
}

// Guard returns the shared quota guard.
func (a *App) Guard() *quota.Guard {
	return a.guard
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	a.logger.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			a.logger.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first, then the location cache and its storage.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	a.logger.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		a.logger.Warn("AGROHUB_MASTER_KEY not set, API is unauthenticated")
	} else {
		a.logger.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Gemini.APIKey == "" {
		a.logger.Warn("GEMINI_API_KEY not set, every resolver will serve fallbacks")
	}

	if cfg.Metrics.Enabled {
		a.logger.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		a.logger.Info("prometheus metrics disabled")
	}

	attrs := []any{"type", cfg.Cache.Type, "namespace", cfg.Cache.Namespace}
	if cfg.Cache.Type == cache.TypeStorage {
		attrs = append(attrs, "storage", cfg.Storage.Type)
	}
	a.logger.Info("location cache configured", attrs...)

	a.logger.Info("resilience configured",
		"model", cfg.Gemini.Model,
		"max_retries", cfg.Resilience.MaxRetries,
		"initial_delay", cfg.Resilience.InitialDelay,
		"quota_cooldown", cfg.Resilience.QuotaCooldown,
	)
}
