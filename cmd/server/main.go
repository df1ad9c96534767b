/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rider grade server. Loads configuration,
  constructs the shared cache and override service once, and handles
  graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config, build the logger
  2. Open override storage (JSON files or SQLite)
  3. Build the delivery center client and cache
  4. Build the evaluator with the configured tier ladder
  5. Configure the HTTP router and start the server
  6. Watch the config file; contract rules are applied live

COMMAND-LINE FLAGS:
  -config  YAML config path (default: none, built-in defaults)
  -addr    Overrides server.addr

ENVIRONMENT:
  Secrets are read from the variables named in the config:
  BAEMIN_CENTER_ID, BAEMIN_COOKIE, GRADE_ADMIN_KEY by default.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (server.shutdown_timeout)
  3. Close storage
  4. Exit

SEE ALSO:
  - config/config.go: configuration schema
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/grade-engine/api"
	"github.com/warp/grade-engine/config"
	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/factory"
	"github.com/warp/grade-engine/generic"
	"github.com/warp/grade-engine/grade"
	"github.com/warp/grade-engine/store/jsonfile"
	"github.com/warp/grade-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config path")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Override storage
	joinStore, loginStore, closeStore, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()
	overrides := grade.NewOverrideService(
		generic.NewOverrideMap("join_overrides", joinStore, logger),
		generic.NewOverrideMap("login_overrides", loginStore, logger),
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := deliverycenter.NewMetrics(reg)

	// Delivery center
	loc, err := cfg.Evaluation.Location()
	if err != nil {
		return err
	}
	creds := deliverycenter.CookieJarFile{
		Path:           cfg.Source.CookieFile,
		FallbackCookie: cfg.Source.Cookie(),
	}
	client := deliverycenter.NewClient(deliverycenter.ClientConfig{
		BaseURL:   cfg.Source.BaseURL,
		CenterID:  cfg.Source.CenterID(),
		Origin:    cfg.Source.Origin,
		Referer:   cfg.Source.Referer,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout,
		Headers:   creds,
		Metrics:   metrics,
		Logger:    logger,
	})
	rules := cfg.Contract
	cache := deliverycenter.NewCache(client, deliverycenter.CacheConfig{
		RosterTTL:     cfg.Cache.RosterTTL,
		CompletionTTL: cfg.Cache.CompletionTTL,
		PageSize:      cfg.Source.PageSize,
		MaxPages:      cfg.Source.MaxPages,
		Location:      loc,
		Rules:         &rules,
		Metrics:       metrics,
		Logger:        logger,
	})

	// Evaluator
	ladder := grade.DefaultLadder()
	if cfg.Evaluation.LadderFile != "" {
		ladder, err = factory.NewLadderFactory().LoadFile(cfg.Evaluation.LadderFile)
		if err != nil {
			return err
		}
	}
	evaluator := grade.NewEvaluator(cache, overrides, grade.EvaluatorConfig{Ladder: ladder, Logger: logger})

	// Handler and router
	handler := api.NewHandler(evaluator, overrides, cache, logger)
	handler.CookieLoaded = creds.Available
	handler.CenterIDLoaded = func() bool { return cfg.Source.CenterID() != "" }

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gate:           api.APIKeyGate(cfg.Server.AdminHeader, cfg.Server.AdminKey()),
		Limiter:        api.NewRateLimiter(cfg.Server.RateLimit.Window, cfg.Server.RateLimit.MaxRequests, nil),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger,
	})
	if cfg.Server.AdminKey() == "" {
		logger.Warn("no admin key configured, admin routes are disabled", "env", cfg.Server.AdminKeyEnv)
	}

	// Live contract rules
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
				cache.SetContractRules(next.Contract)
			})
			if err != nil {
				logger.Error("config watcher stopped", "err", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStorage returns the join and login override stores.
func openStorage(cfg config.StorageConfig) (join, login generic.MapStore, closeFn func(), err error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open override database: %w", err)
		}
		return db.Map("join_overrides"), db.Map("login_overrides"), func() { db.Close() }, nil
	default:
		return jsonfile.New(cfg.JoinOverridesPath), jsonfile.New(cfg.LoginOverridesPath), func() {}, nil
	}
}
