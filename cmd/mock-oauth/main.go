// Command mock-oauth runs the mock OAuth 2.0 authorization server.
//
// Configuration comes from an optional YAML file (-config or
// MOCK_OAUTH_CONFIG) and MOCK_OAUTH_* environment variables, which may be
// placed in a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	oauth "github.com/giantswarm/mock-oauth"
	"github.com/giantswarm/mock-oauth/chaos"
	"github.com/giantswarm/mock-oauth/instrumentation"
	"github.com/giantswarm/mock-oauth/security"
	"github.com/giantswarm/mock-oauth/server"
	"github.com/giantswarm/mock-oauth/storage/memory"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const envConfigPath = "MOCK_OAUTH_CONFIG"

func main() {
	// Load environment variables from .env if present.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv(envConfigPath), "path to a YAML config file")
	flag.Parse()

	cfg, err := oauth.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel() // validated by LoadConfig
	logger, closer, err := newLogger(cfg.Log, level, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

// run wires the server together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *oauth.Config, logger *slog.Logger) error {
	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logStartup(logger, cfg)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

// app holds the wired components and their shutdown hooks.
type app struct {
	router      chi.Router
	store       *memory.Store
	rateLimiter *security.RateLimiter
	inst        *instrumentation.Instrumentation
}

func newApp(cfg *oauth.Config, logger *slog.Logger) (*app, error) {
	inst, err := instrumentation.New(cfg.InstrumentationConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
	}

	store := memory.NewWithInterval(cfg.Storage.CleanupInterval)
	store.SetLogger(logger)
	store.SetInstrumentation(inst)

	a := &app{store: store, inst: inst}

	clients, err := cfg.NewRegistry(logger)
	if err != nil {
		a.close(logger)
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}

	srv, err := server.New(clients, store, store, cfg.ServerConfig(), logger)
	if err != nil {
		a.close(logger)
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	srv.SetInstrumentation(inst)

	auditor := security.NewAuditor(logger, cfg.Audit)
	auditor.SetRecorder(inst.Metrics())
	srv.SetAuditor(auditor)

	handler := oauth.NewHandler(srv, chaos.NewRandom(cfg.Chaos.FaultProbability), logger)
	if cfg.RateLimit.Rate > 0 {
		a.rateLimiter = security.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger)
		handler.SetRateLimiter(a.rateLimiter)
		logger.Info("Rate limiting enabled",
			"requests_per_second", cfg.RateLimit.Rate,
			"burst", cfg.RateLimit.Burst)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.RequestIDMiddleware)
	handler.Register(r)
	if cfg.Instrumentation.Metrics == instrumentation.ExporterPrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	a.router = r

	return a, nil
}

func (a *app) close(logger *slog.Logger) {
	a.store.Stop()
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.inst.Shutdown(ctx); err != nil {
		logger.Error("Instrumentation shutdown error", "error", err)
	}
}

func logStartup(logger *slog.Logger, cfg *oauth.Config) {
	logger.Info(fmt.Sprintf("Mock OAuth 2.0 server running on %s", cfg.Issuer),
		"addr", cfg.Address,
		"version", version,
		"fault_probability", cfg.Chaos.FaultProbability)
	logger.Info("Available endpoints:")
	for _, endpoint := range []string{
		"GET  /oauth/authorize",
		"POST /oauth/token",
		"POST /oauth/refresh",
		"GET  /oauth/userinfo",
		"GET  /health",
	} {
		logger.Info("  " + endpoint)
	}
	if cfg.Instrumentation.Metrics == instrumentation.ExporterPrometheus {
		logger.Info("  GET  /metrics")
	}
}
