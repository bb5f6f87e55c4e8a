// Command conceptdeps runs the concept dependency server.
//
// It serves a read-only HTTP API over a payroll-formula concept corpus:
// per-concept formula/condition parsing, forward and reverse dependency
// lookups, range listings, and payroll aggregation.
//
// Required environment variables (unless database.url is set in the config
// file):
//
//	CONCEPTDEPS_DATABASE_URL  - Postgres connection string
//
// Optional environment variables:
//
//	CONCEPTDEPS_HOST                     - listen host (default: 0.0.0.0)
//	CONCEPTDEPS_PORT                     - listen port (default: 8080)
//	CONCEPTDEPS_CORS_ALLOWED_ORIGINS     - CORS allow-list (default: *)
//	CONCEPTDEPS_LOG_LEVEL                - debug, info, warn, error (default: info)
//	CONCEPTDEPS_CACHE_EXPIRATION_MINUTES - index rebuild interval (default: 60)
//	CONCEPTDEPS_CONFIG                   - path to a conceptdeps.toml file
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/upcn/conceptdeps/internal/conceptservice"
	"github.com/upcn/conceptdeps/internal/config"
	"github.com/upcn/conceptdeps/internal/corpus"
	"github.com/upcn/conceptdeps/internal/depindex"
	"github.com/upcn/conceptdeps/internal/formula"
	"github.com/upcn/conceptdeps/internal/httpapi"
	"github.com/upcn/conceptdeps/internal/patterns"
	"github.com/upcn/conceptdeps/internal/payroll"
	"github.com/upcn/conceptdeps/internal/scheduler"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "conceptdeps: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a conceptdeps.toml file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	logger.Info("starting conceptdeps", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	conceptCorpus := corpus.NewPostgres(db, logger)
	aggregator := payroll.NewPostgres(db, logger)

	registry := patterns.New()
	parser := formula.New(registry)

	index := depindex.New(conceptCorpus, parser, logger)

	logger.Info("building initial dependency index")
	if err := index.Build(ctx); err != nil {
		return fmt.Errorf("building initial dependency index: %w", err)
	}

	sched := scheduler.NewScheduler(logger)
	sched.AddJob(index, time.Duration(cfg.Cache.ExpirationMinutes)*time.Minute)
	sched.Start(ctx)
	defer sched.Stop()

	service := conceptservice.New(conceptCorpus, parser, index)
	server := httpapi.New(service, aggregator, cfg.CORS.AllowedOrigins, logger)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}

	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
