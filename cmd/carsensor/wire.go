package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ericfisherdev/carsensor/internal/adapter/driven/carsapi"
	fileadapter "github.com/ericfisherdev/carsensor/internal/adapter/driven/file"
	sqliteadapter "github.com/ericfisherdev/carsensor/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/carsensor/internal/application"
	"github.com/ericfisherdev/carsensor/internal/config"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
	"github.com/ericfisherdev/carsensor/internal/metrics"
)

// appEnv holds the wired components for one command invocation.
type appEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	core     *application.Core
	registry *prometheus.Registry
	closers  []func() error
}

// Close releases resources in reverse order of acquisition.
func (rt *appEnv) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Error("error during shutdown", "error", err)
		}
	}
}

// parseLevel maps a log level name to its slog level, defaulting to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger builds the process logger. A non-empty logFile takes precedence
// over out; the terminal UI passes io.Discard as out so logs never reach the
// screen.
func newLogger(level slog.Level, logFile string, out io.Writer) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f.Close
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closer, nil
}

// wire loads configuration and builds the application core. logOut receives
// logs unless a log file is configured.
func wire(ctx context.Context, flags *globalFlags, logOut io.Writer) (*appEnv, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	levelName := cfg.LogLevel
	if flags.logLevel != "" {
		levelName = flags.logLevel
	}
	logger, closeLog, err := newLogger(parseLevel(levelName), cfg.LogFile, logOut)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	rt := &appEnv{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	store, err := openCredentialStore(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(rt.registry)

	session := application.NewSessionStore(store, logger)
	client, err := carsapi.NewClient(cfg.APIURL, session, carsapi.Options{
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.core = application.NewCore(session, client, cfg.PerPage, recorder, logger)
	logger.Debug("wired",
		"api_url", cfg.APIURL,
		"per_page", cfg.PerPage,
		"credential_backend", cfg.CredentialBackend,
	)
	return rt, nil
}

// openCredentialStore opens the configured credential backend.
func openCredentialStore(ctx context.Context, rt *appEnv) (driven.CredentialStore, error) {
	switch rt.cfg.CredentialBackend {
	case config.BackendFile:
		if rt.cfg.SecretKey != nil {
			rt.logger.Warn("CARSENSOR_SECRET_KEY is ignored by the file credential backend")
		}
		return fileadapter.NewCredentialFile(rt.cfg.CredentialFile)

	default:
		// Dual reader/writer with WAL mode.
		db, err := sqliteadapter.NewDB(ctx, rt.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)

		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return nil, err
		}
		return sqliteadapter.NewCredentialRepo(db, rt.cfg.SecretKey)
	}
}
