package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/school-scheduler/internal/application"
	"github.com/example/school-scheduler/internal/config"
	httptransport "github.com/example/school-scheduler/internal/http"
	"github.com/example/school-scheduler/internal/jobs"
	"github.com/example/school-scheduler/internal/logging"
	"github.com/example/school-scheduler/internal/persistence/sqlite"
	"github.com/example/school-scheduler/internal/persistence/sqlite/migration"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "scheduler:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("scheduler", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("SCHEDULER_CONFIG"), "path to a YAML configuration file")
	envFile := flags.String("env-file", ".env", "path to a dotenv file; missing files are ignored")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.New(stdout, cfg.LogLevel, cfg.LogFormat)

	app, err := newApp(ctx, cfg, logger, time.Now)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	return app.Serve(ctx, fmt.Sprintf(":%d", cfg.HTTPPort))
}

// app wires storage, services, the audit job and the HTTP surface.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	audit   *jobs.AuditJob
	handler http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, now func() time.Time) (*app, error) {
	storage, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	events := newEventRepositoryAdapter(storage.Events)
	directory := newDirectoryAdapter(storage.Directory)

	scheduleService := application.NewScheduleServiceWithLogger(events, directory, uuid.NewString, now, logger,
		application.WithLookAhead(cfg.ConflictLookAhead),
	)
	directoryService := application.NewDirectoryServiceWithLogger(directory, uuid.NewString, now, logger)

	a := &app{cfg: cfg, logger: logger, storage: storage}

	if cfg.AuditSchedule != config.AuditDisabled {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("load audit time zone: %w", err)
		}
		auditor := application.NewRuleAuditor(events, now, logger)
		a.audit, err = jobs.NewAuditJob(auditor, cfg.AuditSchedule, loc, time.Minute, logger)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Events:     httptransport.NewEventHandler(scheduleService, directoryService, logger),
		Calendar:   httptransport.NewCalendarHandler(scheduleService, directoryService, now, logger),
		Directory:  httptransport.NewDirectoryHandler(directoryService, logger),
		Health:     storage.Ping,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

// Serve listens on addr until ctx is cancelled, then drains requests and
// waits for a running audit.
func (a *app) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if a.audit != nil {
		a.audit.Start(ctx)
	} else {
		a.logger.Info("rule audit disabled")
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("scheduler API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case err = <-serveErr:
		if err != nil {
			a.logger.Error("server encountered error", "error", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down", "timeout", a.cfg.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		a.logger.Error("failed to shutdown server", "error", serr)
	}
	if a.audit != nil {
		select {
		case <-a.audit.Stop().Done():
		case <-shutdownCtx.Done():
			a.logger.Warn("rule audit still running at shutdown")
		}
	}
	return err
}

func (a *app) Close() error {
	return a.storage.Close()
}
