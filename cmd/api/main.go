package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crucial707/hci-scheduler/internal/config"
	"github.com/crucial707/hci-scheduler/internal/db"
	"github.com/crucial707/hci-scheduler/internal/logging"
	"github.com/crucial707/hci-scheduler/internal/repo"
	"github.com/crucial707/hci-scheduler/internal/scanwork"
	"github.com/crucial707/hci-scheduler/internal/scheduler"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, logCloser, err := logging.Setup(logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("scheduler exited", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, schedRepo, runRepo, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	a, err := newApp(cfg, logger, database, schedRepo, runRepo,
		(&scanwork.Nmap{Path: cfg.NmapPath, Targets: cfg.ScanTargets}).Work)
	if err != nil {
		return err
	}

	n, err := a.ledger.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover runs: %w", err)
	}
	if n > 0 {
		logger.Warn("marked orphaned runs as failed", "count", n)
	}

	if err := a.daemon.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver, "tls", cfg.TLSEnabled())
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, a.daemon.Stop(sctx))
		errs = append(errs, srv.Shutdown(sctx))
		a.runner.Shutdown()
		return errors.Join(errs...)
	})
	return g.Wait()
}

// openStore connects the configured store, running migrations first for SQL drivers.
func openStore(cfg config.Config, logger *slog.Logger) (*sql.DB, scheduler.ScheduleRepository, scheduler.RunRepository, error) {
	switch cfg.StoreDriver {
	case db.DriverPostgres:
		url := db.PostgresURL(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)
		if err := db.Migrate(db.DriverPostgres, url); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass,
			db.PoolOptions{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to postgres", "host", cfg.DBHost, "db", cfg.DBName)
		return database, repo.NewScheduleRepo(database), repo.NewScanRunRepo(database), nil

	case db.DriverSQLite:
		if err := db.EnsureSQLiteDir(cfg.SQLitePath); err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(db.DriverSQLite, db.SQLiteURL(cfg.SQLitePath)); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		database, err := db.ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect sqlite: %w", err)
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		return database, repo.NewScheduleRepo(database), repo.NewScanRunRepo(database), nil

	case db.DriverMemory:
		logger.Warn("using in-memory store; schedules and runs are lost on restart")
		return nil, repo.NewMemoryScheduleRepo(), repo.NewMemoryScanRunRepo(), nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// newApp wires the scheduler components over the given repositories.
func newApp(cfg config.Config, logger *slog.Logger, database *sql.DB,
	schedules scheduler.ScheduleRepository, runs scheduler.RunRepository, work scheduler.ScanWork) (*app, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := scheduler.NewStore(schedules, nil)
	ledger := scheduler.NewLedger(runs, nil, logger)
	runner := scheduler.NewRunner(ledger, work, scheduler.RunnerOptions{Timeout: cfg.RunTimeout, Logger: logger})
	daemon, err := scheduler.NewDaemon(store, runner, scheduler.DaemonOptions{TickSpec: cfg.TickSpec, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &app{
		db:       database,
		store:    store,
		ledger:   ledger,
		runner:   runner,
		daemon:   daemon,
		reporter: scheduler.NewReporter(store, ledger, nil, logger),
		logger:   logger,
	}, nil
}
