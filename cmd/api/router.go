package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/hci-scheduler/internal/config"
	"github.com/crucial707/hci-scheduler/internal/handlers"
	"github.com/crucial707/hci-scheduler/internal/middleware"
	"github.com/crucial707/hci-scheduler/internal/scheduler"
)

// app holds the wired scheduler components. db is nil with the memory store.
type app struct {
	db       *sql.DB
	store    *scheduler.Store
	ledger   *scheduler.Ledger
	runner   *scheduler.Runner
	daemon   *scheduler.Daemon
	reporter *scheduler.Reporter
	logger   *slog.Logger
}

func newRouter(a *app, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.RequestLog(a.logger))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSEnabled()))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if a.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.db.PingContext(ctx); err != nil {
				a.logger.Warn("ready: database ping failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	schedules := &handlers.ScheduleHandler{Store: a.store}
	runs := &handlers.RunHandler{Runner: a.runner, Ledger: a.ledger}
	status := &handlers.StatusHandler{Reporter: a.reporter, Daemon: a.daemon}
	runNowLimiter := middleware.RunNowRateLimiter(cfg.RunNowPerMinute)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))
		r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

		r.Get("/status", status.GetStatus)

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", schedules.ListSchedules)
			r.Post("/", schedules.CreateSchedule)
			r.Get("/{id}", schedules.GetSchedule)
			r.Delete("/{id}", schedules.DeleteSchedule)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runs.ListRuns)
			r.With(runNowLimiter.Middleware).Post("/", runs.TriggerRun)
			r.Get("/{id}", runs.GetRun)
			r.Get("/{id}/logs", runs.GetRunLogs)
			r.Post("/{id}/cancel", runs.CancelRun)
		})
	})
	return r
}
