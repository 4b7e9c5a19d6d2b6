package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/identity-field/sheetsync/pkg/audit"
	"github.com/identity-field/sheetsync/pkg/config"
	"github.com/identity-field/sheetsync/pkg/engine"
	"github.com/identity-field/sheetsync/pkg/jobs"
	"github.com/identity-field/sheetsync/pkg/smartsheet"
	"github.com/identity-field/sheetsync/pkg/state"
	"github.com/identity-field/sheetsync/pkg/updater"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Invalid configuration", zap.Error(err))
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	client := smartsheet.NewClient(cfg.SmartsheetBaseURL, cfg.SmartsheetToken, logger).
		WithPageSize(cfg.PageSize).
		WithRateLimit(cfg.RequestsPerSecond).
		WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout)

	var lastRun engine.LastRunStore
	if cfg.AzureConnectionString != "" {
		store, err := state.NewStore(cfg.AzureConnectionString, cfg.StateContainer, cfg.StateBlob, logger)
		if err != nil {
			logger.Warn("Last-run marker store unavailable, continuing without it", zap.Error(err))
		} else {
			lastRun = store
		}
	}

	var auditor *audit.Logger
	if cfg.AuditDSN != "" {
		var err error
		auditor, err = audit.Open(cfg.AuditDSN, logger)
		if err != nil {
			logger.Warn("Audit database unavailable, continuing without audit log", zap.Error(err))
		} else {
			defer auditor.Close()
		}
	}

	dests, err := jobs.ParseDestSheets(cfg.DestSheetsJSON)
	if err != nil {
		return err
	}

	scheduler := cron.New()
	if err := scheduleSyncJob(scheduler, cfg.FoundationSchedule, jobs.FoundationSpec(), client, lastRun, cfg.DryRunFoundation, logger); err != nil {
		return err
	}
	if err := scheduleSyncJob(scheduler, cfg.GroundImprovementSchedule, jobs.GroundImprovementSpec(), client, lastRun, cfg.DryRunGroundImprovement, logger); err != nil {
		return err
	}
	if err := scheduleSyncJob(scheduler, cfg.InsulationSchedule, jobs.InsulationSpec(), client, lastRun, cfg.DryRunInsulation, logger); err != nil {
		return err
	}

	missing := jobs.NewMissingCheckJob(client, dests, logger).WithDryRun(cfg.DryRunMissingCheck)
	if _, err := scheduler.AddFunc(cfg.MissingCheckSchedule, func() {
		if _, err := missing.Run(context.Background()); err != nil {
			logger.Error("Project-missing check failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	status := jobs.NewStatusUpdateJob(client, dests, logger).
		WithCSVLog(cfg.StatusCSVPath).
		WithDryRun(cfg.DryRunStatusUpdate)
	if _, err := scheduler.AddFunc(cfg.StatusUpdateSchedule, func() {
		if _, err := status.Run(context.Background()); err != nil {
			logger.Error("Status sync failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	departments, err := updater.ParseDepartmentSheets(cfg.DepartmentSheetsJSON)
	if err != nil {
		return err
	}
	handler := updater.NewHandler(client, auditor, logger).
		WithDepartmentSheets(departments).
		WithDryRun(cfg.DryRunUpdater)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Mount("/api", handler.Routes())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	scheduler.Start()
	logger.Info("Scheduler started", zap.Int("entries", len(scheduler.Entries())))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	// Let in-flight cron jobs finish before closing the HTTP listener.
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// scheduleSyncJob registers one reconciliation job with the cron scheduler.
func scheduleSyncJob(scheduler *cron.Cron, schedule string, spec engine.JobSpec, client *smartsheet.Client, lastRun engine.LastRunStore, dryRun bool, logger *zap.Logger) error {
	job, err := engine.NewSyncJob(spec, client, logger)
	if err != nil {
		return err
	}
	if lastRun != nil {
		job = job.WithState(lastRun)
	}
	job = job.WithDryRun(dryRun)

	_, err = scheduler.AddFunc(schedule, func() {
		if _, err := job.Run(context.Background()); err != nil {
			logger.Error("Sync job failed",
				zap.String("job", job.Name()),
				zap.Error(err))
		}
	})
	return err
}

// buildLogger constructs the zap logger from LOG_LEVEL and LOG_FORMAT.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
