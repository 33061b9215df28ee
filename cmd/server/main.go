package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/fairshares/internal/config"
	"github.com/aristath/fairshares/internal/database"
	"github.com/aristath/fairshares/internal/modules/results"
	"github.com/aristath/fairshares/internal/modules/units"
	"github.com/aristath/fairshares/internal/reliability"
	"github.com/aristath/fairshares/internal/scheduler"
	"github.com/aristath/fairshares/internal/server"
	"github.com/aristath/fairshares/internal/services"
	"github.com/aristath/fairshares/pkg/logger"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Msg("Starting fairshares server")

	// Results database
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath("results"),
		Profile: database.ProfileStandard,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer db.Close()

	repo := results.NewRepository(db.Conn(), log)
	if err := repo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results schema")
	}

	// Core services
	registry := units.NewRegistry()
	allocator := services.NewAllocatorService(repo, registry, services.AllocatorDefaults{
		HistoricalResponsibilityYear: cfg.HistoricalResponsibilityYear,
		MaxConvergenceSpeed:          cfg.MaxConvergenceSpeed,
		MaxGiniAdjustment:            cfg.MaxGiniAdjustment,
	}, log)

	// Background jobs
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if cfg.SweepEnabled {
		sweep := scheduler.NewRecurringSweepJob(scheduler.RecurringSweepConfig{
			Repo:      repo,
			Allocator: allocator,
			Log:       log,
		})
		if err := sched.AddJob(cfg.SweepSchedule, sweep); err != nil {
			log.Fatal().Err(err).Msg("Failed to register recurring sweep job")
		}
	}

	if cfg.BackupEnabled {
		backup := reliability.NewBackupService(db, cfg.BackupDir, log)
		if err := sched.AddJob(cfg.BackupSchedule, reliability.NewBackupJob(backup)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}
	if err := sched.AddJob(cfg.MaintenanceSchedule, reliability.NewMaintenanceJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DB:        db,
		Config:    cfg,
		Allocator: allocator,
		Repo:      repo,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
