package main

import (
	"github.com/sitesafe/hsekpi/internal/config"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/internal/utils"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	holidays  *services.HolidayService
	snapshots *services.DailySnapshotService
	weekly    *services.WeeklyKpiService
	deviation *services.DeviationService
	scheduler *services.Scheduler
	taskQueue services.TaskQueue
	worker    *services.Worker
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	// Initialize system logger
	services.InitSystemLogger(db)

	collector := services.NewCollector(db)
	holidays := services.NewHolidayService(cfg.KPI.Country)
	weekly := services.NewWeeklyKpiService(db, collector, holidays)
	process := services.RecomputeProcessor(weekly, services.NewSystemConfigService(db))

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(process)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if taskQueue.IsAsync() {
		if worker = services.NewWorker(&cfg.Redis); worker != nil {
			worker.SetProcessor(process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start recompute worker")
				worker = nil
			}
		}
	}

	// Daily jobs: permit expiry, backup, log cleanup
	scheduler := services.NewScheduler(db, cfg.Backup)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return &appServices{
		cfg:       cfg,
		db:        db,
		holidays:  holidays,
		snapshots: services.NewDailySnapshotService(db, collector, taskQueue),
		weekly:    weekly,
		deviation: services.NewDeviationService(db, taskQueue),
		scheduler: scheduler,
		taskQueue: taskQueue,
		worker:    worker,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
