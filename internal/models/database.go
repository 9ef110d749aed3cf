package models

import (
	"fmt"

	"github.com/sitesafe/hsekpi/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without touching the global handle.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table of the schema on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&DailySnapshot{},
		&WeeklyKpiReport{},
		&DeviationReport{},
		&TrainingSession{},
		&AwarenessSession{},
		&WorkPermit{},
		&Inspection{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSystemConfigs are the runtime settings seeded on first start.
var DefaultSystemConfigs = []SystemConfig{
	{Key: "log_retention_days", Value: "90", Type: "int", Group: "system", Label: "System Log Retention Days"},
	{Key: "permit_sweep_time", Value: "00:30", Type: "string", Group: "scheduler", Label: "Work Permit Expiry Sweep Time"},
	{Key: "backup_enabled", Value: "true", Type: "bool", Group: "scheduler", Label: "Enable Daily Backup"},
	{Key: "backup_time", Value: "02:00", Type: "string", Group: "scheduler", Label: "Daily Backup Time"},
	{Key: "log_cleanup_time", Value: "03:00", Type: "string", Group: "scheduler", Label: "System Log Cleanup Time"},
	{Key: "kpi_auto_recompute", Value: "true", Type: "bool", Group: "kpi", Label: "Recompute Weekly Report On Snapshot Changes"},
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData() error {
	return Seed(DB)
}

// Seed inserts the default system configs missing from db.
func Seed(db *gorm.DB) error {
	for _, cfg := range DefaultSystemConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
