package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sitesafe/hsekpi/internal/config"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scheduled job names, also used as scheduler lock names.
const (
	JobPermitExpiry = "permit_expiry"
	JobBackup       = "backup"
	JobLogCleanup   = "log_cleanup"
)

const backupPrefix = "hsekpi-backup-"

// Scheduler runs the daily maintenance jobs. Each run is claimed through a
// scheduler_locks row keyed by job and date, so several instances, or a
// restart on the same day, run every job at most once a day.
type Scheduler struct {
	db         *gorm.DB
	configs    *SystemConfigService
	logs       *SystemLogService
	backup     config.BackupConfig
	instanceID string
	cron       *cron.Cron
	now        func() time.Time
}

func NewScheduler(db *gorm.DB, backup config.BackupConfig) *Scheduler {
	return &Scheduler{
		db:         db,
		configs:    NewSystemConfigService(db),
		logs:       NewSystemLogService(db),
		backup:     backup,
		instanceID: uuid.NewString(),
		now:        time.Now,
	}
}

// Start registers the jobs at the times stored in system configs.
func (s *Scheduler) Start() error {
	s.cron = cron.New()

	jobs := []struct {
		name     string
		timeKey  string
		fallback string
		run      func(context.Context, time.Time) (string, error)
	}{
		{JobPermitExpiry, "permit_sweep_time", "00:30", s.runPermitExpiry},
		{JobBackup, "backup_time", "02:00", s.runBackup},
		{JobLogCleanup, "log_cleanup_time", "03:00", s.runLogCleanup},
	}

	for _, job := range jobs {
		job := job
		spec := ClockToCron(s.configs.GetWithDefault(job.timeKey, job.fallback), job.fallback)
		if _, err := s.cron.AddFunc(spec, func() {
			s.RunOnce(context.Background(), job.name, job.run)
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		logger.Info().Str("job", job.name).Str("cron", spec).Msg("[Scheduler] Job scheduled")
	}

	s.cron.Start()
	logger.Info().Str("instance", s.instanceID).Msg("[Scheduler] Started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	logger.Info().Msg("[Scheduler] Stopped")
}

// RunOnce runs job unless another run already claimed it today. It reports
// whether the job ran.
func (s *Scheduler) RunOnce(ctx context.Context, name string, job func(context.Context, time.Time) (string, error)) bool {
	now := s.now()
	claimed, err := s.claim(ctx, name, now)
	if err != nil {
		logger.Error().Err(err).Str("job", name).Msg("[Scheduler] Failed to claim lock")
		return false
	}
	if !claimed {
		logger.Debug().Str("job", name).Msg("[Scheduler] Already ran today, skipping")
		return false
	}

	summary, err := job(ctx, now)
	if err != nil {
		logger.Error().Err(err).Str("job", name).Msg("[Scheduler] Job failed")
		LogError(AuditEntry{Module: "scheduler", Action: name, Message: err.Error()})
		return true
	}
	logger.Info().Str("job", name).Str("result", summary).Msg("[Scheduler] Job finished")
	LogInfo(AuditEntry{Module: "scheduler", Action: name, Message: summary})
	return true
}

func (s *Scheduler) claim(ctx context.Context, name string, now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   now.Format("2006-01-02"),
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *Scheduler) runPermitExpiry(ctx context.Context, now time.Time) (string, error) {
	n, err := s.ExpirePermits(ctx, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d work permits expired", n), nil
}

// ExpirePermits marks active permits whose validity ended before now as expired.
func (s *Scheduler) ExpirePermits(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.WorkPermit{}).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?", models.PermitActive, now.UTC()).
		Updates(map[string]interface{}{"status": models.PermitExpired, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (s *Scheduler) runBackup(ctx context.Context, now time.Time) (string, error) {
	if !s.configs.GetBool("backup_enabled", true) {
		return "backup disabled", nil
	}
	path, err := s.Backup(ctx, now)
	if err != nil {
		return "", err
	}
	return "backup written to " + path, nil
}

// BackupFile is the JSON document written by Backup.
type BackupFile struct {
	RunID      string                   `json:"run_id"`
	CreatedAt  time.Time                `json:"created_at"`
	Projects   []models.Project         `json:"projects"`
	Snapshots  []models.DailySnapshot   `json:"daily_snapshots"`
	Reports    []models.WeeklyKpiReport `json:"weekly_reports"`
	Deviations []models.DeviationReport `json:"deviations"`
}

// Backup dumps projects, snapshots, reports and deviations to a JSON file in
// the backup directory and prunes files beyond the retention count.
func (s *Scheduler) Backup(ctx context.Context, now time.Time) (string, error) {
	doc := BackupFile{RunID: uuid.NewString(), CreatedAt: now}
	db := s.db.WithContext(ctx)
	if err := db.Order("id").Find(&doc.Projects).Error; err != nil {
		return "", err
	}
	if err := db.Order("id").Find(&doc.Snapshots).Error; err != nil {
		return "", err
	}
	if err := db.Order("id").Find(&doc.Reports).Error; err != nil {
		return "", err
	}
	if err := db.Order("id").Find(&doc.Deviations).Error; err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.backup.Dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%s-%s.json", backupPrefix, now.Format("20060102-150405"), doc.RunID[:8])
	path := filepath.Join(s.backup.Dir, name)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	if err := s.pruneBackups(); err != nil {
		logger.Warn().Err(err).Msg("[Scheduler] Failed to prune old backups")
	}
	return path, nil
}

func (s *Scheduler) pruneBackups() error {
	if s.backup.Keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.backup.Dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	// Names embed the timestamp, so lexical order is chronological.
	sort.Strings(names)
	for len(names) > s.backup.Keep {
		if err := os.Remove(filepath.Join(s.backup.Dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

func (s *Scheduler) runLogCleanup(ctx context.Context, now time.Time) (string, error) {
	retention := s.configs.GetInt("log_retention_days", 90)
	deleted, err := s.logs.CleanupOldLogs(retention, now)
	if err != nil {
		return "", err
	}

	// Locks only matter for the day they were taken.
	stale := s.db.WithContext(ctx).Where("expires_at < ?", now.AddDate(0, 0, -7)).Delete(&models.SchedulerLock{})
	if stale.Error != nil {
		return "", stale.Error
	}
	return fmt.Sprintf("%d logs and %d scheduler locks removed", deleted, stale.RowsAffected), nil
}
