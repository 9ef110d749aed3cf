package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailySnapshotService stores the daily HSE figures of projects.
type DailySnapshotService struct {
	db        *gorm.DB
	collector *kpi.Collector
	queue     TaskQueue
	now       func() time.Time
}

// NewDailySnapshotService creates the service. queue may be nil, in which case
// weekly reports are not refreshed automatically.
func NewDailySnapshotService(db *gorm.DB, collector *kpi.Collector, queue TaskQueue) *DailySnapshotService {
	return &DailySnapshotService{db: db, collector: collector, queue: queue, now: time.Now}
}

type SnapshotRequest struct {
	EntryDate     string              `json:"entry_date" binding:"required"`
	Values        map[string]*float64 `json:"values"`
	RecordedZeros []string            `json:"recorded_zeros"`
	Notes         string              `json:"notes"`
}

type SnapshotListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type SnapshotListResponse struct {
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Items    []models.DailySnapshot `json:"items"`
}

// WeekSnapshots is the snapshot sheet of one reporting window.
type WeekSnapshots struct {
	Window    kpi.Window             `json:"window"`
	Snapshots []models.DailySnapshot `json:"snapshots"`
	Errors    []kpi.CollectError     `json:"errors,omitempty"`
}

// snapshotColumns are rewritten when an existing row is upserted.
var snapshotColumns = func() []string {
	cols := []string{"recorded_zeros", "notes", "updated_at"}
	for _, def := range kpi.Metrics {
		if def.Daily {
			cols = append(cols, def.Name)
		}
	}
	return cols
}()

// ValidateSnapshotValues checks entered values and recorded-zero markers.
func ValidateSnapshotValues(values map[string]*float64, zeros []string) error {
	for name, v := range values {
		def, ok := kpi.Lookup(name)
		if !ok || !def.Daily {
			return lifecycle.Invalid(name, lifecycle.ErrInvalidValue, "unknown daily metric %q", name)
		}
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return lifecycle.Invalid(name, lifecycle.ErrInvalidValue, "value must be a finite number")
		}
		if *v < 0 {
			return lifecycle.Invalid(name, lifecycle.ErrInvalidValue, "value must not be negative")
		}
		if (name == kpi.HSEComplianceRate || name == kpi.MedicalComplianceRate) && *v > 100 {
			return lifecycle.Invalid(name, lifecycle.ErrInvalidValue, "rate must be between 0 and 100")
		}
	}
	for _, name := range zeros {
		def, ok := kpi.Lookup(name)
		if !ok || def.Strategy != kpi.StrategyAvg {
			return lifecycle.Invalid("recorded_zeros", lifecycle.ErrInvalidValue, "%q is not an averaged metric", name)
		}
		if v := values[name]; v == nil || *v != 0 {
			return lifecycle.Invalid("recorded_zeros", lifecycle.ErrInvalidValue, "%q is not recorded as 0", name)
		}
	}
	return nil
}

// Upsert creates or replaces the draft snapshot of a project day. Submitted
// snapshots must be reopened first.
func (s *DailySnapshotService) Upsert(ctx context.Context, projectID uint, req *SnapshotRequest, userID uint) (*models.DailySnapshot, error) {
	day, err := parseDate(req.EntryDate)
	if err != nil {
		return nil, err
	}
	if err := ValidateSnapshotValues(req.Values, req.RecordedZeros); err != nil {
		return nil, err
	}

	row := models.DailySnapshot{
		ProjectID:     projectID,
		EntryDate:     day,
		RecordedZeros: datatypes.JSONSlice[string](dedupe(req.RecordedZeros)),
		Notes:         req.Notes,
		Status:        lifecycle.SnapshotDraft,
		CreatedBy:     userID,
	}
	for name, v := range req.Values {
		row.SetValue(name, v)
	}

	var saved models.DailySnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Project{}, projectID).Error; err != nil {
			return err
		}

		var existing models.DailySnapshot
		err := tx.Where("project_id = ? AND entry_date = ?", projectID, day).First(&existing).Error
		if err == nil && !existing.Status.Editable() {
			return lifecycle.Invalid("status", lifecycle.ErrFrozen, "snapshot of %s is submitted, reopen it to edit", day.Format("2006-01-02"))
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "entry_date"}},
			DoUpdates: clause.AssignmentColumns(snapshotColumns),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ? AND entry_date = ?", projectID, day).First(&saved).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", projectID).Str("date", day.Format("2006-01-02")).Msg("[Snapshot] Saved")
	s.fill(ctx, &saved)
	return &saved, nil
}

// Get returns the snapshot of a project day with collaborator figures filled in.
func (s *DailySnapshotService) Get(ctx context.Context, projectID uint, date time.Time) (*models.DailySnapshot, error) {
	snap, err := s.find(ctx, s.db, projectID, date)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, snap)
	return snap, nil
}

// Submit marks a draft snapshot as final so it is aggregated.
func (s *DailySnapshotService) Submit(ctx context.Context, projectID uint, date time.Time, userID uint) (*models.DailySnapshot, error) {
	snap, err := s.find(ctx, s.db, projectID, date)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.SubmitSnapshot(snap.Status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(snap).Updates(map[string]interface{}{
		"status":       next,
		"submitted_by": userID,
		"submitted_at": now,
	}).Error; err != nil {
		return nil, err
	}
	snap.Status, snap.SubmittedBy, snap.SubmittedAt = next, &userID, &now

	LogInfo(AuditEntry{Module: "snapshot", Action: "submit", Message: "daily snapshot submitted",
		ProjectID: &snap.ProjectID, UserID: &userID, Extra: map[string]string{"date": snap.EntryDate.Format("2006-01-02")}})
	s.recompute(snap.ProjectID, snap.EntryDate, "snapshot_submitted")
	s.fill(ctx, snap)
	return snap, nil
}

// Reopen returns a submitted snapshot to draft; it stops counting until it is
// submitted again.
func (s *DailySnapshotService) Reopen(ctx context.Context, projectID uint, date time.Time, userID uint) (*models.DailySnapshot, error) {
	snap, err := s.find(ctx, s.db, projectID, date)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.ReopenSnapshot(snap.Status)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(snap).Updates(map[string]interface{}{
		"status":       next,
		"submitted_by": nil,
		"submitted_at": nil,
	}).Error; err != nil {
		return nil, err
	}
	snap.Status, snap.SubmittedBy, snap.SubmittedAt = next, nil, nil

	LogInfo(AuditEntry{Module: "snapshot", Action: "reopen", Message: "daily snapshot reopened",
		ProjectID: &snap.ProjectID, UserID: &userID, Extra: map[string]string{"date": snap.EntryDate.Format("2006-01-02")}})
	s.recompute(snap.ProjectID, snap.EntryDate, "snapshot_reopened")
	s.fill(ctx, snap)
	return snap, nil
}

// ListWeek returns every snapshot of the reporting window ordered by date.
func (s *DailySnapshotService) ListWeek(ctx context.Context, projectID uint, week, year int) (*WeekSnapshots, error) {
	w, err := kpi.ResolveWeek(week, year)
	if err != nil {
		return nil, lifecycle.Invalid("year", lifecycle.ErrInvalidValue, "%v", err)
	}

	var rows []models.DailySnapshot
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND entry_date BETWEEN ? AND ?", projectID, w.Start, w.End).
		Order("entry_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := &WeekSnapshots{Window: w, Snapshots: rows}
	if s.collector != nil && len(rows) > 0 {
		cc := s.collector.CollectWeek(ctx, projectID, w)
		byDate := make(map[time.Time]kpi.DayCounts, len(cc.PerDay))
		for _, d := range cc.PerDay {
			byDate[d.Date] = d
		}
		for i := range out.Snapshots {
			out.Snapshots[i].ApplyCollaborators(byDate[kpi.DateOnly(out.Snapshots[i].EntryDate)])
		}
		out.Errors = cc.Errors
	}
	return out, nil
}

// List returns paginated snapshots of a project, newest first.
func (s *DailySnapshotService) List(projectID uint, req *SnapshotListRequest) (*SnapshotListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var rows []models.DailySnapshot
	var total int64

	query := s.db.Model(&models.DailySnapshot{}).Where("project_id = ?", projectID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		query = query.Where("entry_date >= ?", d)
	}
	if req.EndDate != "" {
		d, err := parseDate(req.EndDate)
		if err != nil {
			return nil, err
		}
		query = query.Where("entry_date <= ?", d)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("entry_date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	return &SnapshotListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    rows,
	}, nil
}

func (s *DailySnapshotService) find(ctx context.Context, db *gorm.DB, projectID uint, date time.Time) (*models.DailySnapshot, error) {
	var snap models.DailySnapshot
	if err := db.WithContext(ctx).
		Where("project_id = ? AND entry_date = ?", projectID, kpi.DateOnly(date)).
		First(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *DailySnapshotService) fill(ctx context.Context, snap *models.DailySnapshot) {
	if s.collector == nil {
		return
	}
	dc, errs := s.collector.CollectDay(ctx, snap.ProjectID, snap.EntryDate)
	for _, e := range errs {
		logger.Warn().Str("source", e.Source).Str("error", e.Err).Msg("[Snapshot] Collaborator unavailable")
	}
	snap.ApplyCollaborators(dc)
}

func (s *DailySnapshotService) recompute(projectID uint, date time.Time, reason string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(NewRecomputeTask(projectID, date, reason)); err != nil {
		logger.Warn().Err(err).Uint("project_id", projectID).Msg("[Snapshot] Failed to enqueue recompute")
	}
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
