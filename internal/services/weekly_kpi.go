package services

import (
	"context"
	"errors"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WeeklyKpiService computes, stores and approves weekly KPI reports.
type WeeklyKpiService struct {
	db        *gorm.DB
	collector *kpi.Collector
	holidays  *HolidayService
	now       func() time.Time
}

func NewWeeklyKpiService(db *gorm.DB, collector *kpi.Collector, holidays *HolidayService) *WeeklyKpiService {
	return &WeeklyKpiService{db: db, collector: collector, holidays: holidays, now: time.Now}
}

// StatusNotGenerated is reported by View for weeks without a stored report.
const StatusNotGenerated = "not_generated"

type ReportListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ProjectID uint   `form:"project_id"`
	Year      int    `form:"year"`
	Status    string `form:"status"`
}

type ReportListResponse struct {
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Items    []models.WeeklyKpiReport `json:"items"`
}

// WeekView is the flat metric view of one project week.
type WeekView struct {
	ProjectID       uint        `json:"project_id"`
	WeekNumber      int         `json:"week_number"`
	ReportYear      int         `json:"report_year"`
	PeriodStart     string      `json:"period_start"`
	PeriodEnd       string      `json:"period_end"`
	Status          string      `json:"status"`
	Week            kpi.Figures `json:"week"`
	Cumulative      kpi.Figures `json:"cumulative"`
	PriorCumulative kpi.Figures `json:"prior_cumulative"`
}

// reportAggregateColumns are refreshed when a report is regenerated; workflow
// columns are left alone.
var reportAggregateColumns = []string{
	"period_start", "period_end", "days_reported", "working_days",
	"workforce", "hours_worked", "accidents", "lost_workdays", "tf", "tg",
	"cumulative_hours_worked", "cumulative_accidents", "cumulative_lost_workdays",
	"cumulative_tf", "cumulative_tg",
	"metrics", "cumulative_metrics", "prior_cumulative",
	"deviation_breakdown", "collect_errors", "missing_fields",
	"generated_at", "updated_at",
}

// ValidateWeek checks a week/year pair coming from a caller.
func ValidateWeek(week, year int) error {
	if week < 1 || week > 53 {
		return lifecycle.Invalid("week", lifecycle.ErrInvalidValue, "week must be between 1 and 53")
	}
	w, err := kpi.ResolveWeek(week, year)
	if err != nil {
		return lifecycle.Invalid("year", lifecycle.ErrInvalidValue, "%v", err)
	}
	// Week 53 of a 52-week year is week 1 of the next one.
	if got := kpi.WeekOf(w.Start); got != w.Week {
		return lifecycle.Invalid("week", lifecycle.ErrInvalidValue, "%d has no week %d, that period is week %s", year, week, got)
	}
	return nil
}

// Compute aggregates one project week without storing anything.
func (s *WeeklyKpiService) Compute(ctx context.Context, projectID uint, week, year int) (*kpi.Result, error) {
	if err := ValidateWeek(week, year); err != nil {
		return nil, err
	}
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, err
	}

	w, _ := kpi.ResolveWeek(week, year)
	if s.holidays != nil {
		w = s.holidays.Annotate(w, project.CountryCode)
	}

	days, err := s.loadDays(ctx, &project, w.End)
	if err != nil {
		return nil, err
	}

	var counts, before kpi.CollaboratorCounts
	if s.collector != nil {
		counts = s.collector.CollectWeek(ctx, projectID, w)
		var since time.Time
		if project.StartDate != nil {
			since = *project.StartDate
		}
		before = s.collector.CollectBefore(ctx, projectID, since, w)
	}
	history := kpi.HistoryFrom(w, days, before)

	res := kpi.Compute(w, days, counts, history)
	for _, e := range before.Errors {
		e.Source = "cumulative." + e.Source
		res.Collaborators.Errors = append(res.Collaborators.Errors, e)
	}
	for _, e := range res.Collaborators.Errors {
		logger.Warn().Uint("project_id", projectID).Str("week", w.Week.String()).
			Str("source", e.Source).Str("error", e.Err).Msg("[WeeklyKPI] Collaborator contributed zero")
	}
	return &res, nil
}

// loadDays returns every submitted snapshot of the project up to end.
func (s *WeeklyKpiService) loadDays(ctx context.Context, project *models.Project, end time.Time) ([]kpi.DailyValues, error) {
	query := s.db.WithContext(ctx).
		Where("project_id = ? AND status = ? AND entry_date <= ?", project.ID, lifecycle.SnapshotSubmitted, end)
	if project.StartDate != nil {
		query = query.Where("entry_date >= ?", kpi.DateOnly(*project.StartDate))
	}

	var rows []models.DailySnapshot
	if err := query.Order("entry_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	days := make([]kpi.DailyValues, len(rows))
	for i := range rows {
		days[i] = rows[i].ToDaily()
	}
	return days, nil
}

// Generate recomputes a week and upserts its report. Approved reports are frozen.
func (s *WeeklyKpiService) Generate(ctx context.Context, projectID uint, week, year int) (*models.WeeklyKpiReport, error) {
	res, err := s.Compute(ctx, projectID, week, year)
	if err != nil {
		return nil, err
	}

	var saved models.WeeklyKpiReport
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WeeklyKpiReport
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("project_id = ? AND week_number = ? AND report_year = ?", projectID, week, year).
			First(&existing).Error
		if err == nil {
			if err := existing.EnsureEditable(); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		report := models.WeeklyKpiReport{ProjectID: projectID, ReportState: lifecycle.NewReportState()}
		report.ApplyResult(*res, s.now())

		// An approval committed after the read above must not be overwritten.
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "week_number"}, {Name: "report_year"}},
			Where:     clause.Where{Exprs: []clause.Expression{clause.Neq{Column: "weekly_kpi_reports.status", Value: lifecycle.ReportApproved}}},
			DoUpdates: clause.AssignmentColumns(reportAggregateColumns),
		}).Create(&report)
		if result.Error != nil {
			return result.Error
		}
		if err := tx.Where("project_id = ? AND week_number = ? AND report_year = ?", projectID, week, year).
			First(&saved).Error; err != nil {
			return err
		}
		if result.RowsAffected == 0 {
			return saved.EnsureEditable()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", projectID).Str("week", res.Window.Week.String()).
		Int("days", res.DaysReported).Float64("tf", saved.TF).Float64("tg", saved.TG).
		Msg("[WeeklyKPI] Report generated")
	PublishReportEvent(EventReportGenerated, &saved)
	return &saved, nil
}

// Get returns the stored report of a project week.
func (s *WeeklyKpiService) Get(ctx context.Context, projectID uint, week, year int) (*models.WeeklyKpiReport, error) {
	var report models.WeeklyKpiReport
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND week_number = ? AND report_year = ?", projectID, week, year).
		First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *WeeklyKpiService) GetByID(ctx context.Context, id uint) (*models.WeeklyKpiReport, error) {
	var report models.WeeklyKpiReport
	if err := s.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// View returns the flat week, cumulative and prior cumulative maps of a project
// week. Weeks without a stored report are computed on the fly.
func (s *WeeklyKpiService) View(ctx context.Context, projectID uint, week, year int) (*WeekView, error) {
	if err := ValidateWeek(week, year); err != nil {
		return nil, err
	}
	report, err := s.Get(ctx, projectID, week, year)
	if err == nil {
		return &WeekView{
			ProjectID:       projectID,
			WeekNumber:      week,
			ReportYear:      year,
			PeriodStart:     report.PeriodStart.Format("2006-01-02"),
			PeriodEnd:       report.PeriodEnd.Format("2006-01-02"),
			Status:          string(report.Status),
			Week:            report.Metrics.Data(),
			Cumulative:      report.CumulativeMetrics.Data(),
			PriorCumulative: report.PriorCumulative.Data(),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	res, err := s.Compute(ctx, projectID, week, year)
	if err != nil {
		return nil, err
	}
	return &WeekView{
		ProjectID:       projectID,
		WeekNumber:      week,
		ReportYear:      year,
		PeriodStart:     res.Window.Start.Format("2006-01-02"),
		PeriodEnd:       res.Window.End.Format("2006-01-02"),
		Status:          StatusNotGenerated,
		Week:            res.Week,
		Cumulative:      res.Cumulative,
		PriorCumulative: res.PriorCumulative,
	}, nil
}

// List returns paginated reports, latest week first.
func (s *WeeklyKpiService) List(req *ReportListRequest) (*ReportListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var reports []models.WeeklyKpiReport
	var total int64

	query := s.db.Model(&models.WeeklyKpiReport{})
	if req.ProjectID != 0 {
		query = query.Where("project_id = ?", req.ProjectID)
	}
	if req.Year != 0 {
		query = query.Where("report_year = ?", req.Year)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("report_year DESC").Order("week_number DESC").
		Find(&reports).Error; err != nil {
		return nil, err
	}

	return &ReportListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    reports,
	}, nil
}

// Submit refreshes the aggregates of a draft or rejected report and submits it
// when every mandatory field is populated.
func (s *WeeklyKpiService) Submit(ctx context.Context, id, userID uint) (*models.WeeklyKpiReport, error) {
	report, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status.CanTransition(lifecycle.ReportSubmitted) {
		if report, err = s.Generate(ctx, report.ProjectID, report.WeekNumber, report.ReportYear); err != nil {
			return nil, err
		}
	}

	next, err := report.ReportState.Submit(userID, s.now(), report.MissingMandatory())
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, report, next, userID, "submit")
}

// Approve finalises a submitted report.
func (s *WeeklyKpiService) Approve(ctx context.Context, id, userID uint) (*models.WeeklyKpiReport, error) {
	report, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := report.ReportState.Approve(userID, s.now())
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, report, next, userID, "approve")
}

// Reject sends a submitted report back to its author.
func (s *WeeklyKpiService) Reject(ctx context.Context, id, userID uint, reason string) (*models.WeeklyKpiReport, error) {
	report, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := report.ReportState.Reject(userID, reason, s.now())
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, report, next, userID, "reject")
}

func (s *WeeklyKpiService) transition(ctx context.Context, report *models.WeeklyKpiReport, next lifecycle.ReportState, userID uint, action string) (*models.WeeklyKpiReport, error) {
	from := report.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent transition of the same report.
		result := tx.Model(&models.WeeklyKpiReport{}).
			Where("id = ? AND status = ?", report.ID, from).
			Updates(map[string]interface{}{
				"status":           next.Status,
				"submission_count": next.SubmissionCount,
				"submitted_by":     next.SubmittedBy,
				"submitted_at":     next.SubmittedAt,
				"approved_by":      next.ApprovedBy,
				"approved_at":      next.ApprovedAt,
				"rejected_by":      next.RejectedBy,
				"rejected_at":      next.RejectedAt,
				"rejection_reason": next.RejectionReason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return lifecycle.Invalid("status", lifecycle.ErrInvalidTransition, "report changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.ReportState = next

	LogInfo(AuditEntry{Module: "weekly_report", Action: action, ProjectID: &report.ProjectID, UserID: &userID,
		Message: string(from) + " -> " + string(next.Status),
		Extra:   map[string]interface{}{"report_id": report.ID, "week": report.WeekNumber, "year": report.ReportYear}})
	logger.Info().Uint("report_id", report.ID).Str("from", string(from)).Str("to", string(next.Status)).
		Msg("[WeeklyKPI] Status changed")
	PublishReportEvent(EventReportStatus, report)
	return report, nil
}

// ProcessRecompute refreshes every stored, non-approved report of the project
// from the task's week onwards, since later cumulative figures depend on it.
func (s *WeeklyKpiService) ProcessRecompute(ctx context.Context, task *RecomputeTask) error {
	var reports []models.WeeklyKpiReport
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND status <> ?", task.ProjectID, lifecycle.ReportApproved).
		Where("report_year > ? OR (report_year = ? AND week_number >= ?)", task.Year, task.Year, task.WeekNumber).
		Order("report_year ASC").Order("week_number ASC").
		Find(&reports).Error; err != nil {
		return err
	}

	for _, r := range reports {
		if _, err := s.Generate(ctx, r.ProjectID, r.WeekNumber, r.ReportYear); err != nil {
			// Approved since it was listed.
			if errors.Is(err, lifecycle.ErrFrozen) {
				continue
			}
			return err
		}
	}
	logger.Info().Uint("project_id", task.ProjectID).Str("from_week", task.Week().String()).
		Int("reports", len(reports)).Str("reason", task.Reason).Msg("[WeeklyKPI] Recompute finished")
	return nil
}

// RecomputeProcessor returns the queue processor for recompute tasks. Tasks are
// dropped while the kpi_auto_recompute setting is off.
func RecomputeProcessor(weekly *WeeklyKpiService, configs *SystemConfigService) func(context.Context, *RecomputeTask) error {
	return func(ctx context.Context, task *RecomputeTask) error {
		if configs != nil && !configs.GetBool("kpi_auto_recompute", true) {
			logger.Debug().Uint("project_id", task.ProjectID).Str("reason", task.Reason).Msg("[WeeklyKPI] Auto recompute disabled, task skipped")
			return nil
		}
		return weekly.ProcessRecompute(ctx, task)
	}
}
