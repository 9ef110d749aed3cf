package services

import (
	"context"
	"strings"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/gorm"
)

// DeviationService records safety deviations and drives their lifecycle.
type DeviationService struct {
	db     *gorm.DB
	source *DeviationSource
	queue  TaskQueue
	now    func() time.Time
}

func NewDeviationService(db *gorm.DB, queue TaskQueue) *DeviationService {
	return &DeviationService{db: db, source: NewDeviationSource(db), queue: queue, now: time.Now}
}

type CreateDeviationRequest struct {
	ObservedAt    time.Time `json:"observed_at" binding:"required"`
	Zone          string    `json:"zone"`
	Company       string    `json:"company"`
	Category      string    `json:"category" binding:"required"`
	NonConformity string    `json:"non_conformity" binding:"required"`
	PhotoRef      string    `json:"photo_ref"`
	// SubmitLater defers the corrective action; the deviation stays pinned.
	SubmitLater           bool       `json:"submit_later"`
	CorrectiveAction      string     `json:"corrective_action"`
	CorrectiveActionDate  *time.Time `json:"corrective_action_date"`
	CorrectiveActionPhoto string     `json:"corrective_action_photo"`
}

type CorrectiveActionRequest struct {
	Description string     `json:"corrective_action"`
	Date        *time.Time `json:"corrective_action_date"`
	PhotoRef    string     `json:"corrective_action_photo"`
}

type DeviationListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status"`
	Category  string `form:"category"`
	Pinned    *bool  `form:"pinned"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type DeviationListResponse struct {
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Items    []models.DeviationReport `json:"items"`
}

// CategoryCount is one line of a category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Create records a deviation. With a corrective action it is closed at once;
// with submit_later, or without an action, it is left open and pinned.
func (s *DeviationService) Create(ctx context.Context, projectID uint, req *CreateDeviationRequest, userID uint) (*models.DeviationReport, error) {
	category := models.DeviationCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if !category.Valid() {
		return nil, lifecycle.Invalid("category", lifecycle.ErrInvalidValue, "unknown category %q", req.Category)
	}
	if strings.TrimSpace(req.NonConformity) == "" {
		return nil, lifecycle.Invalid("non_conformity", lifecycle.ErrMissingMandatory, "non-conformity description is required")
	}
	if req.ObservedAt.IsZero() {
		return nil, lifecycle.Invalid("observed_at", lifecycle.ErrMissingMandatory, "observation time is required")
	}
	if err := s.db.WithContext(ctx).First(&models.Project{}, projectID).Error; err != nil {
		return nil, err
	}

	var action *lifecycle.CorrectiveAction
	if !req.SubmitLater {
		action = &lifecycle.CorrectiveAction{
			Description: req.CorrectiveAction,
			Date:        req.CorrectiveActionDate,
			PhotoRef:    req.CorrectiveActionPhoto,
		}
	}
	state, err := lifecycle.NewDeviation(action, userID, s.now())
	if err != nil {
		return nil, err
	}

	dev := models.DeviationReport{
		ProjectID:      projectID,
		ObservedAt:     req.ObservedAt.UTC(),
		Zone:           strings.TrimSpace(req.Zone),
		Company:        strings.TrimSpace(req.Company),
		Category:       category,
		NonConformity:  strings.TrimSpace(req.NonConformity),
		PhotoRef:       req.PhotoRef,
		ReportedBy:     userID,
		DeviationState: state,
	}
	if err := s.db.WithContext(ctx).Create(&dev).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", projectID).Uint("deviation_id", dev.ID).
		Str("status", string(dev.Status)).Bool("pinned", dev.Pinned).Msg("[Deviation] Created")
	LogInfo(AuditEntry{Module: "deviation", Action: "create", ProjectID: &projectID, UserID: &userID,
		Message: "deviation reported", Extra: map[string]interface{}{"deviation_id": dev.ID, "category": dev.Category}})
	PublishDeviationEvent(&dev)
	s.recompute(projectID, dev.ObservedAt, "deviation_created")
	return &dev, nil
}

func (s *DeviationService) GetByID(ctx context.Context, id uint) (*models.DeviationReport, error) {
	var dev models.DeviationReport
	if err := s.db.WithContext(ctx).First(&dev, id).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

// Start marks an open deviation as in progress.
func (s *DeviationService) Start(ctx context.Context, id, userID uint) (*models.DeviationReport, error) {
	dev, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := dev.DeviationState.Start()
	if err != nil {
		return nil, err
	}
	if err := s.saveState(ctx, dev, next); err != nil {
		return nil, err
	}
	LogInfo(AuditEntry{Module: "deviation", Action: "start", ProjectID: &dev.ProjectID, UserID: &userID,
		Message: "deviation in progress", Extra: map[string]uint{"deviation_id": dev.ID}})
	PublishDeviationEvent(dev)
	return dev, nil
}

// AddCorrectiveAction closes a deviation with its remedy. It serves pinned
// deviations and direct closure alike. Nothing is stored when it fails.
func (s *DeviationService) AddCorrectiveAction(ctx context.Context, id uint, req *CorrectiveActionRequest, userID uint) (*models.DeviationReport, error) {
	dev, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := dev.DeviationState.Close(lifecycle.CorrectiveAction{
		Description: req.Description,
		Date:        req.Date,
		PhotoRef:    req.PhotoRef,
	}, userID, s.now())
	if err != nil {
		return nil, err
	}
	if err := next.Check(); err != nil {
		return nil, err
	}
	if err := s.saveState(ctx, dev, next); err != nil {
		return nil, err
	}

	logger.Info().Uint("deviation_id", dev.ID).Msg("[Deviation] Closed")
	LogInfo(AuditEntry{Module: "deviation", Action: "close", ProjectID: &dev.ProjectID, UserID: &userID,
		Message: "corrective action recorded", Extra: map[string]uint{"deviation_id": dev.ID}})
	PublishDeviationEvent(dev)
	s.recompute(dev.ProjectID, dev.ObservedAt, "deviation_closed")
	return dev, nil
}

func (s *DeviationService) saveState(ctx context.Context, dev *models.DeviationReport, next lifecycle.DeviationState) error {
	from := dev.Status
	result := s.db.WithContext(ctx).Model(&models.DeviationReport{}).
		Where("id = ? AND status = ?", dev.ID, from).
		Updates(map[string]interface{}{
			"status":                  next.Status,
			"pinned":                  next.Pinned,
			"corrective_action":       next.CorrectiveAction,
			"corrective_action_date":  next.CorrectiveActionDate,
			"corrective_action_photo": next.CorrectiveActionPhoto,
			"closed_by":               next.ClosedBy,
			"closed_at":               next.ClosedAt,
			"updated_at":              s.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return lifecycle.Invalid("status", lifecycle.ErrInvalidTransition, "deviation changed concurrently")
	}
	dev.DeviationState = next
	return nil
}

// List returns paginated deviations of a project, newest observation first.
func (s *DeviationService) List(projectID uint, req *DeviationListRequest) (*DeviationListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var items []models.DeviationReport
	var total int64

	query := s.db.Model(&models.DeviationReport{}).Where("project_id = ?", projectID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Pinned != nil {
		query = query.Where("pinned = ?", *req.Pinned)
	}
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		query = query.Where("observed_at >= ?", d)
	}
	if req.EndDate != "" {
		d, err := parseDate(req.EndDate)
		if err != nil {
			return nil, err
		}
		query = query.Where("observed_at < ?", d.AddDate(0, 0, 1))
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("observed_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &DeviationListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Pinned returns the deviations still waiting for a corrective action, oldest first.
func (s *DeviationService) Pinned(ctx context.Context, projectID uint) ([]models.DeviationReport, error) {
	var items []models.DeviationReport
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND pinned = ?", projectID, true).
		Order("observed_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Breakdown counts deviations per category over [from, to], listing every
// category even when its count is zero.
func (s *DeviationService) Breakdown(ctx context.Context, projectID uint, from, to time.Time) ([]CategoryCount, int64, error) {
	counts, err := s.source.CountInRange(ctx, projectID, kpi.DateOnly(from), kpi.DateOnly(to).AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil {
		return nil, 0, err
	}
	out := make([]CategoryCount, 0, len(models.DeviationCategories))
	for _, c := range models.DeviationCategories {
		out = append(out, CategoryCount{Category: string(c), Count: counts.ByCategory[string(c)]})
	}
	return out, counts.Total, nil
}

func (s *DeviationService) recompute(projectID uint, date time.Time, reason string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(NewRecomputeTask(projectID, date, reason)); err != nil {
		logger.Warn().Err(err).Uint("project_id", projectID).Msg("[Deviation] Failed to enqueue recompute")
	}
}
