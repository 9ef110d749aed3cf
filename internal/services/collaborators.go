package services

import (
	"context"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/models"
	"gorm.io/gorm"
)

// DeviationSource counts deviation reports by observation time.
type DeviationSource struct {
	db *gorm.DB
}

func NewDeviationSource(db *gorm.DB) *DeviationSource {
	return &DeviationSource{db: db}
}

func (s *DeviationSource) CountInRange(ctx context.Context, projectID uint, from, to time.Time) (kpi.DeviationCount, error) {
	var rows []struct {
		Category string
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.DeviationReport{}).
		Select("category, COUNT(*) AS total").
		Where("project_id = ? AND observed_at BETWEEN ? AND ?", projectID, from.UTC(), to.UTC()).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return kpi.DeviationCount{}, err
	}

	out := kpi.DeviationCount{ByCategory: make(map[string]int64, len(rows))}
	for _, r := range rows {
		out.Total += r.Total
		out.ByCategory[r.Category] = r.Total
	}
	return out, nil
}

// SessionSource sums training-like sessions from one table.
type SessionSource struct {
	db    *gorm.DB
	model interface{}
}

// NewTrainingSource sums training sessions.
func NewTrainingSource(db *gorm.DB) *SessionSource {
	return &SessionSource{db: db, model: &models.TrainingSession{}}
}

// NewAwarenessSource sums awareness sessions.
func NewAwarenessSource(db *gorm.DB) *SessionSource {
	return &SessionSource{db: db, model: &models.AwarenessSession{}}
}

func (s *SessionSource) SumInRange(ctx context.Context, projectID uint, from, to time.Time) (kpi.SessionTotals, error) {
	var row struct {
		Sessions     int64
		Participants int64
		PersonHours  float64
	}
	err := s.db.WithContext(ctx).Model(s.model).
		Select("COUNT(*) AS sessions, COALESCE(SUM(participants), 0) AS participants, "+
			"COALESCE(SUM(participants * duration_hours), 0) AS person_hours").
		Where("project_id = ? AND session_date BETWEEN ? AND ?", projectID, from.UTC(), to.UTC()).
		Scan(&row).Error
	if err != nil {
		return kpi.SessionTotals{}, err
	}
	return kpi.SessionTotals{
		Sessions:     row.Sessions,
		Participants: row.Participants,
		PersonHours:  row.PersonHours,
	}, nil
}

// PermitSource counts work permits by their reporting week tag.
type PermitSource struct {
	db *gorm.DB
}

func NewPermitSource(db *gorm.DB) *PermitSource {
	return &PermitSource{db: db}
}

func (s *PermitSource) CountForWeek(ctx context.Context, projectID uint, week kpi.Week) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.WorkPermit{}).
		Where("project_id = ? AND year = ? AND week_number = ?", projectID, week.Year, week.Number).
		Count(&n).Error
	return n, err
}

func (s *PermitSource) CountBeforeWeek(ctx context.Context, projectID uint, since, week kpi.Week) (int64, error) {
	var n int64
	query := s.db.WithContext(ctx).Model(&models.WorkPermit{}).
		Where("project_id = ?", projectID).
		Where("year < ? OR (year = ? AND week_number < ?)", week.Year, week.Year, week.Number)
	if since != (kpi.Week{}) {
		query = query.Where("year > ? OR (year = ? AND week_number >= ?)", since.Year, since.Year, since.Number)
	}
	err := query.Count(&n).Error
	return n, err
}

// InspectionSource counts logged inspections.
type InspectionSource struct {
	db *gorm.DB
}

func NewInspectionSource(db *gorm.DB) *InspectionSource {
	return &InspectionSource{db: db}
}

func (s *InspectionSource) CountInRange(ctx context.Context, projectID uint, from, to time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Inspection{}).
		Where("project_id = ? AND inspection_date BETWEEN ? AND ?", projectID, from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

// NewCollector wires every database-backed collaborator.
func NewCollector(db *gorm.DB) *kpi.Collector {
	return &kpi.Collector{
		Deviations:  NewDeviationSource(db),
		Trainings:   NewTrainingSource(db),
		Awareness:   NewAwarenessSource(db),
		Permits:     NewPermitSource(db),
		Inspections: NewInspectionSource(db),
	}
}
