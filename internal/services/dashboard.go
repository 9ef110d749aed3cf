package services

import (
	"time"

	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: time.Now}
}

type DashboardStatsRequest struct {
	StartDate    string `form:"start_date"`
	EndDate      string `form:"end_date"`
	ProjectLimit int    `form:"project_limit"`
}

type DashboardStats struct {
	ActiveProjects   int64 `json:"active_projects"`
	PendingReports   int64 `json:"pending_reports"`
	Deviations       int64 `json:"deviations"`
	PinnedDeviations int64 `json:"pinned_deviations"`
}

type ProjectStats struct {
	ProjectID        uint    `json:"project_id"`
	ProjectName      string  `json:"project_name"`
	DeviationCount   int64   `json:"deviation_count"`
	PinnedDeviations int64   `json:"pinned_deviations"`
	LatestWeek       int     `json:"latest_week"`
	LatestYear       int     `json:"latest_year"`
	LatestStatus     string  `json:"latest_status"`
	TF               float64 `json:"tf"`
	TG               float64 `json:"tg"`
	CumulativeTF     float64 `json:"cumulative_tf"`
	CumulativeTG     float64 `json:"cumulative_tg"`
}

type DashboardResponse struct {
	Stats        DashboardStats `json:"stats"`
	ProjectStats []ProjectStats `json:"project_stats"`
}

// GetStats summarises deviations over the range (last 7 days by default) and
// the latest weekly report of each active project.
func (s *DashboardService) GetStats(req *DashboardStatsRequest) (*DashboardResponse, error) {
	now := s.now().UTC()
	startDate := now.AddDate(0, 0, -7)
	endDate := now
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		startDate = d
	}
	if req.EndDate != "" {
		d, err := parseDate(req.EndDate)
		if err != nil {
			return nil, err
		}
		endDate = d.Add(24*time.Hour - time.Nanosecond)
	}
	limit := req.ProjectLimit
	if limit <= 0 {
		limit = 10
	}

	var stats DashboardStats

	s.db.Model(&models.Project{}).Where("is_active = ?", true).Count(&stats.ActiveProjects)

	s.db.Model(&models.WeeklyKpiReport{}).
		Where("status = ?", lifecycle.ReportSubmitted).
		Count(&stats.PendingReports)

	s.db.Model(&models.DeviationReport{}).
		Where("observed_at BETWEEN ? AND ?", startDate, endDate).
		Count(&stats.Deviations)

	s.db.Model(&models.DeviationReport{}).
		Where("pinned = ?", true).
		Count(&stats.PinnedDeviations)

	var projects []models.Project
	if err := s.db.Where("is_active = ?", true).Order("name ASC").Limit(limit).Find(&projects).Error; err != nil {
		return nil, err
	}

	projectStats := make([]ProjectStats, 0, len(projects))
	for _, p := range projects {
		ps := ProjectStats{ProjectID: p.ID, ProjectName: p.Name}

		s.db.Model(&models.DeviationReport{}).
			Where("project_id = ? AND observed_at BETWEEN ? AND ?", p.ID, startDate, endDate).
			Count(&ps.DeviationCount)
		s.db.Model(&models.DeviationReport{}).
			Where("project_id = ? AND pinned = ?", p.ID, true).
			Count(&ps.PinnedDeviations)

		var latest models.WeeklyKpiReport
		err := s.db.Where("project_id = ?", p.ID).
			Order("report_year DESC").Order("week_number DESC").
			First(&latest).Error
		if err == nil {
			ps.LatestWeek, ps.LatestYear = latest.WeekNumber, latest.ReportYear
			ps.LatestStatus = string(latest.Status)
			ps.TF, ps.TG = latest.TF, latest.TG
			ps.CumulativeTF, ps.CumulativeTG = latest.CumulativeTF, latest.CumulativeTG
		}
		projectStats = append(projectStats, ps)
	}

	return &DashboardResponse{
		Stats:        stats,
		ProjectStats: projectStats,
	}, nil
}
