package models

import (
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WeeklyKpiReport is the approvable weekly HSE report of a project. At most one
// report exists per (project, week, year).
type WeeklyKpiReport struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"uniqueIndex:idx_weekly_report_key;not null" json:"project_id"`
	Project     *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	WeekNumber  int       `gorm:"uniqueIndex:idx_weekly_report_key;not null" json:"week_number"`
	ReportYear  int       `gorm:"uniqueIndex:idx_weekly_report_key;not null" json:"report_year"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	DaysReported int `json:"days_reported"`
	WorkingDays  int `json:"working_days"`

	Workforce    float64 `json:"workforce"`
	HoursWorked  float64 `json:"hours_worked"`
	Accidents    float64 `json:"accidents"`
	LostWorkdays float64 `json:"lost_workdays"`
	TF           float64 `gorm:"column:tf" json:"tf"`
	TG           float64 `gorm:"column:tg" json:"tg"`

	CumulativeHoursWorked  float64 `json:"cumulative_hours_worked"`
	CumulativeAccidents    float64 `json:"cumulative_accidents"`
	CumulativeLostWorkdays float64 `json:"cumulative_lost_workdays"`
	CumulativeTF           float64 `gorm:"column:cumulative_tf" json:"cumulative_tf"`
	CumulativeTG           float64 `gorm:"column:cumulative_tg" json:"cumulative_tg"`

	Metrics            datatypes.JSONType[kpi.Figures]        `json:"metrics"`
	CumulativeMetrics  datatypes.JSONType[kpi.Figures]        `json:"cumulative_metrics"`
	PriorCumulative    datatypes.JSONType[kpi.Figures]        `json:"prior_cumulative"`
	DeviationBreakdown datatypes.JSONType[map[string]int64]   `json:"deviation_breakdown"`
	CollectErrors      datatypes.JSONType[[]kpi.CollectError] `json:"collect_errors"`
	MissingFields      datatypes.JSONSlice[string]            `json:"missing_fields"`

	lifecycle.ReportState

	GeneratedAt time.Time `json:"generated_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (WeeklyKpiReport) TableName() string { return "weekly_kpi_reports" }

// BeforeSave recomputes the safety rates from the stored counts on every write.
func (r *WeeklyKpiReport) BeforeSave(tx *gorm.DB) error {
	r.RefreshRates()
	return nil
}

// RefreshRates derives TF and TG for the week and cumulative scopes.
func (r *WeeklyKpiReport) RefreshRates() {
	week := kpi.ComputeRates(r.Accidents, r.LostWorkdays, r.HoursWorked)
	r.TF, r.TG = week.TF, week.TG

	cum := kpi.ComputeRates(r.CumulativeAccidents, r.CumulativeLostWorkdays, r.CumulativeHoursWorked)
	r.CumulativeTF, r.CumulativeTG = cum.TF, cum.TG

	if m := r.Metrics.Data(); m != nil {
		m = m.Clone()
		m[kpi.FrequencyRate], m[kpi.SeverityRate] = week.TF, week.TG
		r.Metrics = datatypes.NewJSONType(m)
	}
	if m := r.CumulativeMetrics.Data(); m != nil {
		m = m.Clone()
		m[kpi.FrequencyRate], m[kpi.SeverityRate] = cum.TF, cum.TG
		r.CumulativeMetrics = datatypes.NewJSONType(m)
	}
}

// ApplyResult copies a computed week into the report's aggregate columns.
func (r *WeeklyKpiReport) ApplyResult(res kpi.Result, now time.Time) {
	r.WeekNumber = res.Window.Week.Number
	r.ReportYear = res.Window.Week.Year
	r.PeriodStart = res.Window.Start
	r.PeriodEnd = res.Window.End
	r.DaysReported = res.DaysReported
	r.WorkingDays = res.Window.WorkingDays()

	r.Workforce = res.Week.Get(kpi.Workforce)
	r.HoursWorked = res.Week.Get(kpi.HoursWorked)
	r.Accidents = res.Week.Get(kpi.Accidents)
	r.LostWorkdays = res.Week.Get(kpi.LostWorkdays)
	r.CumulativeHoursWorked = res.Cumulative.Get(kpi.HoursWorked)
	r.CumulativeAccidents = res.Cumulative.Get(kpi.Accidents)
	r.CumulativeLostWorkdays = res.Cumulative.Get(kpi.LostWorkdays)

	r.Metrics = datatypes.NewJSONType(res.Week)
	r.CumulativeMetrics = datatypes.NewJSONType(res.Cumulative)
	r.PriorCumulative = datatypes.NewJSONType(res.PriorCumulative)
	breakdown := res.Collaborators.DeviationsByCategory
	if breakdown == nil {
		breakdown = map[string]int64{}
	}
	r.DeviationBreakdown = datatypes.NewJSONType(breakdown)
	r.CollectErrors = datatypes.NewJSONType(res.Collaborators.Errors)
	r.MissingFields = datatypes.JSONSlice[string](res.Missing)
	r.GeneratedAt = now

	r.RefreshRates()
}

// MissingMandatory lists the mandatory fields that are not populated.
func (r *WeeklyKpiReport) MissingMandatory() []string {
	var missing []string
	if r.DaysReported == 0 {
		missing = append(missing, "daily_snapshots")
	}
	return append(missing, r.MissingFields...)
}

// Export returns the flat metric maps consumed by report renderers.
func (r *WeeklyKpiReport) Export() map[string]interface{} {
	return map[string]interface{}{
		"project_id":       r.ProjectID,
		"week_number":      r.WeekNumber,
		"report_year":      r.ReportYear,
		"period_start":     r.PeriodStart.Format("2006-01-02"),
		"period_end":       r.PeriodEnd.Format("2006-01-02"),
		"status":           r.Status,
		"week":             r.Metrics.Data(),
		"cumulative":       r.CumulativeMetrics.Data(),
		"prior_cumulative": r.PriorCumulative.Data(),
	}
}
