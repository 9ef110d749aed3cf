package models

import (
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"gorm.io/datatypes"
)

// DailySnapshot holds one day of HSE figures for a project. A nil metric means
// the value was not entered.
type DailySnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_snapshot_project_date;not null" json:"project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	EntryDate time.Time `gorm:"uniqueIndex:idx_snapshot_project_date;not null" json:"entry_date"`

	Workforce              *float64 `json:"workforce"`
	HoursWorked            *float64 `json:"hours_worked"`
	Inductions             *float64 `json:"inductions"`
	Inspections            *float64 `json:"inspections"`
	TrainingHours          *float64 `json:"training_hours"`
	WorkPermits            *float64 `json:"work_permits"`
	DisciplinaryActions    *float64 `json:"disciplinary_actions"`
	LostWorkdays           *float64 `json:"lost_workdays"`
	Accidents              *float64 `json:"accidents"`
	NearMisses             *float64 `json:"near_misses"`
	FirstAidCases          *float64 `json:"first_aid_cases"`
	WaterConsumption       *float64 `json:"water_consumption"`
	ElectricityConsumption *float64 `json:"electricity_consumption"`
	HSEComplianceRate      *float64 `gorm:"column:hse_compliance_rate" json:"hse_compliance_rate"`
	MedicalComplianceRate  *float64 `json:"medical_compliance_rate"`
	NoiseLevel             *float64 `json:"noise_level"`

	// RecordedZeros lists averaged metrics whose 0 was actually measured.
	RecordedZeros datatypes.JSONSlice[string] `json:"recorded_zeros"`

	Status      lifecycle.SnapshotStatus `gorm:"size:20;default:draft;index" json:"status"`
	Notes       string                   `gorm:"type:text" json:"notes"`
	SubmittedBy *uint                    `json:"submitted_by"`
	SubmittedAt *time.Time               `json:"submitted_at"`
	CreatedBy   uint                     `json:"created_by"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`

	// Read-only figures filled from collaborators when the snapshot is read.
	DeviationCount       int64   `gorm:"-" json:"deviation_count"`
	TrainingPersonHours  float64 `gorm:"-" json:"training_person_hours"`
	AwarenessPersonHours float64 `gorm:"-" json:"awareness_person_hours"`
	InspectionsLogged    int64   `gorm:"-" json:"inspections_logged"`
}

func (DailySnapshot) TableName() string { return "daily_snapshots" }

// metricFields maps metric identifiers to the snapshot's value slots.
func (s *DailySnapshot) metricFields() map[string]**float64 {
	return map[string]**float64{
		kpi.Workforce:              &s.Workforce,
		kpi.HoursWorked:            &s.HoursWorked,
		kpi.Inductions:             &s.Inductions,
		kpi.Inspections:            &s.Inspections,
		kpi.TrainingHours:          &s.TrainingHours,
		kpi.WorkPermits:            &s.WorkPermits,
		kpi.DisciplinaryActions:    &s.DisciplinaryActions,
		kpi.LostWorkdays:           &s.LostWorkdays,
		kpi.Accidents:              &s.Accidents,
		kpi.NearMisses:             &s.NearMisses,
		kpi.FirstAidCases:          &s.FirstAidCases,
		kpi.WaterConsumption:       &s.WaterConsumption,
		kpi.ElectricityConsumption: &s.ElectricityConsumption,
		kpi.HSEComplianceRate:      &s.HSEComplianceRate,
		kpi.MedicalComplianceRate:  &s.MedicalComplianceRate,
		kpi.NoiseLevel:             &s.NoiseLevel,
	}
}

// Value returns the entered value of a metric.
func (s *DailySnapshot) Value(metric string) *float64 {
	if p, ok := s.metricFields()[metric]; ok {
		return *p
	}
	return nil
}

// SetValue stores a metric value; it reports false for metrics not entered daily.
func (s *DailySnapshot) SetValue(metric string, v *float64) bool {
	p, ok := s.metricFields()[metric]
	if !ok {
		return false
	}
	*p = v
	return true
}

// Values returns every daily metric keyed by name.
func (s *DailySnapshot) Values() map[string]*float64 {
	fields := s.metricFields()
	out := make(map[string]*float64, len(fields))
	for name, p := range fields {
		out[name] = *p
	}
	return out
}

// ToDaily converts the snapshot into aggregator input.
func (s *DailySnapshot) ToDaily() kpi.DailyValues {
	zeros := make(map[string]bool, len(s.RecordedZeros))
	for _, name := range s.RecordedZeros {
		zeros[name] = true
	}
	return kpi.DailyValues{
		Date:          s.EntryDate,
		Submitted:     s.Status == lifecycle.SnapshotSubmitted,
		Values:        s.Values(),
		RecordedZeros: zeros,
	}
}

// ApplyCollaborators fills the read-only figures for the snapshot's day.
func (s *DailySnapshot) ApplyCollaborators(d kpi.DayCounts) {
	s.DeviationCount = d.Deviations
	s.TrainingPersonHours = d.TrainingPersonHours
	s.AwarenessPersonHours = d.AwarenessPersonHours
	s.InspectionsLogged = d.Inspections
}
