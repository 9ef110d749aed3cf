package models

import (
	"time"

	"github.com/sitesafe/hsekpi/internal/lifecycle"
)

// DeviationCategory classifies a safety observation.
type DeviationCategory string

const (
	CategoryPPE             DeviationCategory = "ppe"
	CategoryHousekeeping    DeviationCategory = "housekeeping"
	CategoryWorkingAtHeight DeviationCategory = "working_at_height"
	CategoryElectrical      DeviationCategory = "electrical"
	CategoryLifting         DeviationCategory = "lifting"
	CategoryExcavation      DeviationCategory = "excavation"
	CategoryFire            DeviationCategory = "fire"
	CategoryChemical        DeviationCategory = "chemical"
	CategoryTraffic         DeviationCategory = "traffic"
	CategoryScaffolding     DeviationCategory = "scaffolding"
	CategoryEnvironment     DeviationCategory = "environment"
	CategoryOther           DeviationCategory = "other"
)

// DeviationCategories is the closed set of categories in display order.
var DeviationCategories = []DeviationCategory{
	CategoryPPE, CategoryHousekeeping, CategoryWorkingAtHeight, CategoryElectrical,
	CategoryLifting, CategoryExcavation, CategoryFire, CategoryChemical,
	CategoryTraffic, CategoryScaffolding, CategoryEnvironment, CategoryOther,
}

// Valid reports whether c belongs to the category set.
func (c DeviationCategory) Valid() bool {
	for _, known := range DeviationCategories {
		if c == known {
			return true
		}
	}
	return false
}

// DeviationReport is a safety observation report (SOR) raised on site.
type DeviationReport struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ProjectID     uint              `gorm:"index:idx_deviation_project_observed;not null" json:"project_id"`
	Project       *Project          `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ObservedAt    time.Time         `gorm:"index:idx_deviation_project_observed;not null" json:"observed_at"`
	Zone          string            `gorm:"size:200" json:"zone"`
	Company       string            `gorm:"size:200" json:"company"`
	Category      DeviationCategory `gorm:"size:50;index;not null" json:"category"`
	NonConformity string            `gorm:"type:text;not null" json:"non_conformity"`
	PhotoRef      string            `gorm:"size:500" json:"photo_ref"`
	ReportedBy    uint              `json:"reported_by"`

	lifecycle.DeviationState

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DeviationReport) TableName() string { return "deviation_reports" }
