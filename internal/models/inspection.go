package models

import "time"

// Inspection is a site inspection logged by the HSE team.
type Inspection struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProjectID      uint      `gorm:"index:idx_inspection_project_date;not null" json:"project_id"`
	InspectionDate time.Time `gorm:"index:idx_inspection_project_date;not null" json:"inspection_date"`
	Type           string    `gorm:"size:50" json:"type"`
	Inspector      string    `gorm:"size:200" json:"inspector"`
	Findings       string    `gorm:"type:text" json:"findings"`
	CreatedBy      uint      `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Inspection) TableName() string { return "inspections" }
