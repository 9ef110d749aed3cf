package models

import "time"

// Work permit statuses
const (
	PermitActive  = "active"
	PermitExpired = "expired"
	PermitClosed  = "closed"
)

// WorkPermit is a permit-to-work issued for a reporting week.
type WorkPermit struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProjectID  uint       `gorm:"index:idx_permit_project_week;not null" json:"project_id"`
	WeekNumber int        `gorm:"index:idx_permit_project_week;not null" json:"week_number"`
	Year       int        `gorm:"index:idx_permit_project_week;not null" json:"year"`
	PermitType string     `gorm:"size:50" json:"permit_type"` // hot_work, confined_space, height, electrical...
	Reference  string     `gorm:"size:100" json:"reference"`
	IssuedAt   time.Time  `json:"issued_at"`
	ValidUntil *time.Time `gorm:"index" json:"valid_until"`
	Status     string     `gorm:"size:20;default:active;index" json:"status"`
	CreatedBy  uint       `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (WorkPermit) TableName() string { return "work_permits" }
