package models

import (
	"time"

	"gorm.io/gorm"
)

// Project represents a construction site that reports HSE figures
type Project struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Code        string         `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Location    string         `gorm:"size:300" json:"location"`
	Client      string         `gorm:"size:200" json:"client"`
	CountryCode string         `gorm:"size:10;default:NONE" json:"country_code"` // holiday calendar: FR, MA, CN, NONE...
	StartDate   *time.Time     `json:"start_date"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }
