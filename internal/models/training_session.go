package models

import "time"

// TrainingSession is a toolbox or formal training held on a project.
type TrainingSession struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"index:idx_training_project_date;not null" json:"project_id"`
	SessionDate   time.Time `gorm:"index:idx_training_project_date;not null" json:"session_date"`
	Topic         string    `gorm:"size:300" json:"topic"`
	Trainer       string    `gorm:"size:200" json:"trainer"`
	Participants  int       `json:"participants"`
	DurationHours float64   `json:"duration_hours"`
	CreatedBy     uint      `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (TrainingSession) TableName() string { return "training_sessions" }

// PersonHours is participants times duration.
func (t TrainingSession) PersonHours() float64 {
	return float64(t.Participants) * t.DurationHours
}

// AwarenessSession is a short HSE awareness talk.
type AwarenessSession struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"index:idx_awareness_project_date;not null" json:"project_id"`
	SessionDate   time.Time `gorm:"index:idx_awareness_project_date;not null" json:"session_date"`
	Topic         string    `gorm:"size:300" json:"topic"`
	Participants  int       `json:"participants"`
	DurationHours float64   `json:"duration_hours"`
	CreatedBy     uint      `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AwarenessSession) TableName() string { return "awareness_sessions" }
