package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"gorm.io/gorm"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	// Database check
	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Reports waiting for a reviewer
	var pendingCount int64
	if dbStatus == "ok" {
		h.db.Model(&models.WeeklyKpiReport{}).
			Where("status = ?", lifecycle.ReportSubmitted).
			Count(&pendingCount)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "hsekpi",
		"components": gin.H{
			"database":        dbStatus,
			"queue_mode":      queueMode,
			"sse_clients":     services.GetSSEHub().ClientCount(),
			"pending_reports": pendingCount,
		},
	})
}
