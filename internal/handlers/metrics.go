package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// Metrics returns a handler serving Prometheus-compatible text format metrics.
func Metrics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var b strings.Builder

		// -- Runtime metrics --
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		writeGauge(&b, "hsekpi_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
		writeGauge(&b, "hsekpi_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
		writeGauge(&b, "hsekpi_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
		writeGauge(&b, "hsekpi_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

		// -- Database metrics --
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				stats := sqlDB.Stats()
				writeGauge(&b, "hsekpi_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
				writeGauge(&b, "hsekpi_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			}
		}

		// -- SSE metrics --
		writeGauge(&b, "hsekpi_sse_active_clients", "Number of active SSE connections", float64(services.GetSSEHub().ClientCount()))

		// -- Queue metrics --
		queueAsync := 0.0
		if q := services.GetTaskQueue(); q != nil && q.IsAsync() {
			queueAsync = 1.0
		}
		writeGauge(&b, "hsekpi_queue_async_enabled", "Whether async recompute queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

		// -- HSE metrics --
		if db != nil {
			var projects int64
			db.Model(&models.Project{}).Where("is_active = ?", true).Count(&projects)
			writeGauge(&b, "hsekpi_projects_active", "Number of active projects", float64(projects))

			for _, st := range []lifecycle.ReportStatus{lifecycle.ReportDraft, lifecycle.ReportSubmitted, lifecycle.ReportApproved, lifecycle.ReportRejected} {
				var n int64
				db.Model(&models.WeeklyKpiReport{}).Where("status = ?", st).Count(&n)
				writeGauge(&b, "hsekpi_reports_"+string(st), "Number of weekly reports in status "+string(st), float64(n))
			}

			var pinned, open int64
			db.Model(&models.DeviationReport{}).Where("pinned = ?", true).Count(&pinned)
			db.Model(&models.DeviationReport{}).Where("status <> ?", lifecycle.DeviationClosed).Count(&open)
			writeGauge(&b, "hsekpi_deviations_pinned", "Deviations waiting for a corrective action", float64(pinned))
			writeGauge(&b, "hsekpi_deviations_open", "Deviations not yet closed", float64(open))

			var drafts int64
			db.Model(&models.DailySnapshot{}).Where("status = ?", lifecycle.SnapshotDraft).Count(&drafts)
			writeGauge(&b, "hsekpi_snapshots_draft", "Daily snapshots not yet submitted", float64(drafts))
		}

		c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
