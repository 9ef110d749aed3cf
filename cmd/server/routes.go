package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/handlers"
	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) *middleware.RateLimiter {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	// Rate limiter for bulk snapshot imports
	importLimiter := middleware.PerMinute(svc.cfg.RateLimit.ImportPerMinute, svc.cfg.RateLimit.ImportBurst)

	// Health check
	healthHandler := handlers.NewHealthHandler(svc.db)
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.db))

	projectHandler := handlers.NewProjectHandler(svc.db)
	snapshotHandler := handlers.NewSnapshotHandler(svc.snapshots)
	reportHandler := handlers.NewReportHandler(svc.weekly)
	deviationHandler := handlers.NewDeviationHandler(svc.deviation)
	dashboardHandler := handlers.NewDashboardHandler(svc.db)
	systemLogHandler := handlers.NewSystemLogHandler(svc.db)
	systemConfigHandler := handlers.NewSystemConfigHandler(svc.db, svc.holidays)

	api := r.Group("/api")
	{
		// SSE Events (public route with internal token validation)
		sseHandler := handlers.NewSSEHandler(services.GetSSEHub())
		api.GET("/events", sseHandler.StreamEvents)

		// Read routes (all roles)
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)

			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)

			protected.GET("/projects/:id/snapshots", snapshotHandler.List)
			protected.GET("/projects/:id/snapshots/:date", snapshotHandler.Get)
			protected.GET("/projects/:id/weeks/:year/:week", reportHandler.View)
			protected.GET("/projects/:id/weeks/:year/:week/report", reportHandler.GetByWeek)
			protected.GET("/projects/:id/weeks/:year/:week/snapshots", snapshotHandler.ListWeek)

			protected.GET("/projects/:id/deviations", deviationHandler.List)
			protected.GET("/projects/:id/deviations/pinned", deviationHandler.Pinned)
			protected.GET("/projects/:id/deviations/breakdown", deviationHandler.Breakdown)
			protected.GET("/deviations/:id", deviationHandler.GetByID)

			protected.GET("/reports", reportHandler.List)
			protected.GET("/reports/:id", reportHandler.GetByID)
			protected.GET("/reports/:id/export", reportHandler.Export)

			protected.GET("/system-config/holiday-countries", systemConfigHandler.GetHolidayCountries)
		}

		// Site entry (HSE officers and above)
		officer := api.Group("")
		officer.Use(middleware.AuthRequired(), middleware.RoleRequired(middleware.RoleOfficer, middleware.RoleReviewer), middleware.AuditLog())
		{
			officer.PUT("/projects/:id/snapshots", snapshotHandler.Upsert)
			officer.POST("/projects/:id/snapshots/:date/submit", snapshotHandler.Submit)
			officer.POST("/projects/:id/snapshots/:date/reopen", snapshotHandler.Reopen)
			officer.POST("/projects/:id/snapshots/import", importLimiter.Middleware(), snapshotHandler.Import)

			officer.POST("/projects/:id/deviations", deviationHandler.Create)
			officer.POST("/deviations/:id/start", deviationHandler.Start)
			officer.POST("/deviations/:id/corrective-action", deviationHandler.CorrectiveAction)

			officer.POST("/projects/:id/reports/generate", reportHandler.Generate)
			officer.POST("/reports/:id/submit", reportHandler.Submit)
		}

		// Approval (reviewers)
		reviewer := api.Group("")
		reviewer.Use(middleware.AuthRequired(), middleware.RoleRequired(middleware.RoleReviewer), middleware.AuditLog())
		{
			reviewer.POST("/reports/:id/approve", reportHandler.Approve)
			reviewer.POST("/reports/:id/reject", reportHandler.Reject)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			admin.POST("/projects", projectHandler.Create)
			admin.PUT("/projects/:id", projectHandler.Update)

			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", systemLogHandler.GetRetentionDays)
			admin.PUT("/system-logs/retention", systemLogHandler.SetRetentionDays)
			admin.POST("/system-logs/cleanup", systemLogHandler.Cleanup)

			admin.GET("/system-config/:group", systemConfigHandler.GetGroup)
			admin.PUT("/system-config/settings/:key", systemConfigHandler.Update)
		}
	}

	return importLimiter
}
