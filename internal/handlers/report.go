package handlers

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/pkg/response"
)

// ReportHandler serves weekly KPI report generation and approval.
type ReportHandler struct {
	reportService *services.WeeklyKpiService
}

func NewReportHandler(svc *services.WeeklyKpiService) *ReportHandler {
	return &ReportHandler{reportService: svc}
}

type GenerateReportRequest struct {
	Week int `json:"week" binding:"required"`
	Year int `json:"year" binding:"required"`
}

type RejectReportRequest struct {
	Reason string `json:"reason"`
}

// Generate computes and stores the report of a project week
// POST /api/projects/:id/reports/generate
func (h *ReportHandler) Generate(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.reportService.Generate(c.Request.Context(), projectID, req.Week, req.Year)
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, report)
}

// View returns the flat metric maps of a project week, computing them live
// when no report is stored yet
// GET /api/projects/:id/weeks/:year/:week
func (h *ReportHandler) View(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	week, year, ok := weekParams(c)
	if !ok {
		return
	}

	view, err := h.reportService.View(c.Request.Context(), projectID, week, year)
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, view)
}

// GetByWeek returns the stored report of a project week
// GET /api/projects/:id/weeks/:year/:week/report
func (h *ReportHandler) GetByWeek(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	week, year, ok := weekParams(c)
	if !ok {
		return
	}

	report, err := h.reportService.Get(c.Request.Context(), projectID, week, year)
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	response.Success(c, report)
}

// List returns paginated reports
// GET /api/reports
func (h *ReportHandler) List(c *gin.Context) {
	var req services.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.reportService.List(&req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// GetByID returns a report by ID
// GET /api/reports/:id
func (h *ReportHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	response.Success(c, report)
}

// Submit sends a report for approval
// POST /api/reports/:id/submit
func (h *ReportHandler) Submit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.Submit(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	response.Success(c, report)
}

// Approve finalises a submitted report
// POST /api/reports/:id/approve
func (h *ReportHandler) Approve(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.Approve(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	response.Success(c, report)
}

// Reject returns a submitted report to its author
// POST /api/reports/:id/reject
func (h *ReportHandler) Reject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req RejectReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.reportService.Reject(c.Request.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	response.Success(c, report)
}

// Export returns the flat metric maps of a report, as JSON or, with
// ?format=csv, as a downloadable sheet.
// GET /api/reports/:id/export
func (h *ReportHandler) Export(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "report not found")
		return
	}

	if c.Query("format") != "csv" {
		response.Success(c, report.Export())
		return
	}

	filename := fmt.Sprintf("hse-kpi-%d-%d-W%02d.csv", report.ProjectID, report.ReportYear, report.WeekNumber)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := writeReportCSV(csv.NewWriter(c.Writer), report); err != nil {
		_ = c.Error(err)
	}
}

// writeReportCSV writes one line per metric, followed by the two rates.
func writeReportCSV(w *csv.Writer, report *models.WeeklyKpiReport) error {
	week := report.Metrics.Data()
	cum := report.CumulativeMetrics.Data()
	prior := report.PriorCumulative.Data()

	if err := w.Write([]string{"metric", "week", "cumulative", "prior_cumulative"}); err != nil {
		return err
	}
	names := make([]string, 0, len(kpi.Metrics)+2)
	for _, def := range kpi.Metrics {
		names = append(names, def.Name)
	}
	names = append(names, kpi.FrequencyRate, kpi.SeverityRate)

	for _, name := range names {
		if err := w.Write([]string{name, formatFloat(week.Get(name)), formatFloat(cum.Get(name)), formatFloat(prior.Get(name))}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
