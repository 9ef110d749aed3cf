package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/pkg/response"
)

type DeviationHandler struct {
	deviationService *services.DeviationService
	now              func() time.Time
}

func NewDeviationHandler(svc *services.DeviationService) *DeviationHandler {
	return &DeviationHandler{deviationService: svc, now: time.Now}
}

type BreakdownRequest struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// Create records a deviation observed on site
// POST /api/projects/:id/deviations
func (h *DeviationHandler) Create(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req services.CreateDeviationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dev, err := h.deviationService.Create(c.Request.Context(), projectID, &req, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Created(c, dev)
}

// List returns paginated deviations of a project
// GET /api/projects/:id/deviations
func (h *DeviationHandler) List(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req services.DeviationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.deviationService.List(projectID, &req)
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, resp)
}

// Pinned returns deviations still waiting for a corrective action
// GET /api/projects/:id/deviations/pinned
func (h *DeviationHandler) Pinned(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	items, err := h.deviationService.Pinned(c.Request.Context(), projectID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"items": items, "total": len(items)})
}

// Breakdown counts deviations per category, over the current reporting week
// unless a range is given
// GET /api/projects/:id/deviations/breakdown
func (h *DeviationHandler) Breakdown(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req BreakdownRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cw := kpi.CurrentWeek(h.now())
	w, err := kpi.ResolveWeek(cw.Number, cw.Year)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	from, to := w.Start, w.End
	if req.StartDate != "" {
		if from, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			response.BadRequest(c, "invalid start_date, expected YYYY-MM-DD")
			return
		}
	}
	if req.EndDate != "" {
		if to, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			response.BadRequest(c, "invalid end_date, expected YYYY-MM-DD")
			return
		}
	}
	if to.Before(from) {
		response.BadRequest(c, "end_date is before start_date")
		return
	}

	items, total, err := h.deviationService.Breakdown(c.Request.Context(), projectID, from, to)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"start_date": from.Format("2006-01-02"),
		"end_date":   to.Format("2006-01-02"),
		"total":      total,
		"categories": items,
	})
}

// GetByID returns a deviation by ID
// GET /api/deviations/:id
func (h *DeviationHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	dev, err := h.deviationService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "deviation not found")
		return
	}

	response.Success(c, dev)
}

// Start marks a deviation as being worked on
// POST /api/deviations/:id/start
func (h *DeviationHandler) Start(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	dev, err := h.deviationService.Start(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "deviation not found")
		return
	}

	response.Success(c, dev)
}

// CorrectiveAction closes a deviation with its remedy
// POST /api/deviations/:id/corrective-action
func (h *DeviationHandler) CorrectiveAction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req services.CorrectiveActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dev, err := h.deviationService.AddCorrectiveAction(c.Request.Context(), id, &req, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "deviation not found")
		return
	}

	response.Success(c, dev)
}
