package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/pkg/response"
)

// maxImportSize caps CSV uploads.
const maxImportSize = 5 << 20

// SnapshotHandler serves daily snapshot entry for a project.
type SnapshotHandler struct {
	snapshotService *services.DailySnapshotService
}

func NewSnapshotHandler(svc *services.DailySnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: svc}
}

// Upsert creates or replaces the draft snapshot of a day
// PUT /api/projects/:id/snapshots
func (h *SnapshotHandler) Upsert(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req services.SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	snap, err := h.snapshotService.Upsert(c.Request.Context(), projectID, &req, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, snap)
}

// Get returns one snapshot with the day's collaborator figures
// GET /api/projects/:id/snapshots/:date
func (h *SnapshotHandler) Get(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	date, ok := dateParam(c, "date")
	if !ok {
		return
	}

	snap, err := h.snapshotService.Get(c.Request.Context(), projectID, date)
	if err != nil {
		fail(c, err, "snapshot not found")
		return
	}

	response.Success(c, snap)
}

// List returns paginated snapshots
// GET /api/projects/:id/snapshots
func (h *SnapshotHandler) List(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req services.SnapshotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.snapshotService.List(projectID, &req)
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, resp)
}

// ListWeek returns the snapshot sheet of a reporting week
// GET /api/projects/:id/weeks/:year/:week/snapshots
func (h *SnapshotHandler) ListWeek(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	week, year, ok := weekParams(c)
	if !ok {
		return
	}

	resp, err := h.snapshotService.ListWeek(c.Request.Context(), projectID, week, year)
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	response.Success(c, resp)
}

// Submit finalises a draft snapshot
// POST /api/projects/:id/snapshots/:date/submit
func (h *SnapshotHandler) Submit(c *gin.Context) {
	h.transition(c, h.snapshotService.Submit)
}

// Reopen returns a submitted snapshot to draft
// POST /api/projects/:id/snapshots/:date/reopen
func (h *SnapshotHandler) Reopen(c *gin.Context) {
	h.transition(c, h.snapshotService.Reopen)
}

func (h *SnapshotHandler) transition(c *gin.Context, op func(context.Context, uint, time.Time, uint) (*models.DailySnapshot, error)) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	date, ok := dateParam(c, "date")
	if !ok {
		return
	}

	snap, err := op(c.Request.Context(), projectID, date, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "snapshot not found")
		return
	}

	response.Success(c, snap)
}

// Import bulk-loads snapshots from CSV, sent either as the "file" field of a
// multipart form or as the raw request body.
// POST /api/projects/:id/snapshots/import
func (h *SnapshotHandler) Import(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			response.BadRequest(c, "file is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		defer f.Close()
		src = f
	}

	result, err := h.snapshotService.Import(c.Request.Context(), projectID, src, middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "project not found")
		return
	}

	c.Header("X-Import-Errors", strconv.Itoa(len(result.Errors)))
	response.Success(c, result)
}
