package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enterDay stores and submits one day with every mandatory metric.
func (e *testEnv) enterDay(projectID uint, date string, hours, accidents, lost float64) {
	e.t.Helper()
	base := fmt.Sprintf("/api/projects/%d/snapshots", projectID)
	values := map[string]float64{
		"workforce":     10,
		"hours_worked":  hours,
		"inductions":    1,
		"accidents":     accidents,
		"lost_workdays": lost,
	}
	requireStatus(e.t, e.do("PUT", base, middleware.RoleOfficer, snapshotBody(date, values)), http.StatusOK)
	requireStatus(e.t, e.do("POST", base+"/"+date+"/submit", middleware.RoleOfficer, nil), http.StatusOK)
	e.queue.Wait()
}

func (e *testEnv) generate(projectID uint, week, year int) *models.WeeklyKpiReport {
	e.t.Helper()
	w := e.do("POST", fmt.Sprintf("/api/projects/%d/reports/generate", projectID), middleware.RoleOfficer,
		map[string]int{"week": week, "year": year})
	requireStatus(e.t, w, http.StatusOK)
	var report models.WeeklyKpiReport
	decode(e.t, w, &report)
	return &report
}

func TestReportHandler_ApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	env.enterDay(p.ID, "2025-01-27", 400, 1, 2)

	report := env.generate(p.ID, 5, 2025)
	assert.Equal(t, 250.0, report.TF)
	assert.Equal(t, 0.5, report.TG)
	assert.Equal(t, "2025-01-25", report.PeriodStart.Format("2006-01-02"))
	assert.Equal(t, "draft", string(report.Status))

	path := fmt.Sprintf("/api/reports/%d", report.ID)
	requireStatus(t, env.do("POST", path+"/approve", middleware.RoleReviewer, nil), http.StatusConflict)
	requireStatus(t, env.do("POST", path+"/submit", middleware.RoleOfficer, nil), http.StatusOK)

	requireStatus(t, env.do("POST", path+"/approve", middleware.RoleOfficer, nil), http.StatusForbidden)

	w := env.do("POST", path+"/reject", middleware.RoleReviewer, map[string]string{"reason": " "})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, "rejection_reason", decode(t, w, nil).Field)

	w = env.do("POST", path+"/approve", middleware.RoleReviewer, nil)
	requireStatus(t, w, http.StatusOK)
	decode(t, w, report)
	assert.Equal(t, "approved", string(report.Status))
	require.NotNil(t, report.ApprovedBy)
	assert.Equal(t, testUsers[middleware.RoleReviewer], *report.ApprovedBy)

	w = env.do("POST", fmt.Sprintf("/api/projects/%d/reports/generate", p.ID), middleware.RoleOfficer,
		map[string]int{"week": 5, "year": 2025})
	requireStatus(t, w, http.StatusConflict)
}

func TestReportHandler_RejectAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	env.enterDay(p.ID, "2025-01-27", 400, 0, 0)
	report := env.generate(p.ID, 5, 2025)
	path := fmt.Sprintf("/api/reports/%d", report.ID)

	requireStatus(t, env.do("POST", path+"/submit", middleware.RoleOfficer, nil), http.StatusOK)
	w := env.do("POST", path+"/reject", middleware.RoleAdmin, map[string]string{"reason": "hours look low"})
	requireStatus(t, w, http.StatusOK)
	decode(t, w, report)
	assert.Equal(t, "rejected", string(report.Status))
	assert.Equal(t, "hours look low", report.RejectionReason)

	w = env.do("POST", path+"/submit", middleware.RoleOfficer, nil)
	requireStatus(t, w, http.StatusOK)
	decode(t, w, report)
	assert.Equal(t, "submitted", string(report.Status))
	assert.Equal(t, 2, report.SubmissionCount)
}

func TestReportHandler_SubmitMissingMandatory(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	report := env.generate(p.ID, 5, 2025)

	w := env.do("POST", fmt.Sprintf("/api/reports/%d/submit", report.ID), middleware.RoleOfficer, nil)
	requireStatus(t, w, http.StatusBadRequest)
	resp := decode(t, w, nil)
	assert.Equal(t, "metrics", resp.Field)
	assert.Contains(t, resp.Message, "daily_snapshots")
}

func TestReportHandler_ViewAndRecompute(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	env.enterDay(p.ID, "2025-01-27", 400, 1, 2)
	base := fmt.Sprintf("/api/projects/%d/weeks/2025/5", p.ID)

	w := env.do("GET", base, "viewer", nil)
	requireStatus(t, w, http.StatusOK)
	var view services.WeekView
	decode(t, w, &view)
	assert.Equal(t, services.StatusNotGenerated, view.Status)
	assert.Equal(t, 400.0, view.Week.Get("hours_worked"))

	requireStatus(t, env.do("GET", base+"/report", "viewer", nil), http.StatusNotFound)

	env.generate(p.ID, 5, 2025)
	env.enterDay(p.ID, "2025-01-28", 100, 0, 0)

	w = env.do("GET", base+"/report", "viewer", nil)
	requireStatus(t, w, http.StatusOK)
	var report models.WeeklyKpiReport
	decode(t, w, &report)
	assert.Equal(t, 500.0, report.HoursWorked, "submitted snapshot triggers a recompute")
	assert.Equal(t, 200.0, report.TF)

	requireStatus(t, env.do("GET", fmt.Sprintf("/api/projects/%d/weeks/2025/54", p.ID), "viewer", nil), http.StatusBadRequest)
}

func TestReportHandler_Export(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	env.enterDay(p.ID, "2025-01-27", 400, 1, 2)
	report := env.generate(p.ID, 5, 2025)
	path := fmt.Sprintf("/api/reports/%d/export", report.ID)

	w := env.do("GET", path, "viewer", nil)
	requireStatus(t, w, http.StatusOK)
	var flat map[string]interface{}
	decode(t, w, &flat)
	assert.Equal(t, "2025-01-31", flat["period_end"])
	assert.Contains(t, flat, "prior_cumulative")

	w = env.do("GET", path+"?format=csv", "viewer", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "W05.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Equal(t, "metric,week,cumulative,prior_cumulative", lines[0])
	assert.Contains(t, lines, "hours_worked,400,400,0")
	assert.Contains(t, lines, "tf,250,250,0")
}

func TestReportHandler_List(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	for _, week := range []int{3, 4, 5} {
		env.generate(p.ID, week, 2025)
	}

	w := env.do("GET", fmt.Sprintf("/api/reports?project_id=%d&page_size=2", p.ID), "viewer", nil)
	requireStatus(t, w, http.StatusOK)
	var resp services.ReportListResponse
	decode(t, w, &resp)
	assert.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 5, resp.Items[0].WeekNumber)

	requireStatus(t, env.do("GET", "/api/reports?page_size=500", "viewer", nil), http.StatusBadRequest)
	requireStatus(t, env.do("GET", "/api/reports/abc", "viewer", nil), http.StatusBadRequest)
	requireStatus(t, env.do("GET", "/api/reports/999", "viewer", nil), http.StatusNotFound)
}
