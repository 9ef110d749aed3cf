package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/internal/services"
	"github.com/sitesafe/hsekpi/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Test callers, one per role.
var testUsers = map[string]uint{
	middleware.RoleAdmin:    1,
	middleware.RoleReviewer: 2,
	middleware.RoleOfficer:  3,
	"viewer":                4,
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	queue  *services.SyncQueue
	router *gin.Engine
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	require.NoError(t, models.Seed(db))
	return db
}

// newTestEnv wires the handlers the way the server does, on a private database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")

	db := newTestDB(t)
	collector := services.NewCollector(db)
	holidays := services.NewHolidayService("NONE")
	weekly := services.NewWeeklyKpiService(db, collector, holidays)
	queue := services.NewSyncQueue()
	queue.SetProcessor(services.RecomputeProcessor(weekly, services.NewSystemConfigService(db)))
	t.Cleanup(func() { queue.Close() })

	projects := NewProjectHandler(db)
	snapshots := NewSnapshotHandler(services.NewDailySnapshotService(db, collector, queue))
	reports := NewReportHandler(weekly)
	deviations := NewDeviationHandler(services.NewDeviationService(db, queue))
	configs := NewSystemConfigHandler(db, holidays)

	r := gin.New()
	r.GET("/health", NewHealthHandler(db).CheckHealth)
	r.GET("/metrics", Metrics(db))

	read := r.Group("/api", middleware.AuthRequired())
	read.GET("/projects", projects.List)
	read.GET("/projects/:id", projects.GetByID)
	read.GET("/projects/:id/snapshots", snapshots.List)
	read.GET("/projects/:id/snapshots/:date", snapshots.Get)
	read.GET("/projects/:id/weeks/:year/:week", reports.View)
	read.GET("/projects/:id/weeks/:year/:week/report", reports.GetByWeek)
	read.GET("/projects/:id/weeks/:year/:week/snapshots", snapshots.ListWeek)
	read.GET("/projects/:id/deviations", deviations.List)
	read.GET("/projects/:id/deviations/pinned", deviations.Pinned)
	read.GET("/projects/:id/deviations/breakdown", deviations.Breakdown)
	read.GET("/deviations/:id", deviations.GetByID)
	read.GET("/reports", reports.List)
	read.GET("/reports/:id", reports.GetByID)
	read.GET("/reports/:id/export", reports.Export)

	officer := r.Group("/api", middleware.AuthRequired(), middleware.RoleRequired(middleware.RoleOfficer, middleware.RoleReviewer))
	officer.PUT("/projects/:id/snapshots", snapshots.Upsert)
	officer.POST("/projects/:id/snapshots/:date/submit", snapshots.Submit)
	officer.POST("/projects/:id/snapshots/:date/reopen", snapshots.Reopen)
	officer.POST("/projects/:id/snapshots/import", snapshots.Import)
	officer.POST("/projects/:id/deviations", deviations.Create)
	officer.POST("/deviations/:id/start", deviations.Start)
	officer.POST("/deviations/:id/corrective-action", deviations.CorrectiveAction)
	officer.POST("/projects/:id/reports/generate", reports.Generate)
	officer.POST("/reports/:id/submit", reports.Submit)

	reviewer := r.Group("/api", middleware.AuthRequired(), middleware.RoleRequired(middleware.RoleReviewer))
	reviewer.POST("/reports/:id/approve", reports.Approve)
	reviewer.POST("/reports/:id/reject", reports.Reject)

	admin := r.Group("/api", middleware.AuthRequired(), middleware.AdminRequired())
	admin.POST("/projects", projects.Create)
	admin.PUT("/projects/:id", projects.Update)
	admin.GET("/system-config/:group", configs.GetGroup)
	admin.PUT("/system-config/settings/:key", configs.Update)

	return &testEnv{t: t, db: db, queue: queue, router: r}
}

// do sends a request as the given role ("" for anonymous). A string body is
// sent as CSV, anything else as JSON.
func (e *testEnv) do(method, path, role string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var rd io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		rd, contentType = bytes.NewBufferString(b), "text/csv"
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd, contentType = bytes.NewReader(raw), "application/json"
	}

	req := httptest.NewRequest(method, path, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		token, err := utils.GenerateToken(testUsers[role], role+"-user", role, 1)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode parses the response envelope and, when out is set, its data.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

func (e *testEnv) createProject(code string) *models.Project {
	e.t.Helper()
	p := &models.Project{Name: "Site " + code, Code: code, CountryCode: "NONE", IsActive: true}
	require.NoError(e.t, e.db.Create(p).Error)
	return p
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
