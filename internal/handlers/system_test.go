package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sitesafe/hsekpi/internal/middleware"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health", "", nil)
	requireStatus(t, w, http.StatusOK)
	var body struct {
		Status     string                 `json:"status"`
		Components map[string]interface{} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Components["database"])
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject("ALPHA")
	env.generate(p.ID, 5, 2025)

	w := env.do("GET", "/metrics", "", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "# TYPE hsekpi_reports_draft gauge\nhsekpi_reports_draft 1\n")
	assert.Contains(t, w.Body.String(), "hsekpi_projects_active 1\n")
}

func TestSystemConfigHandler(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/api/system-config/scheduler", middleware.RoleAdmin, nil)
	requireStatus(t, w, http.StatusOK)
	var group struct {
		Items []models.SystemConfig `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.NotEmpty(t, group.Items)

	w = env.do("PUT", "/api/system-config/settings/backup_time", middleware.RoleAdmin, map[string]string{"value": "25:00"})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, "backup_time", decode(t, w, nil).Field)

	w = env.do("PUT", "/api/system-config/settings/kpi_auto_recompute", middleware.RoleAdmin, map[string]string{"value": "0"})
	requireStatus(t, w, http.StatusOK)
	var cfg models.SystemConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "false", cfg.Value)

	requireStatus(t, env.do("PUT", "/api/system-config/settings/no_such_key", middleware.RoleAdmin, map[string]string{"value": "1"}), http.StatusNotFound)
	requireStatus(t, env.do("GET", "/api/system-config/scheduler", middleware.RoleReviewer, nil), http.StatusForbidden)
}
