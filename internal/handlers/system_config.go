package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/services"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService  *services.SystemConfigService
	holidayService *services.HolidayService
}

func NewSystemConfigHandler(db *gorm.DB, holidays *services.HolidayService) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService:  services.NewSystemConfigService(db),
		holidayService: holidays,
	}
}

type UpdateConfigRequest struct {
	Value string `json:"value"`
}

// GetGroup lists the settings of one group (system, scheduler, kpi)
// GET /api/system-config/:group
func (h *SystemConfigHandler) GetGroup(c *gin.Context) {
	configs, err := h.configService.GetByGroup(c.Param("group"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": configs})
}

// Update changes one setting
// PUT /api/system-config/settings/:key
func (h *SystemConfigHandler) Update(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.configService.Update(c.Param("key"), req.Value)
	if err != nil {
		fail(c, err, "setting not found")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *SystemConfigHandler) GetHolidayCountries(c *gin.Context) {
	c.JSON(http.StatusOK, h.holidayService.SupportedCountries())
}
