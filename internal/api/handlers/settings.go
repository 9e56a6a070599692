package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

// SettingsHandler exposes the live-tunable notification threshold. The
// notifier reads it fresh on every invocation, so changes here take effect on
// the next processed report without a restart.
type SettingsHandler struct {
	db          *storage.PostgresStore
	settingName string
}

func NewSettingsHandler(db *storage.PostgresStore, settingName string) *SettingsHandler {
	return &SettingsHandler{db: db, settingName: settingName}
}

func (h *SettingsHandler) GetThreshold(c *gin.Context) {
	value, err := h.db.GetFloatSetting(c.Request.Context(), h.settingName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ThresholdResponse{Name: h.settingName, Value: value})
}

func (h *SettingsHandler) SetThreshold(c *gin.Context) {
	var req dto.SetThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Value < 0 || req.Value > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be between 0 and 100"})
		return
	}

	value := strconv.FormatFloat(req.Value, 'f', -1, 64)
	if err := h.db.SetSetting(c.Request.Context(), h.settingName, value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ThresholdResponse{Name: h.settingName, Value: req.Value})
}
