package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

type AlertHandler struct {
	db *storage.PostgresStore
}

func NewAlertHandler(db *storage.PostgresStore) *AlertHandler {
	return &AlertHandler{db: db}
}

func (h *AlertHandler) List(c *gin.Context) {
	customerID := c.Query("customer_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	alerts, err := h.db.ListAlerts(c.Request.Context(), customerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, dto.AlertResponse{
			ID:            a.ID,
			CustomerID:    a.CustomerID,
			CounterpartID: a.CounterpartID,
			Source:        a.Source,
			HitCount:      a.HitCount,
			MaxSimilarity: a.MaxSimilarity,
			Message:       a.Message,
			MessageID:     a.MessageID,
			CreatedAt:     a.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"alerts": resp, "total": len(resp)})
}
