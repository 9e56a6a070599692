package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/reports"
)

type ReportHandler struct {
	store *reports.Store
}

func NewReportHandler(store *reports.Store) *ReportHandler {
	return &ReportHandler{store: store}
}

func (h *ReportHandler) List(c *gin.Context) {
	keys, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": keys, "total": len(keys)})
}

func (h *ReportHandler) Get(c *gin.Context) {
	imageID := c.Param("imageId")
	report, err := h.store.Get(c.Request.Context(), h.store.Key(imageID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
