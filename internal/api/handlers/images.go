package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

// ImageHandler accepts customer image uploads into the images bucket. The
// write triggers a bucket notification which the ingestor bridge turns into
// an ingest event; the upload itself does not touch the queue.
type ImageHandler struct {
	images *storage.MinIOStore
}

func NewImageHandler(images *storage.MinIOStore) *ImageHandler {
	return &ImageHandler{images: images}
}

// Upload stores the raw request body under images/{image_id}. The image id is
// expected to encode "customerId_sequence"; ids without an underscore are
// treated as their own customer id downstream.
func (h *ImageHandler) Upload(c *gin.Context) {
	imageID := c.Param("imageId")
	if imageID == "" || strings.Contains(imageID, "/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty image body"})
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := "images/" + imageID
	if err := h.images.PutObject(c.Request.Context(), key, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.UploadImageResponse{
		Bucket: h.images.Bucket(),
		Key:    key,
	})
}
