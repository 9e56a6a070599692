package pipeline

import (
	"fmt"
	"strings"

	"github.com/your-org/facewatch/internal/models"
)

// RecordFromKey derives image and customer identity from an object key.
// The image id is the key's final path segment; the customer id is everything
// before the last underscore. A segment without an underscore maps to itself,
// so the customer id is always a prefix of the image id.
func RecordFromKey(bucket, objectKey string) (models.ImageRecord, error) {
	if objectKey == "" {
		return models.ImageRecord{}, fmt.Errorf("empty object key")
	}

	imageID := objectKey
	if idx := strings.LastIndex(objectKey, "/"); idx >= 0 {
		imageID = objectKey[idx+1:]
	}
	if imageID == "" {
		return models.ImageRecord{}, fmt.Errorf("object key %q has no final segment", objectKey)
	}

	return models.ImageRecord{
		Bucket:     bucket,
		ObjectKey:  objectKey,
		ImageID:    imageID,
		CustomerID: customerIDOf(imageID),
	}, nil
}

// customerIDOf splits an external image id on its last underscore and returns
// the prefix. Ids encode "customerId_sequence".
func customerIDOf(externalImageID string) string {
	if idx := strings.LastIndex(externalImageID, "_"); idx >= 0 {
		return externalImageID[:idx]
	}
	return externalImageID
}
