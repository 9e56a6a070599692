// Package facedir is a thin client for the external managed face directory.
// Indexing, matching and similarity scoring are entirely the directory's job;
// this adapter only sequences the calls and shapes the results.
package facedir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
)

// ErrNoFaceDetected reports that indexing found zero faces in the image.
// This is an expected outcome, not a failure: callers skip the image.
var ErrNoFaceDetected = errors.New("no face detected in image")

const headerAPIKey = "X-API-Key"

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cfg     config.FaceDirConfig

	// Search retry tuning, overridable in tests.
	retryMinWait time.Duration
	retryMaxWait time.Duration
}

func NewClient(cfg config.FaceDirConfig) *Client {
	return &Client{
		http:         &http.Client{Timeout: 30 * time.Second},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		cfg:          cfg,
		retryMinWait: 1 * time.Second,
		retryMaxWait: 10 * time.Second,
	}
}

type indexRequest struct {
	ExternalImageID string `json:"external_image_id"`
	Image           struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	} `json:"image"`
	MaxFaces      int    `json:"max_faces"`
	QualityFilter string `json:"quality_filter"`
}

type indexResponse struct {
	FaceRecords []struct {
		Face models.Face `json:"face"`
	} `json:"face_records"`
}

type searchRequest struct {
	FaceID             string  `json:"face_id"`
	FaceMatchThreshold float64 `json:"face_match_threshold"`
	MaxFaces           int     `json:"max_faces"`
}

type searchResponse struct {
	FaceMatches []struct {
		Similarity float64     `json:"similarity"`
		Face       models.Face `json:"face"`
	} `json:"face_matches"`
}

// IndexAndSearch indexes the image under externalImageID and searches the
// collection for similar faces. The index call runs exactly once: retrying it
// would create a duplicate face entry under the same external id. The search
// call is side-effect free and retried on transient failure. Matches keep the
// directory's own ranking.
func (c *Client) IndexAndSearch(ctx context.Context, bucket, objectKey, imageID string) ([]models.FaceMatch, error) {
	start := time.Now()
	faceID, err := c.indexFace(ctx, bucket, objectKey, imageID)
	observability.StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	observability.FacesIndexed.Inc()

	start = time.Now()
	matches, err := c.searchFacesRetry(ctx, faceID)
	observability.StageDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *Client) indexFace(ctx context.Context, bucket, objectKey, imageID string) (string, error) {
	req := indexRequest{
		ExternalImageID: imageID,
		MaxFaces:        c.cfg.MaxFacesIndex,
		QualityFilter:   "auto",
	}
	req.Image.Bucket = bucket
	req.Image.Key = objectKey

	var resp indexResponse
	url := fmt.Sprintf("%s/v1/collections/%s/faces", c.baseURL, c.cfg.CollectionID)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return "", fmt.Errorf("index face %s: %w", imageID, err)
	}

	if len(resp.FaceRecords) == 0 {
		return "", ErrNoFaceDetected
	}
	return resp.FaceRecords[0].Face.FaceID, nil
}

// searchFacesRetry retries the search up to cfg.SearchRetries attempts with
// exponential backoff (0.2s multiplier, clamped to [1s, 10s]).
func (c *Client) searchFacesRetry(ctx context.Context, faceID string) ([]models.FaceMatch, error) {
	attempts := c.cfg.SearchRetries
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			observability.SearchRetries.Inc()
			wait := c.backoff(attempt)
			slog.Warn("retrying face search", "face_id", faceID, "attempt", attempt+1, "wait", wait.String())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		matches, err := c.searchFaces(ctx, faceID)
		if err == nil {
			return matches, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search faces (after %d attempts): %w", attempts, lastErr)
}

func (c *Client) searchFaces(ctx context.Context, faceID string) ([]models.FaceMatch, error) {
	req := searchRequest{
		FaceID:             faceID,
		FaceMatchThreshold: c.cfg.MatchThreshold,
		MaxFaces:           c.cfg.MaxFacesMatch,
	}

	var resp searchResponse
	url := fmt.Sprintf("%s/v1/collections/%s/search", c.baseURL, c.cfg.CollectionID)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]models.FaceMatch, 0, len(resp.FaceMatches))
	for _, m := range resp.FaceMatches {
		matches = append(matches, models.FaceMatch{
			Similarity: m.Similarity,
			Face:       m.Face,
		})
	}
	return matches, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := time.Duration(float64(200*time.Millisecond) * float64(int(1)<<attempt))
	if wait < c.retryMinWait {
		wait = c.retryMinWait
	}
	if wait > c.retryMaxWait {
		wait = c.retryMaxWait
	}
	return wait
}

func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call face directory: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face directory returned %d: %s", resp.StatusCode, truncate(data, 256))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
