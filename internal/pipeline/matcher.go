package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/facewatch/internal/facedir"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
)

// Directory indexes an image into the face collection and returns similar
// faces, or facedir.ErrNoFaceDetected when the image holds no indexable face.
type Directory interface {
	IndexAndSearch(ctx context.Context, bucket, objectKey, imageID string) ([]models.FaceMatch, error)
}

// ReportStore persists one report per processed image.
type ReportStore interface {
	Put(ctx context.Context, imageID string, report models.MatchReport) error
}

// IndexGuard marks image ids before indexing so redeliveries skip the
// non-idempotent index call. Release undoes the mark when processing fails,
// otherwise the redelivery would skip the image and the report would never be
// written. Optional.
type IndexGuard interface {
	IsNew(ctx context.Context, imageID string) (bool, error)
	Release(ctx context.Context, imageID string) error
}

// Matcher runs the ingestion side of the pipeline: identity → index+search →
// classify → persist. It holds no mutable state, so concurrent invocations
// are safe; the invoking consumer bounds parallelism.
type Matcher struct {
	directory Directory
	reports   ReportStore
	guard     IndexGuard // nil disables deduplication
}

func NewMatcher(directory Directory, reports ReportStore, guard IndexGuard) *Matcher {
	return &Matcher{
		directory: directory,
		reports:   reports,
		guard:     guard,
	}
}

// ProcessNotification handles one queue message body: an S3-compatible
// notification wrapping one or more object-created records. A record with no
// detectable face is skipped with a log line and no report. Any other failure
// aborts the message so the queue redelivers it; reports already written for
// earlier records are overwrite-idempotent, so partial progress is safe.
func (m *Matcher) ProcessNotification(ctx context.Context, body []byte) error {
	var note models.StorageNotification
	if err := json.Unmarshal(body, &note); err != nil {
		return fmt.Errorf("unmarshal storage notification: %w", err)
	}

	for _, r := range note.Records {
		if err := m.processRecord(ctx, r.S3.Bucket.Name, r.S3.Object.Key); err != nil {
			observability.ImagesProcessed.WithLabelValues("error").Inc()
			return fmt.Errorf("process %s/%s: %w", r.S3.Bucket.Name, r.S3.Object.Key, err)
		}
	}
	return nil
}

func (m *Matcher) processRecord(ctx context.Context, bucket, objectKey string) error {
	rec, err := RecordFromKey(bucket, objectKey)
	if err != nil {
		return err
	}
	slog.Info("processing image", "bucket", rec.Bucket, "key", rec.ObjectKey,
		"image_id", rec.ImageID, "customer_id", rec.CustomerID)

	if m.guard != nil {
		isNew, err := m.guard.IsNew(ctx, rec.ImageID)
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if !isNew {
			slog.Info("image already indexed, skipping", "image_id", rec.ImageID)
			observability.ImagesProcessed.WithLabelValues("duplicate").Inc()
			return nil
		}
	}

	matches, err := m.directory.IndexAndSearch(ctx, rec.Bucket, rec.ObjectKey, rec.ImageID)
	if err != nil {
		if errors.Is(err, facedir.ErrNoFaceDetected) {
			slog.Info("no face detected, skipping", "image_id", rec.ImageID)
			observability.ImagesProcessed.WithLabelValues("no_face").Inc()
			return nil
		}
		m.release(ctx, rec.ImageID)
		return err
	}
	slog.Info("directory search finished", "image_id", rec.ImageID, "matches", len(matches))

	start := time.Now()
	reportable := Classify(matches, rec.CustomerID)
	observability.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())

	if len(reportable) > 0 {
		slog.Info("matches require review", "image_id", rec.ImageID,
			"customer_id", rec.CustomerID, "cross_matches", len(reportable))
		observability.MatchesFound.Add(float64(len(reportable)))
	}

	report := models.MatchReport{
		Source:     rec.Source(),
		CustomerID: rec.CustomerID,
		Matches:    reportable,
	}

	start = time.Now()
	if err := m.reports.Put(ctx, rec.ImageID, report); err != nil {
		m.release(ctx, rec.ImageID)
		return err
	}
	observability.StageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	observability.ReportsWritten.Inc()
	observability.ImagesProcessed.WithLabelValues("indexed").Inc()
	return nil
}

// release frees the dedup marker after a failed run so the redelivered
// message reprocesses the image.
func (m *Matcher) release(ctx context.Context, imageID string) {
	if m.guard == nil {
		return
	}
	if err := m.guard.Release(ctx, imageID); err != nil {
		slog.Error("release dedup marker", "image_id", imageID, "error", err)
	}
}
