// Package reports persists match reports as JSON objects, one per processed
// image, keyed by image id under a fixed prefix.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/your-org/facewatch/internal/models"
)

// ObjectStore is the slice of the object store the report store needs.
// Satisfied by *storage.MinIOStore; tests substitute an in-memory fake.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

type Store struct {
	objects ObjectStore
	prefix  string
}

func NewStore(objects ObjectStore, prefix string) *Store {
	return &Store{objects: objects, prefix: strings.TrimSuffix(prefix, "/")}
}

// Key returns the deterministic object key for an image's report.
func (s *Store) Key(imageID string) string {
	return fmt.Sprintf("%s/%s.json", s.prefix, imageID)
}

// Put writes the report under its deterministic key. Reprocessing the same
// image overwrites the previous report with identical content, so redelivery
// is safe on this side of the pipeline.
func (s *Store) Put(ctx context.Context, imageID string, report models.MatchReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", imageID, err)
	}
	if err := s.objects.PutObject(ctx, s.Key(imageID), data, "application/json"); err != nil {
		return fmt.Errorf("persist report %s: %w", imageID, err)
	}
	return nil
}

// Get reads a report by its full object key (as delivered in report-created
// events).
func (s *Store) Get(ctx context.Context, key string) (models.MatchReport, error) {
	var report models.MatchReport
	data, err := s.objects.GetObject(ctx, key)
	if err != nil {
		return report, fmt.Errorf("load report %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("decode report %s: %w", key, err)
	}
	return report, nil
}

// List returns the keys of all persisted reports.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.objects.ListObjects(ctx, s.prefix+"/")
}
