package reports

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
)

type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memObjects) ListObjects(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func sampleReport() models.MatchReport {
	return models.MatchReport{
		Source:     "bucket-in/images/42_customerA_001.jpg",
		CustomerID: "42_customerA",
		Matches: []models.FaceMatch{
			{
				Similarity:    95,
				CounterpartID: "7_customerB",
				Face: models.Face{
					FaceID:          "f-1",
					ExternalImageID: "7_customerB_003",
					BoundingBox:     models.BoundingBox{Width: 0.4, Height: 0.5, Left: 0.1, Top: 0.2},
					Confidence:      99.2,
				},
			},
		},
	}
}

func TestStore_Key(t *testing.T) {
	s := NewStore(newMemObjects(), "output")
	assert.Equal(t, "output/42_customerA_001.jpg.json", s.Key("42_customerA_001.jpg"))

	// Trailing slash on the prefix is normalised away.
	s = NewStore(newMemObjects(), "output/")
	assert.Equal(t, "output/a_1.json", s.Key("a_1"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(newMemObjects(), "output")
	want := sampleReport()

	require.NoError(t, s.Put(context.Background(), "42_customerA_001.jpg", want))

	got, err := s.Get(context.Background(), s.Key("42_customerA_001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_OverwriteIsIdempotent(t *testing.T) {
	objects := newMemObjects()
	s := NewStore(objects, "output")
	report := sampleReport()

	require.NoError(t, s.Put(context.Background(), "a_1", report))
	require.NoError(t, s.Put(context.Background(), "a_1", report))

	assert.Len(t, objects.objects, 1)
	got, err := s.Get(context.Background(), s.Key("a_1"))
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestStore_PersistedFieldNames(t *testing.T) {
	objects := newMemObjects()
	s := NewStore(objects, "output")

	require.NoError(t, s.Put(context.Background(), "a_1", sampleReport()))

	raw := string(objects.objects["output/a_1.json"])
	for _, field := range []string{
		`"Source"`, `"CustomerID"`, `"Matches"`, `"Similarity"`,
		`"Face"`, `"FaceId"`, `"ExternalImageId"`, `"BoundingBox"`,
		`"Confidence"`, `"CustomerId"`,
	} {
		assert.Contains(t, raw, field)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore(newMemObjects(), "output")
	_, err := s.Get(context.Background(), "output/missing.json")
	require.Error(t, err)
}

func TestStore_List(t *testing.T) {
	objects := newMemObjects()
	objects.objects["other/x.json"] = []byte("{}")
	s := NewStore(objects, "output")

	require.NoError(t, s.Put(context.Background(), "a_1", sampleReport()))
	require.NoError(t, s.Put(context.Background(), "b_1", sampleReport()))

	keys, err := s.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"output/a_1.json", "output/b_1.json"}, keys)
}
