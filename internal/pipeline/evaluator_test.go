package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/facewatch/internal/models"
)

func match(externalImageID string, similarity float64) models.FaceMatch {
	return models.FaceMatch{
		Similarity: similarity,
		Face: models.Face{
			FaceID:          "face-" + externalImageID,
			ExternalImageID: externalImageID,
		},
	}
}

func TestClassify_DropsSelfMatches(t *testing.T) {
	matches := []models.FaceMatch{
		match("42_customerA_000", 99.9),
		match("7_customerB_003", 95),
		match("42_customerA_002", 88),
	}

	got := Classify(matches, "42_customerA")

	assert.Len(t, got, 1)
	assert.Equal(t, "7_customerB", got[0].CounterpartID)
	assert.Equal(t, 95.0, got[0].Similarity)
}

func TestClassify_NeverReturnsOwnCustomer(t *testing.T) {
	matches := []models.FaceMatch{
		match("x_1", 50), match("x_2", 60), match("y_1", 70),
		match("x_y_3", 80), match("x", 90),
	}

	for _, own := range []string{"x", "y", "x_y", "z"} {
		for _, m := range Classify(matches, own) {
			assert.NotEqual(t, own, m.CounterpartID, "own customer %q leaked through", own)
		}
	}
}

func TestClassify_AttachesCounterpart(t *testing.T) {
	got := Classify([]models.FaceMatch{match("7_customerB_003", 95)}, "42_customerA")

	assert.Len(t, got, 1)
	assert.Equal(t, "7_customerB", got[0].CounterpartID)
	// Original face payload is preserved
	assert.Equal(t, "7_customerB_003", got[0].Face.ExternalImageID)
}

func TestClassify_EmptyAndAllSelf(t *testing.T) {
	assert.Empty(t, Classify(nil, "a"))
	assert.Empty(t, Classify([]models.FaceMatch{match("a_1", 99), match("a_2", 98)}, "a"))
}

func TestClassify_PreservesOrder(t *testing.T) {
	matches := []models.FaceMatch{
		match("b_1", 97), match("c_1", 95), match("b_2", 92),
	}

	got := Classify(matches, "a")

	assert.Equal(t, []string{"b", "c", "b"}, []string{
		got[0].CounterpartID, got[1].CounterpartID, got[2].CounterpartID,
	})
}
