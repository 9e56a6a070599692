package pipeline

import "github.com/your-org/facewatch/internal/models"

// Classify filters a raw match list down to cross-customer matches and
// attaches the derived counterpart id to each retained match. Matches whose
// counterpart equals ownCustomerID are self-matches: expected, not
// reportable. Pure function, input order preserved.
func Classify(matches []models.FaceMatch, ownCustomerID string) []models.FaceMatch {
	out := make([]models.FaceMatch, 0, len(matches))
	for _, m := range matches {
		counterpart := customerIDOf(m.Face.ExternalImageID)
		if counterpart == ownCustomerID {
			continue
		}
		m.CounterpartID = counterpart
		out = append(out, m)
	}
	return out
}
