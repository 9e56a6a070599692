package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
)

func reportWith(customerID string, matches ...models.FaceMatch) models.MatchReport {
	return models.MatchReport{
		Source:     "bucket-in/images/" + customerID + "_001.jpg",
		CustomerID: customerID,
		Matches:    matches,
	}
}

func crossMatch(counterpart string, similarity float64) models.FaceMatch {
	return models.FaceMatch{
		Similarity:    similarity,
		CounterpartID: counterpart,
		Face: models.Face{
			ExternalImageID: counterpart + "_003",
		},
	}
}

// --- Aggregate ---

func TestAggregate_SingleMatchAboveThreshold(t *testing.T) {
	report := reportWith("42_customerA", crossMatch("7_customerB", 95))

	alerts := Aggregate(report, 90)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "42_customerA", a.CustomerID)
	assert.Equal(t, "7_customerB", a.CounterpartID)
	assert.Equal(t, 1, a.HitCount)
	assert.Equal(t, 95.0, a.MaxSimilarity)
	assert.Equal(t,
		"42_customerA, image bucket-in/images/42_customerA_001.jpg, matched 7_customerB 1 times with max similarity 95.000",
		a.Message)
}

func TestAggregate_BelowThresholdEmitsNothing(t *testing.T) {
	report := reportWith("42_customerA", crossMatch("7_customerB", 80))
	assert.Empty(t, Aggregate(report, 90))
}

func TestAggregate_ThresholdIsInclusive(t *testing.T) {
	report := reportWith("a", crossMatch("b", 90))
	assert.Len(t, Aggregate(report, 90), 1)
}

func TestAggregate_GroupsByCounterpart(t *testing.T) {
	report := reportWith("a",
		crossMatch("b", 92),
		crossMatch("b", 97),
		crossMatch("c", 91),
	)

	alerts := Aggregate(report, 90)

	require.Len(t, alerts, 2)
	assert.Equal(t, "b", alerts[0].CounterpartID)
	assert.Equal(t, 2, alerts[0].HitCount)
	assert.Equal(t, 97.0, alerts[0].MaxSimilarity)
	assert.Equal(t, "c", alerts[1].CounterpartID)
	assert.Equal(t, 1, alerts[1].HitCount)
	assert.Equal(t, 91.0, alerts[1].MaxSimilarity)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	matches := []models.FaceMatch{
		crossMatch("b", 92), crossMatch("c", 94),
		crossMatch("b", 97), crossMatch("d", 89),
		crossMatch("c", 93),
	}

	want := Aggregate(reportWith("a", matches...), 90)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]models.FaceMatch(nil), matches...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := Aggregate(reportWith("a", shuffled...), 90)
		assert.Equal(t, want, got)
	}
}

func TestAggregate_EmptyReport(t *testing.T) {
	assert.Empty(t, Aggregate(reportWith("a"), 90))
}

// --- Notify ---

type fakeSettings struct {
	value float64
	err   error
}

func (s *fakeSettings) GetFloatSetting(context.Context, string) (float64, error) {
	return s.value, s.err
}

type fakeReports struct {
	reports map[string]models.MatchReport
}

func (r *fakeReports) Get(_ context.Context, key string) (models.MatchReport, error) {
	report, ok := r.reports[key]
	if !ok {
		return report, fmt.Errorf("report %s not found", key)
	}
	return report, nil
}

type fakeSink struct {
	published []models.AlertMessage
	err       error
}

func (s *fakeSink) PublishAlert(_ context.Context, _ string, data interface{}) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.published = append(s.published, data.(models.AlertMessage))
	return fmt.Sprintf("ALERTS/%d", len(s.published)), nil
}

func reportEvent(bucket, key string) models.StorageEventRecord {
	var event models.StorageEventRecord
	event.S3.Bucket.Name = bucket
	event.S3.Object.Key = key
	return event
}

func TestNotify_PublishesOneAlertPerCounterpart(t *testing.T) {
	reports := &fakeReports{reports: map[string]models.MatchReport{
		"output/42_customerA_001.jpg.json": reportWith("42_customerA",
			crossMatch("7_customerB", 95)),
	}}
	sink := &fakeSink{}
	n := NewNotifier(&fakeSettings{value: 90}, reports, sink, "notification_threshold")

	ids, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/42_customerA_001.jpg.json"))

	require.NoError(t, err)
	assert.Equal(t, []string{"ALERTS/1"}, ids)
	require.Len(t, sink.published, 1)
	assert.Contains(t, sink.published[0].Message, "7_customerB")
	assert.Contains(t, sink.published[0].Message, "1 times with max similarity 95.000")
}

func TestNotify_ZeroAboveThresholdIsSuccess(t *testing.T) {
	reports := &fakeReports{reports: map[string]models.MatchReport{
		"output/a_1.json": reportWith("a", crossMatch("b", 80)),
	}}
	sink := &fakeSink{}
	n := NewNotifier(&fakeSettings{value: 90}, reports, sink, "notification_threshold")

	ids, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/a_1.json"))

	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, sink.published)
}

func TestNotify_URLEncodedKey(t *testing.T) {
	reports := &fakeReports{reports: map[string]models.MatchReport{
		"output/a b_1.json": reportWith("a b", crossMatch("c", 95)),
	}}
	sink := &fakeSink{}
	n := NewNotifier(&fakeSettings{value: 90}, reports, sink, "notification_threshold")

	ids, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/a+b_1.json"))

	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestNotify_ThresholdFetchFailureIsFatal(t *testing.T) {
	sink := &fakeSink{}
	n := NewNotifier(&fakeSettings{err: errors.New("settings unavailable")},
		&fakeReports{}, sink, "notification_threshold")

	_, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/a_1.json"))

	require.Error(t, err)
	assert.Empty(t, sink.published)
}

func TestNotify_MissingReportFails(t *testing.T) {
	n := NewNotifier(&fakeSettings{value: 90},
		&fakeReports{reports: map[string]models.MatchReport{}},
		&fakeSink{}, "notification_threshold")

	_, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/missing.json"))
	require.Error(t, err)
}

func TestNotify_SinkFailureReturnsPartialIDs(t *testing.T) {
	reports := &fakeReports{reports: map[string]models.MatchReport{
		"output/a_1.json": reportWith("a", crossMatch("b", 95), crossMatch("c", 96)),
	}}
	sink := &fakeSink{err: errors.New("sink rejected")}
	n := NewNotifier(&fakeSettings{value: 90}, reports, sink, "notification_threshold")

	ids, err := n.Notify(context.Background(), reportEvent("bucket-out", "output/a_1.json"))

	require.Error(t, err)
	assert.Empty(t, ids)
}
