package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/facedir"
	"github.com/your-org/facewatch/internal/models"
)

// --- fakes ---

type fakeDirectory struct {
	matches map[string][]models.FaceMatch // imageID → raw matches
	err     error
	calls   []string
}

func (d *fakeDirectory) IndexAndSearch(_ context.Context, _, _, imageID string) ([]models.FaceMatch, error) {
	d.calls = append(d.calls, imageID)
	if d.err != nil {
		return nil, d.err
	}
	m, ok := d.matches[imageID]
	if !ok {
		return nil, facedir.ErrNoFaceDetected
	}
	return m, nil
}

type memReports struct {
	reports map[string]models.MatchReport
	putErr  error
}

func newMemReports() *memReports {
	return &memReports{reports: make(map[string]models.MatchReport)}
}

func (s *memReports) Put(_ context.Context, imageID string, report models.MatchReport) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.reports[imageID] = report
	return nil
}

type fakeGuard struct {
	seen     map[string]bool
	err      error
	released []string
}

func (g *fakeGuard) IsNew(_ context.Context, imageID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[imageID] {
		return false, nil
	}
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	g.seen[imageID] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, imageID string) error {
	delete(g.seen, imageID)
	g.released = append(g.released, imageID)
	return nil
}

func notification(entries ...[2]string) []byte {
	var note models.StorageNotification
	for _, e := range entries {
		var rec models.StorageEventRecord
		rec.EventName = "s3:ObjectCreated:Put"
		rec.S3.Bucket.Name = e[0]
		rec.S3.Object.Key = e[1]
		note.Records = append(note.Records, rec)
	}
	body, _ := json.Marshal(note)
	return body
}

// --- tests ---

func TestMatcher_NoFaceDetected_NoReport(t *testing.T) {
	dir := &fakeDirectory{} // zero indexed faces for every image
	store := newMemReports()
	m := NewMatcher(dir, store, nil)

	err := m.ProcessNotification(context.Background(), notification(
		[2]string{"bucket-in", "images/42_customerA_001.jpg"},
	))

	require.NoError(t, err)
	assert.Empty(t, store.reports, "no report must be written when no face is detected")
}

func TestMatcher_CrossMatchProducesReport(t *testing.T) {
	dir := &fakeDirectory{matches: map[string][]models.FaceMatch{
		"42_customerA_001.jpg": {
			match("7_customerB_003", 95),
			match("42_customerA_000", 99), // self-match, filtered out
		},
	}}
	store := newMemReports()
	m := NewMatcher(dir, store, nil)

	err := m.ProcessNotification(context.Background(), notification(
		[2]string{"bucket-in", "images/42_customerA_001.jpg"},
	))
	require.NoError(t, err)

	report, ok := store.reports["42_customerA_001.jpg"]
	require.True(t, ok, "report must be keyed by image id")
	assert.Equal(t, "bucket-in/images/42_customerA_001.jpg", report.Source)
	assert.Equal(t, "42_customerA", report.CustomerID)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "7_customerB", report.Matches[0].CounterpartID)
	assert.Equal(t, 95.0, report.Matches[0].Similarity)
}

func TestMatcher_AllSelfMatchesWritesEmptyReport(t *testing.T) {
	dir := &fakeDirectory{matches: map[string][]models.FaceMatch{
		"a_1": {match("a_0", 99)},
	}}
	store := newMemReports()
	m := NewMatcher(dir, store, nil)

	err := m.ProcessNotification(context.Background(), notification([2]string{"b", "a_1"}))
	require.NoError(t, err)

	report, ok := store.reports["a_1"]
	require.True(t, ok)
	assert.Empty(t, report.Matches)
}

func TestMatcher_MultipleRecordsInOneMessage(t *testing.T) {
	dir := &fakeDirectory{matches: map[string][]models.FaceMatch{
		"a_1": {match("b_1", 90)},
		"c_1": {match("d_1", 80)},
	}}
	store := newMemReports()
	m := NewMatcher(dir, store, nil)

	err := m.ProcessNotification(context.Background(), notification(
		[2]string{"b", "imgs/a_1"},
		[2]string{"b", "imgs/c_1"},
	))
	require.NoError(t, err)

	assert.Len(t, store.reports, 2)
	assert.Equal(t, []string{"a_1", "c_1"}, dir.calls)
}

func TestMatcher_DirectoryFailureFailsMessage(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory unavailable")}
	store := newMemReports()
	m := NewMatcher(dir, store, nil)

	err := m.ProcessNotification(context.Background(), notification([2]string{"b", "a_1"}))
	require.Error(t, err)
	assert.Empty(t, store.reports)
}

func TestMatcher_GuardSkipsRedeliveredImage(t *testing.T) {
	dir := &fakeDirectory{matches: map[string][]models.FaceMatch{
		"a_1": {match("b_1", 90)},
	}}
	store := newMemReports()
	guard := &fakeGuard{seen: map[string]bool{}}
	m := NewMatcher(dir, store, guard)

	body := notification([2]string{"b", "imgs/a_1"})
	require.NoError(t, m.ProcessNotification(context.Background(), body))
	require.NoError(t, m.ProcessNotification(context.Background(), body))

	// The second delivery must not reach the non-idempotent index call.
	assert.Equal(t, []string{"a_1"}, dir.calls)
	assert.Len(t, store.reports, 1)
}

func TestMatcher_GuardReleasedOnDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory unavailable")}
	store := newMemReports()
	guard := &fakeGuard{seen: map[string]bool{}}
	m := NewMatcher(dir, store, guard)

	body := notification([2]string{"b", "imgs/a_1"})
	require.Error(t, m.ProcessNotification(context.Background(), body))
	require.Empty(t, store.reports)
	assert.Equal(t, []string{"a_1"}, guard.released)

	// Directory recovers; the redelivered message must reprocess the image,
	// not skip it as a duplicate.
	dir.err = nil
	dir.matches = map[string][]models.FaceMatch{"a_1": {match("b_1", 90)}}
	require.NoError(t, m.ProcessNotification(context.Background(), body))

	assert.Equal(t, []string{"a_1", "a_1"}, dir.calls)
	assert.Len(t, store.reports, 1)
}

func TestMatcher_GuardReleasedOnReportWriteFailure(t *testing.T) {
	dir := &fakeDirectory{matches: map[string][]models.FaceMatch{
		"a_1": {match("b_1", 90)},
	}}
	store := newMemReports()
	store.putErr = errors.New("store unavailable")
	guard := &fakeGuard{seen: map[string]bool{}}
	m := NewMatcher(dir, store, guard)

	body := notification([2]string{"b", "imgs/a_1"})
	require.Error(t, m.ProcessNotification(context.Background(), body))
	assert.Equal(t, []string{"a_1"}, guard.released)

	store.putErr = nil
	require.NoError(t, m.ProcessNotification(context.Background(), body))
	assert.Len(t, store.reports, 1)
}

func TestMatcher_GuardKeptOnNoFace(t *testing.T) {
	dir := &fakeDirectory{} // zero indexed faces
	guard := &fakeGuard{seen: map[string]bool{}}
	m := NewMatcher(dir, newMemReports(), guard)

	body := notification([2]string{"b", "imgs/a_1"})
	require.NoError(t, m.ProcessNotification(context.Background(), body))
	require.NoError(t, m.ProcessNotification(context.Background(), body))

	// No-face is a terminal outcome, so the marker stays and the second
	// delivery skips the index call.
	assert.Empty(t, guard.released)
	assert.Equal(t, []string{"a_1"}, dir.calls)
}

func TestMatcher_GuardFailureFailsMessage(t *testing.T) {
	dir := &fakeDirectory{}
	m := NewMatcher(dir, newMemReports(), &fakeGuard{err: errors.New("redis down")})

	err := m.ProcessNotification(context.Background(), notification([2]string{"b", "a_1"}))
	require.Error(t, err)
	assert.Empty(t, dir.calls)
}

func TestMatcher_MalformedBody(t *testing.T) {
	m := NewMatcher(&fakeDirectory{}, newMemReports(), nil)
	err := m.ProcessNotification(context.Background(), []byte("not json"))
	require.Error(t, err)
}
