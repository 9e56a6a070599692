// Package notify turns persisted match reports into per-counterpart alerts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
)

// ThresholdSource provides the live-tunable similarity threshold. It is read
// fresh on every invocation; caching would hide operator changes.
type ThresholdSource interface {
	GetFloatSetting(ctx context.Context, name string) (float64, error)
}

// ReportGetter loads a persisted report by object key.
type ReportGetter interface {
	Get(ctx context.Context, key string) (models.MatchReport, error)
}

// AlertSink accepts one alert message and returns its assigned identifier.
type AlertSink interface {
	PublishAlert(ctx context.Context, customerID string, data interface{}) (string, error)
}

type Notifier struct {
	settings    ThresholdSource
	reports     ReportGetter
	sink        AlertSink
	settingName string
}

func NewNotifier(settings ThresholdSource, reports ReportGetter, sink AlertSink, settingName string) *Notifier {
	return &Notifier{
		settings:    settings,
		reports:     reports,
		sink:        sink,
		settingName: settingName,
	}
}

// Notify handles one report-created event and returns the sink-assigned
// message ids, one per distinct counterpart above the threshold. Zero
// surviving matches means zero alerts and success. A threshold fetch failure
// is fatal for the whole invocation.
func (n *Notifier) Notify(ctx context.Context, event models.StorageEventRecord) ([]string, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("notify").Observe(time.Since(start).Seconds())
	}()

	// Object keys arrive URL-encoded in storage events.
	key, err := url.QueryUnescape(event.S3.Object.Key)
	if err != nil {
		return nil, fmt.Errorf("decode object key %q: %w", event.S3.Object.Key, err)
	}

	threshold, err := n.settings.GetFloatSetting(ctx, n.settingName)
	if err != nil {
		return nil, fmt.Errorf("fetch notification threshold: %w", err)
	}

	report, err := n.reports.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	alerts := Aggregate(report, threshold)

	ids := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		id, err := n.sink.PublishAlert(ctx, alert.CustomerID, alert)
		if err != nil {
			return ids, fmt.Errorf("publish alert for %s: %w", alert.CounterpartID, err)
		}
		observability.AlertsPublished.Inc()
		ids = append(ids, id)
	}

	slog.Info("notification finished", "report", key,
		"threshold", threshold, "alerts", len(ids))
	return ids, nil
}

// Aggregate filters a report's matches to those at or above threshold and
// folds them into one AlertMessage per distinct counterpart, carrying the
// group's hit count and maximum similarity. Pure; the result is independent
// of the match list's order (groups come out sorted by counterpart id).
func Aggregate(report models.MatchReport, threshold float64) []models.AlertMessage {
	type group struct {
		hits int
		max  float64
	}
	groups := make(map[string]*group)

	for _, m := range report.Matches {
		if m.Similarity < threshold {
			continue
		}
		g, ok := groups[m.CounterpartID]
		if !ok {
			g = &group{}
			groups[m.CounterpartID] = g
		}
		g.hits++
		if m.Similarity > g.max {
			g.max = m.Similarity
		}
	}

	counterparts := make([]string, 0, len(groups))
	for id := range groups {
		counterparts = append(counterparts, id)
	}
	sort.Strings(counterparts)

	alerts := make([]models.AlertMessage, 0, len(groups))
	for _, id := range counterparts {
		g := groups[id]
		alert := models.AlertMessage{
			CustomerID:    report.CustomerID,
			Source:        report.Source,
			CounterpartID: id,
			HitCount:      g.hits,
			MaxSimilarity: g.max,
		}
		alert.Message = alert.Render()
		alerts = append(alerts, alert)
	}
	return alerts
}

// DecodeAlert unmarshals a sink payload back into an AlertMessage (used by
// the API's alert feed consumer).
func DecodeAlert(data []byte) (models.AlertMessage, error) {
	var alert models.AlertMessage
	if err := json.Unmarshal(data, &alert); err != nil {
		return alert, fmt.Errorf("decode alert: %w", err)
	}
	return alert, nil
}
