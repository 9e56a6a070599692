package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "images_processed_total",
		Help:      "Total number of ingested images processed, by result",
	}, []string{"result"}) // indexed | no_face | duplicate | error

	FacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "faces_indexed_total",
		Help:      "Total number of faces indexed into the directory",
	})

	MatchesFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "matches_found_total",
		Help:      "Total number of cross-customer matches recorded in reports",
	})

	ReportsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "reports_written_total",
		Help:      "Total number of match reports persisted",
	})

	AlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "alerts_published_total",
		Help:      "Total number of alert messages accepted by the sink",
	})

	SearchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fw",
		Name:      "search_retries_total",
		Help:      "Total number of retried face directory search calls",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fw",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"}) // index | search | classify | persist | notify

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fw",
		Name:      "queue_depth",
		Help:      "Number of pending object events in the ingest stream",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fw",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fw",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket alert feed connections",
	})
)
