package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	IngestStreamName   = "INGEST"
	IngestSubjectBase  = "ingest"
	IngestSubject      = "ingest.objects"
	ReportsStreamName  = "REPORTS"
	ReportsSubjectBase = "reports"
	ReportsSubject     = "reports.created"
	AlertsStreamName   = "ALERTS"
	AlertsSubjectBase  = "alerts"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        IngestStreamName,
			Subjects:    []string{IngestSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  2 * time.Minute,
			Description: "Object-created events for the matcher",
		},
		{
			Name:        ReportsStreamName,
			Subjects:    []string{ReportsSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  2 * time.Minute,
			Description: "Report-created events for the notifier",
		},
		{
			Name:        AlertsStreamName,
			Subjects:    []string{AlertsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      7 * 24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Cross-customer match alerts",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishObjectEvent republishes a raw bucket notification body to the ingest
// stream. The payload is kept as-is so the matcher sees the S3-compatible
// Records document unchanged.
func (p *Producer) PublishObjectEvent(ctx context.Context, payload []byte) error {
	_, err := p.js.Publish(ctx, IngestSubject, payload)
	if err != nil {
		return fmt.Errorf("publish object event: %w", err)
	}
	return nil
}

// PublishReportEvent publishes a single report-created record.
func (p *Producer) PublishReportEvent(ctx context.Context, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal report event: %w", err)
	}
	_, err = p.js.Publish(ctx, ReportsSubject, payload)
	if err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}
	return nil
}

// PublishAlert publishes one alert message and returns the sink-assigned
// message identifier (stream/sequence).
func (p *Producer) PublishAlert(ctx context.Context, customerID string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal alert: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", AlertsSubjectBase, subjectToken(customerID))
	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil {
		return "", fmt.Errorf("publish alert: %w", err)
	}
	return fmt.Sprintf("%s/%d", ack.Stream, ack.Sequence), nil
}

// subjectToken maps an arbitrary id onto a valid NATS subject token.
// Customer ids are derived from object keys, which may carry spaces, subject
// syntax characters (. * >) or non-ASCII; any such rune becomes an
// underscore so the publish cannot fail on subject validation.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>':
			return '_'
		}
		if r <= ' ' || r > '~' {
			return '_'
		}
		return r
	}, id)
}

// QueueDepth returns the number of pending messages in the INGEST stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, IngestStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
