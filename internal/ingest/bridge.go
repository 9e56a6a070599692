// Package ingest bridges object store bucket notifications onto the queue.
// It is the pipeline's only event source: uploads land in the images bucket,
// report writes land in the reports bucket, and this bridge turns both into
// queue messages.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/storage"
)

type Bridge struct {
	images       *storage.MinIOStore
	reports      *storage.MinIOStore
	producer     *queue.Producer
	reportPrefix string
}

func NewBridge(images, reports *storage.MinIOStore, producer *queue.Producer, reportPrefix string) *Bridge {
	return &Bridge{
		images:       images,
		reports:      reports,
		producer:     producer,
		reportPrefix: reportPrefix,
	}
}

// Run listens on both buckets until ctx is cancelled. The notification
// channel closes on connection loss, so each listener re-listens with a
// short delay.
func (b *Bridge) Run(ctx context.Context) {
	go b.listen(ctx, "images", func(ctx context.Context) <-chan notification.Info {
		return b.images.Listen(ctx, "")
	}, b.publishObjectEvent)

	go b.listen(ctx, "reports", func(ctx context.Context) <-chan notification.Info {
		return b.reports.Listen(ctx, b.reportPrefix+"/")
	}, b.publishReportEvents)
}

func (b *Bridge) listen(
	ctx context.Context,
	name string,
	open func(ctx context.Context) <-chan notification.Info,
	publish func(ctx context.Context, info notification.Info) error,
) {
	for {
		if ctx.Err() != nil {
			return
		}

		slog.Info("listening for bucket notifications", "listener", name)
		for info := range open(ctx) {
			if info.Err != nil {
				slog.Warn("bucket notification error", "listener", name, "error", info.Err)
				continue
			}
			if len(info.Records) == 0 {
				continue
			}
			if err := publish(ctx, info); err != nil {
				slog.Error("publish bucket event", "listener", name, "error", err)
			}
		}

		if ctx.Err() != nil {
			return
		}
		slog.Warn("bucket notification channel closed, re-listening", "listener", name)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// publishObjectEvent forwards the whole notification body unchanged, so one
// queue message may wrap several object records.
func (b *Bridge) publishObjectEvent(ctx context.Context, info notification.Info) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := b.producer.PublishObjectEvent(ctx, payload); err != nil {
		return err
	}
	slog.Info("published object event", "records", len(info.Records))
	return nil
}

// publishReportEvents emits one report-created event per written report.
func (b *Bridge) publishReportEvents(ctx context.Context, info notification.Info) error {
	for _, r := range info.Records {
		var event models.StorageEventRecord
		event.EventName = r.EventName
		event.S3.Bucket.Name = r.S3.Bucket.Name
		event.S3.Object.Key = r.S3.Object.Key

		if err := b.producer.PublishReportEvent(ctx, event); err != nil {
			return err
		}
		slog.Info("published report event", "bucket", event.S3.Bucket.Name, "key", event.S3.Object.Key)
	}
	return nil
}
