package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
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

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeIngest starts consuming object-created events from the INGEST
// stream. workerCount bounds concurrent invocations to respect the face
// directory's rate limits. AckWait exceeds the per-invocation wall-clock
// budget so in-flight work is never redelivered early.
func (c *Consumer) ConsumeIngest(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	return c.consume(ctx, IngestStreamName, IngestSubjectBase+".>", consumerName, handler, workerCount, 90*time.Second)
}

// ConsumeReports starts consuming report-created events for the notifier.
// One report per invocation, sequential.
func (c *Consumer) ConsumeReports(ctx context.Context, consumerName string, handler MessageHandler) error {
	return c.consume(ctx, ReportsStreamName, ReportsSubjectBase+".>", consumerName, handler, 1, 90*time.Second)
}

// ConsumeAlerts starts consuming published alerts (for the API's history log
// and WebSocket feed).
func (c *Consumer) ConsumeAlerts(ctx context.Context, consumerName string, handler MessageHandler) error {
	return c.consume(ctx, AlertsStreamName, AlertsSubjectBase+".>", consumerName, handler, 1, 30*time.Second)
}

func (c *Consumer) consume(ctx context.Context, streamName, filterSubject, consumerName string, handler MessageHandler, workerCount int, ackWait time.Duration) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    3,
		FilterSubject: filterSubject,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	// Fetch loop
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(msgCh)
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					close(msgCh)
					return
				}
				slog.Warn("fetch messages error", "stream", streamName, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					close(msgCh)
					return
				}
			}
		}
	}()

	// Workers. A handler error Naks the message so JetStream redelivers it;
	// processing is at-least-once.
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process message error",
						"stream", streamName, "worker", workerID,
						"subject", msg.Subject(), "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}(i)
	}

	slog.Info("consumer started", "stream", streamName, "consumer", consumerName, "workers", workerCount)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
