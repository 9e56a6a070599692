package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/dedup"
	"github.com/your-org/facewatch/internal/facedir"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/pipeline"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/reports"
	"github.com/your-org/facewatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facewatch matcher",
		"workers", cfg.Pipeline.WorkerCount,
		"collection", cfg.FaceDir.CollectionID,
	)

	// Connect to MinIO (reports bucket)
	reportObjects, err := storage.NewMinIOStore(cfg.MinIO, cfg.MinIO.ReportsBucket)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := reportObjects.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure reports bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Optional index idempotency guard
	var guard pipeline.IndexGuard
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		guard = dedup.NewGuard(rdb, cfg.Pipeline.DedupTTL)
		slog.Info("index idempotency guard enabled", "ttl", cfg.Pipeline.DedupTTL.String())
	} else {
		slog.Warn("redis not configured, index calls are not deduplicated on redelivery")
	}

	directory := facedir.NewClient(cfg.FaceDir)
	reportStore := reports.NewStore(reportObjects, cfg.Reports.Prefix)
	matcher := pipeline.NewMatcher(directory, reportStore, guard)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming object-created events
	err = consumer.ConsumeIngest(ctx, "matcher-workers", func(ctx context.Context, msg jetstream.Msg) error {
		invCtx, invCancel := context.WithTimeout(ctx, cfg.Pipeline.InvocationTimeout)
		defer invCancel()

		return matcher.ProcessNotification(invCtx, msg.Data())
	}, cfg.Pipeline.WorkerCount)
	if err != nil {
		slog.Error("start ingest consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("matcher metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down matcher...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("matcher stopped")
}
