package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/observability"
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
	slog.Info("starting facewatch notifier", "threshold_setting", cfg.Notify.ThresholdSetting)

	// Connect to Postgres (threshold source)
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Warn("ensure schema", "error", err)
	}
	// Seed the threshold so the first invocation has a value to read.
	defaultThreshold := strconv.FormatFloat(cfg.Notify.DefaultThreshold, 'f', -1, 64)
	if err := db.EnsureSetting(context.Background(), cfg.Notify.ThresholdSetting, defaultThreshold); err != nil {
		slog.Warn("seed notification threshold", "error", err)
	}

	// Connect to MinIO (reports bucket)
	reportObjects, err := storage.NewMinIOStore(cfg.MinIO, cfg.MinIO.ReportsBucket)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
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

	reportStore := reports.NewStore(reportObjects, cfg.Reports.Prefix)
	notifier := notify.NewNotifier(db, reportStore, producer, cfg.Notify.ThresholdSetting)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming report-created events
	err = consumer.ConsumeReports(ctx, "notifier", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.StorageEventRecord
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("unmarshal report event", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		invCtx, invCancel := context.WithTimeout(ctx, cfg.Pipeline.InvocationTimeout)
		defer invCancel()

		ids, err := notifier.Notify(invCtx, event)
		if err != nil {
			return fmt.Errorf("notify for %s: %w", event.S3.Object.Key, err)
		}
		slog.Info("process finished", "report", event.S3.Object.Key, "alerts_sent", len(ids))
		return nil
	})
	if err != nil {
		slog.Error("start report consumer", "error", err)
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
		slog.Info("notifier metrics listening", "addr", ":8083")
		if err := http.ListenAndServe(":8083", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down notifier...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("notifier stopped")
}
