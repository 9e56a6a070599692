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

	"github.com/your-org/facewatch/internal/api"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/reports"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
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

	slog.Info("starting facewatch API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Warn("ensure schema", "error", err)
	}

	// Connect to MinIO (both buckets)
	images, err := storage.NewMinIOStore(cfg.MinIO, cfg.MinIO.ImagesBucket)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := images.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure images bucket", "error", err)
	}

	reportObjects, err := storage.NewMinIOStore(cfg.MinIO, cfg.MinIO.ReportsBucket)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume published alerts: persist history rows and broadcast live
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create alert consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeAlerts(ctx, "api-alerts", func(ctx context.Context, msg jetstream.Msg) error {
		alert, err := notify.DecodeAlert(msg.Data())
		if err != nil {
			slog.Error("decode alert", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		meta, _ := msg.Metadata()
		messageID := ""
		if meta != nil {
			messageID = fmt.Sprintf("%s/%d", queue.AlertsStreamName, meta.Sequence.Stream)
		}

		rec, err := db.InsertAlert(ctx, alert, messageID)
		if err != nil {
			slog.Error("store alert", "error", err)
		}

		wsAlert := &dto.WSAlert{
			Type:       "alert",
			CustomerID: alert.CustomerID,
			Data: dto.AlertResponse{
				CustomerID:    alert.CustomerID,
				CounterpartID: alert.CounterpartID,
				Source:        alert.Source,
				HitCount:      alert.HitCount,
				MaxSimilarity: alert.MaxSimilarity,
				Message:       alert.Message,
				MessageID:     messageID,
			},
		}
		if rec != nil {
			wsAlert.Data.ID = rec.ID
			wsAlert.Data.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
		}
		hub.BroadcastAlert(wsAlert)

		return nil
	})
	if err != nil {
		slog.Warn("start alert consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:           cfg.Server.APIKey,
		DB:               db,
		Images:           images,
		ReportObjects:    reportObjects,
		Reports:          reports.NewStore(reportObjects, cfg.Reports.Prefix),
		Producer:         producer,
		Hub:              hub,
		ThresholdSetting: cfg.Notify.ThresholdSetting,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
