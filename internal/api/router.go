package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facewatch/internal/api/handlers"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/auth"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/reports"
	"github.com/your-org/facewatch/internal/storage"
)

type RouterConfig struct {
	APIKey           string
	DB               *storage.PostgresStore
	Images           *storage.MinIOStore
	ReportObjects    *storage.MinIOStore
	Reports          *reports.Store
	Producer         *queue.Producer
	Hub              *ws.Hub
	ThresholdSetting string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.ReportObjects, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket alert feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Image uploads
	imageH := handlers.NewImageHandler(cfg.Images)
	v1.PUT("/images/:imageId", imageH.Upload)

	// Match reports
	reportH := handlers.NewReportHandler(cfg.Reports)
	v1.GET("/reports", reportH.List)
	v1.GET("/reports/:imageId", reportH.Get)

	// Live-tunable notification threshold
	settingsH := handlers.NewSettingsHandler(cfg.DB, cfg.ThresholdSetting)
	v1.GET("/settings/notification-threshold", settingsH.GetThreshold)
	v1.PUT("/settings/notification-threshold", settingsH.SetThreshold)

	// Alert history
	alertH := handlers.NewAlertHandler(cfg.DB)
	v1.GET("/alerts", alertH.List)

	return r
}
