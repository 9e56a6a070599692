package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	FaceDir  FaceDirConfig  `yaml:"facedir"`
	Reports  ReportsConfig  `yaml:"reports"`
	Notify   NotifyConfig   `yaml:"notify"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the optional index idempotency guard.
// When Addr is empty the matcher runs unguarded.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MinIOConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	ImagesBucket  string `yaml:"images_bucket"`
	ReportsBucket string `yaml:"reports_bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
}

// FaceDirConfig describes the external managed face directory.
type FaceDirConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	CollectionID   string  `yaml:"collection_id"`
	MaxFacesIndex  int     `yaml:"max_faces_index"`
	MaxFacesMatch  int     `yaml:"max_faces_match"`
	MatchThreshold float64 `yaml:"match_threshold"`
	SearchRetries  int     `yaml:"search_retries"`
}

type ReportsConfig struct {
	Prefix string `yaml:"prefix"`
}

type NotifyConfig struct {
	ThresholdSetting string  `yaml:"threshold_setting"`
	DefaultThreshold float64 `yaml:"default_threshold"`
}

type PipelineConfig struct {
	WorkerCount       int           `yaml:"worker_count"`
	InvocationTimeout time.Duration `yaml:"invocation_timeout"`
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	// Local development keeps credentials in .env; missing file is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.FaceDir.MaxFacesIndex == 0 {
		cfg.FaceDir.MaxFacesIndex = 1
	}
	if cfg.FaceDir.MaxFacesMatch == 0 {
		cfg.FaceDir.MaxFacesMatch = 100
	}
	if cfg.FaceDir.MatchThreshold == 0 {
		cfg.FaceDir.MatchThreshold = 50
	}
	if cfg.FaceDir.SearchRetries == 0 {
		cfg.FaceDir.SearchRetries = 3
	}
	if cfg.Reports.Prefix == "" {
		cfg.Reports.Prefix = "output"
	}
	if cfg.Notify.ThresholdSetting == "" {
		cfg.Notify.ThresholdSetting = "notification_threshold"
	}
	if cfg.Notify.DefaultThreshold == 0 {
		cfg.Notify.DefaultThreshold = 90
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 5
	}
	if cfg.Pipeline.InvocationTimeout == 0 {
		cfg.Pipeline.InvocationTimeout = 60 * time.Second
	}
	if cfg.Pipeline.DedupTTL == 0 {
		cfg.Pipeline.DedupTTL = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FW_IMAGES_BUCKET"); v != "" {
		cfg.MinIO.ImagesBucket = v
	}
	if v := os.Getenv("FW_REPORTS_BUCKET"); v != "" {
		cfg.MinIO.ReportsBucket = v
	}
	if v := os.Getenv("FW_FACEDIR_BASE_URL"); v != "" {
		cfg.FaceDir.BaseURL = v
	}
	if v := os.Getenv("FW_FACEDIR_API_KEY"); v != "" {
		cfg.FaceDir.APIKey = v
	}
	if v := os.Getenv("FW_COLLECTION_ID"); v != "" {
		cfg.FaceDir.CollectionID = v
	}
	if v := os.Getenv("FW_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.WorkerCount = n
		}
	}
}
