package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Settings ---
//
// Runtime settings are read fresh on every pipeline invocation so operators
// can tune thresholds without redeploying.

func (s *PostgresStore) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE name = $1`, name,
	).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("setting %s not found", name)
		}
		return "", fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, nil
}

func (s *PostgresStore) GetFloatSetting(ctx context.Context, name string) (float64, error) {
	raw, err := s.GetSetting(ctx, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not numeric: %w", name, err)
	}
	return v, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", name, err)
	}
	return nil
}

// EnsureSetting inserts a default value only if the setting is absent.
func (s *PostgresStore) EnsureSetting(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO NOTHING`,
		name, value)
	if err != nil {
		return fmt.Errorf("ensure setting %s: %w", name, err)
	}
	return nil
}

// --- Alert history ---

type AlertRecord struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    string    `json:"customer_id"`
	CounterpartID string    `json:"counterpart_id"`
	Source        string    `json:"source"`
	HitCount      int       `json:"hit_count"`
	MaxSimilarity float64   `json:"max_similarity"`
	Message       string    `json:"message"`
	MessageID     string    `json:"message_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// InsertAlert records a sink-accepted alert for the ops API. messageID is the
// identifier the sink assigned on publish.
func (s *PostgresStore) InsertAlert(ctx context.Context, alert models.AlertMessage, messageID string) (*AlertRecord, error) {
	rec := &AlertRecord{
		ID:            uuid.New(),
		CustomerID:    alert.CustomerID,
		CounterpartID: alert.CounterpartID,
		Source:        alert.Source,
		HitCount:      alert.HitCount,
		MaxSimilarity: alert.MaxSimilarity,
		Message:       alert.Message,
		MessageID:     messageID,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alerts (id, customer_id, counterpart_id, source, hit_count, max_similarity, message, message_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		rec.ID, rec.CustomerID, rec.CounterpartID, rec.Source,
		rec.HitCount, rec.MaxSimilarity, rec.Message, rec.MessageID,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, customerID string, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, customer_id, counterpart_id, source, hit_count, max_similarity, message, message_id, created_at
	          FROM alerts`
	args := []interface{}{}
	if customerID != "" {
		query += ` WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, customerID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.CounterpartID, &rec.Source,
			&rec.HitCount, &rec.MaxSimilarity, &rec.Message, &rec.MessageID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, rec)
	}
	return alerts, nil
}

// EnsureSchema creates the settings and alerts tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id             UUID PRIMARY KEY,
			customer_id    TEXT NOT NULL,
			counterpart_id TEXT NOT NULL,
			source         TEXT NOT NULL,
			hit_count      INT NOT NULL,
			max_similarity DOUBLE PRECISION NOT NULL,
			message        TEXT NOT NULL,
			message_id     TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS alerts_customer_idx ON alerts (customer_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
