package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"trust-service/internal/config"
	"trust-service/internal/util"
)

// PostgresClient owns the relational store: the moderation queue, logged
// content flags and the device registry.
type PostgresClient struct {
	DB     *sql.DB
	config *config.PostgresConfig
}

func NewPostgresClient(cfg *config.Config) (*PostgresClient, error) {
	pgConfig := cfg.Postgres

	db, err := sql.Open("postgres", pgConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres connection: %w", err)
	}

	db.SetMaxOpenConns(pgConfig.MaxOpenConns)
	db.SetMaxIdleConns(pgConfig.MaxIdleConns)
	db.SetConnMaxLifetime(pgConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	pc := &PostgresClient{
		DB:     db,
		config: &pgConfig,
	}

	if err := pc.bootstrapSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap Postgres schema: %w", err)
	}

	util.Info("Postgres client initialized",
		util.Int("max_open_conns", pgConfig.MaxOpenConns),
		util.Int("max_idle_conns", pgConfig.MaxIdleConns))

	return pc, nil
}

func (p *PostgresClient) bootstrapSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS moderation_queue (
			id                      TEXT PRIMARY KEY,
			content_id              TEXT NOT NULL,
			content_type            TEXT NOT NULL,
			content                 TEXT NOT NULL,
			images                  JSONB NOT NULL DEFAULT '[]',
			user_id                 TEXT NOT NULL,
			priority                INT NOT NULL,
			status                  TEXT NOT NULL DEFAULT 'pending',
			flags                   JSONB NOT NULL DEFAULT '[]',
			auto_flagged            BOOLEAN NOT NULL DEFAULT FALSE,
			manual_review_required  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reviewed_at             TIMESTAMPTZ,
			reviewed_by             TEXT,
			notes                   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_moderation_queue_status_priority
			ON moderation_queue (status, priority DESC, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS content_flags (
			id           TEXT PRIMARY KEY,
			content_id   TEXT NOT NULL,
			content_type TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			flag_type    TEXT NOT NULL,
			severity     TEXT NOT NULL,
			confidence   DOUBLE PRECISION NOT NULL,
			details      TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_flags_created_at
			ON content_flags (created_at)`,
		`CREATE TABLE IF NOT EXISTS user_devices (
			fingerprint  TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			platform     TEXT,
			model        TEXT,
			os_version   TEXT,
			app_version  TEXT,
			is_trusted   BOOLEAN NOT NULL DEFAULT FALSE,
			first_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, fingerprint)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func (p *PostgresClient) HealthCheck(ctx context.Context) error {
	if err := p.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (p *PostgresClient) Close() error {
	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			util.Error("failed to close Postgres connection", util.ErrorField(err))
			return err
		}
		util.Info("Postgres connection closed")
	}
	return nil
}
