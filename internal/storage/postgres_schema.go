package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitPostgresSchema creates the tables and indexes used by the Postgres
// stores if they do not exist.
func InitPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			domain TEXT NOT NULL,
			description TEXT,
			category TEXT,
			project_id TEXT,
			billing_id TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			last_healthy BOOLEAN,
			last_response_time_ms BIGINT,
			last_health_check_at TIMESTAMPTZ,
			consecutive_failures INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_user ON products (user_id)`,

		`CREATE TABLE IF NOT EXISTS traffic_events (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_name TEXT,
			session_id BIGINT NOT NULL,
			device_id BIGINT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT,
			country TEXT,
			device_type TEXT,
			occurred_at TIMESTAMPTZ NOT NULL,
			received_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_project_time ON traffic_events (project_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_occurred ON traffic_events (occurred_at)`,

		`CREATE TABLE IF NOT EXISTS billing_events (
			id TEXT PRIMARY KEY,
			product_billing_id TEXT NOT NULL,
			external_event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			subscription_id TEXT,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			received_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_billing_subject_time ON billing_events (product_billing_id, occurred_at)`,

		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			visits BIGINT NOT NULL,
			devices BIGINT NOT NULL,
			bounce_rate_pct INT NOT NULL,
			healthy BOOLEAN NOT NULL,
			response_time_ms BIGINT,
			status_code INT,
			revenue_cents BIGINT,
			subscribers BIGINT,
			error_count BIGINT,
			snapshot_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_product_time ON metrics_snapshots (product_id, snapshot_at)`,

		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			traction_visits BIGINT NOT NULL,
			degraded_response_time_ms BIGINT NOT NULL,
			degraded_decline_pct DOUBLE PRECISION NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}
