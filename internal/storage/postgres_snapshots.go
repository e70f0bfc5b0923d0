package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewatch/hivewatch/internal/models"
)

// PostgresSnapshotStore implements SnapshotStore using PostgreSQL.
type PostgresSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshotStore creates a new PostgreSQL-backed snapshot store.
func NewPostgresSnapshotStore(pool *pgxpool.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{pool: pool}
}

// SaveSnapshot appends one snapshot row.
func (s *PostgresSnapshotStore) SaveSnapshot(ctx context.Context, snap *models.MetricsSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrics_snapshots
			(id, product_id, visits, devices, bounce_rate_pct, healthy,
			 response_time_ms, status_code, revenue_cents, subscribers,
			 error_count, snapshot_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, snap.ID, snap.ProductID, snap.Visits, snap.Devices, snap.BounceRatePct,
		snap.Healthy, snap.ResponseTimeMS, snap.StatusCode, snap.RevenueCents,
		snap.Subscribers, snap.ErrorCount, snap.SnapshotAt)

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for a product, or nil.
func (s *PostgresSnapshotStore) LatestSnapshot(ctx context.Context, productID string) (*models.MetricsSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, product_id, visits, devices, bounce_rate_pct, healthy,
		       response_time_ms, status_code, revenue_cents, subscribers,
		       error_count, snapshot_at
		FROM metrics_snapshots
		WHERE product_id = $1
		ORDER BY snapshot_at DESC
		LIMIT 1
	`, productID)

	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotsSince returns a product's snapshots since a point in time,
// ordered ascending.
func (s *PostgresSnapshotStore) SnapshotsSince(ctx context.Context, productID string, since time.Time) ([]*models.MetricsSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, visits, devices, bounce_rate_pct, healthy,
		       response_time_ms, status_code, revenue_cents, subscribers,
		       error_count, snapshot_at
		FROM metrics_snapshots
		WHERE product_id = $1 AND snapshot_at >= $2
		ORDER BY snapshot_at ASC
	`, productID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.MetricsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row pgx.Row) (*models.MetricsSnapshot, error) {
	var snap models.MetricsSnapshot
	err := row.Scan(&snap.ID, &snap.ProductID, &snap.Visits, &snap.Devices,
		&snap.BounceRatePct, &snap.Healthy, &snap.ResponseTimeMS,
		&snap.StatusCode, &snap.RevenueCents, &snap.Subscribers,
		&snap.ErrorCount, &snap.SnapshotAt)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
