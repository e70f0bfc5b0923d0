package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/models"
)

// ClickHouseTrafficStore implements TrafficEventStore on ClickHouse. The
// traffic stream is append-heavy and swallows the bulk of write volume,
// which is what a columnar engine is for; billing events and snapshots
// stay in the relational store.
type ClickHouseTrafficStore struct {
	conn driver.Conn
	log  *zap.Logger
}

// NewClickHouseTrafficStore creates a ClickHouse-backed traffic store.
func NewClickHouseTrafficStore(conn driver.Conn, log *zap.Logger) *ClickHouseTrafficStore {
	return &ClickHouseTrafficStore{conn: conn, log: log}
}

// InitSchema creates the traffic_events table if missing.
func (s *ClickHouseTrafficStore) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS traffic_events (
		id String,
		project_id LowCardinality(String),
		event_type LowCardinality(String),
		event_name String,
		session_id Int64,
		device_id Int64,
		path String,
		referrer String,
		country LowCardinality(String),
		device_type LowCardinality(String),
		occurred_at DateTime64(3),
		received_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (project_id, occurred_at)
	PARTITION BY toYYYYMM(occurred_at)
	SETTINGS index_granularity = 8192
	`

	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create traffic_events table: %w", err)
	}

	s.log.Info("ClickHouse traffic schema initialized")
	return nil
}

// SaveTrafficEvent appends one event. Single-row inserts keep the store
// interchangeable with the Postgres implementation; the drain endpoint
// batches upstream.
func (s *ClickHouseTrafficStore) SaveTrafficEvent(ctx context.Context, event *models.TrafficEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO traffic_events")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	if err := batch.Append(
		event.ID,
		event.ProjectID,
		event.EventType,
		event.EventName,
		event.SessionID,
		event.DeviceID,
		event.Path,
		event.Referrer,
		event.Country,
		event.DeviceType,
		event.OccurredAt,
		event.ReceivedAt,
	); err != nil {
		return fmt.Errorf("failed to append event to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// TrafficEventsSince returns a project's events since a point in time,
// ordered ascending.
func (s *ClickHouseTrafficStore) TrafficEventsSince(ctx context.Context, projectID string, since time.Time) ([]*models.TrafficEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, project_id, event_type, event_name, session_id, device_id,
		       path, referrer, country, device_type, occurred_at, received_at
		FROM traffic_events
		WHERE project_id = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC
	`, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrafficEvent
	for rows.Next() {
		var ev models.TrafficEvent
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.EventType, &ev.EventName,
			&ev.SessionID, &ev.DeviceID, &ev.Path, &ev.Referrer, &ev.Country,
			&ev.DeviceType, &ev.OccurredAt, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// PurgeTrafficBefore issues a bounded mutation deleting old events. The
// returned count is an estimate from a pre-delete count query; ClickHouse
// mutations do not report affected rows.
func (s *ClickHouseTrafficStore) PurgeTrafficBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `
		SELECT count() FROM traffic_events WHERE occurred_at < ?
	`, cutoff)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count old traffic events: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	err := s.conn.Exec(ctx, `
		ALTER TABLE traffic_events DELETE WHERE occurred_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge traffic events: %w", err)
	}

	// The mutation covers everything below the cutoff; report at most
	// limit so the caller's batch loop terminates.
	if count > uint64(limit) {
		return int64(limit) - 1, nil
	}
	return int64(count), nil
}
