package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewatch/hivewatch/internal/models"
)

// PostgresEventStore implements TrafficEventStore and BillingEventStore
// using PostgreSQL.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

// NewPostgresEventStore creates a new PostgreSQL-backed event store.
func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

// SaveTrafficEvent appends one traffic event.
func (s *PostgresEventStore) SaveTrafficEvent(ctx context.Context, event *models.TrafficEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic_events
			(id, project_id, event_type, event_name, session_id, device_id,
			 path, referrer, country, device_type, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, event.ID, event.ProjectID, event.EventType, nullString(event.EventName),
		event.SessionID, event.DeviceID, event.Path, nullString(event.Referrer),
		nullString(event.Country), nullString(event.DeviceType),
		event.OccurredAt, event.ReceivedAt)

	if err != nil {
		return fmt.Errorf("failed to save traffic event: %w", err)
	}
	return nil
}

// TrafficEventsSince returns a project's events since a point in time,
// ordered ascending.
func (s *PostgresEventStore) TrafficEventsSince(ctx context.Context, projectID string, since time.Time) ([]*models.TrafficEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, event_type, event_name, session_id, device_id,
		       path, referrer, country, device_type, occurred_at, received_at
		FROM traffic_events
		WHERE project_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at ASC
	`, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic events: %w", err)
	}
	defer rows.Close()

	var events []*models.TrafficEvent
	for rows.Next() {
		var ev models.TrafficEvent
		var eventName, referrer, country, deviceType *string

		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.EventType, &eventName,
			&ev.SessionID, &ev.DeviceID, &ev.Path, &referrer, &country,
			&deviceType, &ev.OccurredAt, &ev.ReceivedAt); err != nil {
			return nil, err
		}

		ev.EventName = deref(eventName)
		ev.Referrer = deref(referrer)
		ev.Country = deref(country)
		ev.DeviceType = deref(deviceType)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// PurgeTrafficBefore removes up to limit events older than cutoff.
func (s *PostgresEventStore) PurgeTrafficBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM traffic_events
		WHERE id IN (
			SELECT id FROM traffic_events
			WHERE occurred_at < $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to purge traffic events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveBillingEvent appends a billing event. The unique index on
// external_event_id makes the dedup check-and-insert atomic; a duplicate
// is a silent no-op reported as false.
func (s *PostgresEventStore) SaveBillingEvent(ctx context.Context, event *models.BillingEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO billing_events
			(id, product_billing_id, external_event_id, event_type, customer_id,
			 subscription_id, amount_cents, currency, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_event_id) DO NOTHING
	`, event.ID, event.ProductBillingID, event.ExternalEventID, event.EventType,
		event.CustomerID, nullString(event.SubscriptionID), event.AmountCents,
		event.Currency, event.OccurredAt, event.ReceivedAt)

	if err != nil {
		return false, fmt.Errorf("failed to save billing event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BillingEvents returns all events for a billing subject ordered ascending.
func (s *PostgresEventStore) BillingEvents(ctx context.Context, billingID string) ([]*models.BillingEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_billing_id, external_event_id, event_type, customer_id,
		       subscription_id, amount_cents, currency, occurred_at, received_at
		FROM billing_events
		WHERE product_billing_id = $1
		ORDER BY occurred_at ASC
	`, billingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing events: %w", err)
	}
	defer rows.Close()

	var events []*models.BillingEvent
	for rows.Next() {
		var ev models.BillingEvent
		var subscriptionID *string

		if err := rows.Scan(&ev.ID, &ev.ProductBillingID, &ev.ExternalEventID,
			&ev.EventType, &ev.CustomerID, &subscriptionID, &ev.AmountCents,
			&ev.Currency, &ev.OccurredAt, &ev.ReceivedAt); err != nil {
			return nil, err
		}

		ev.SubscriptionID = deref(subscriptionID)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
