package storage

import (
	"context"
	"time"

	"github.com/hivewatch/hivewatch/internal/models"
)

// TrafficEventStore is append-only storage for raw analytics events.
// Traffic events carry no dedup key; at-least-once delivery is tolerated
// upstream and visits are deduplicated at aggregation time via session
// identity.
type TrafficEventStore interface {
	// SaveTrafficEvent appends one traffic event.
	SaveTrafficEvent(ctx context.Context, event *models.TrafficEvent) error

	// TrafficEventsSince returns all events for a project with
	// OccurredAt >= since, ordered ascending by OccurredAt.
	TrafficEventsSince(ctx context.Context, projectID string, since time.Time) ([]*models.TrafficEvent, error)

	// PurgeTrafficBefore deletes up to limit events older than cutoff and
	// returns the number removed. Callers invoke it repeatedly until a
	// short batch comes back; the backing store caps single-operation
	// mutation sizes.
	PurgeTrafficBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// BillingEventStore is append-only, deduplicated storage for billing
// events. The dedup check-and-insert must be atomic per external event id.
type BillingEventStore interface {
	// SaveBillingEvent appends a billing event unless one with the same
	// ExternalEventID already exists. Returns false on duplicate.
	SaveBillingEvent(ctx context.Context, event *models.BillingEvent) (bool, error)

	// BillingEvents returns all events for a billing subject ordered
	// ascending by OccurredAt.
	BillingEvents(ctx context.Context, billingID string) ([]*models.BillingEvent, error)
}

// SnapshotStore persists the per-product metrics history time series.
type SnapshotStore interface {
	// SaveSnapshot appends one immutable snapshot.
	SaveSnapshot(ctx context.Context, snap *models.MetricsSnapshot) error

	// LatestSnapshot returns the most recent snapshot for a product, or
	// nil when none exists.
	LatestSnapshot(ctx context.Context, productID string) (*models.MetricsSnapshot, error)

	// SnapshotsSince returns snapshots with SnapshotAt >= since ordered
	// ascending.
	SnapshotsSince(ctx context.Context, productID string, since time.Time) ([]*models.MetricsSnapshot, error)
}

// ProductRepo exposes the product registry. Only the health fields are
// written through this service.
type ProductRepo interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Product, error)
	ListEnabled(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, p *models.Product) error

	// UpdateHealth records a scheduled check outcome. Consecutive
	// failures reset on a healthy result and increment otherwise.
	UpdateHealth(ctx context.Context, id string, healthy bool, responseTimeMS int64, checkedAt time.Time) error
}

// SettingsRepo stores per-user signal thresholds.
type SettingsRepo interface {
	// Thresholds returns the user's thresholds, or the defaults when the
	// user has none stored.
	Thresholds(ctx context.Context, userID string) (models.SignalThresholds, error)

	// SaveThresholds upserts the user's thresholds.
	SaveThresholds(ctx context.Context, userID string, t models.SignalThresholds) error
}
