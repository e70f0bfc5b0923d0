package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// Recorder persists point-in-time metrics snapshots. Each call appends
// one immutable row stamped with the current time; rows are never updated.
type Recorder struct {
	store   storage.SnapshotStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder constructs a Recorder backed by the given store.
func NewRecorder(store storage.SnapshotStore, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, metrics: m, now: time.Now}
}

// Record appends a snapshot combining the aggregated traffic, the probe
// outcome and optional revenue state. Storage failures propagate; retry
// policy belongs to the calling workflow.
func (r *Recorder) Record(ctx context.Context, productID string, traffic models.TrafficSummary, health models.HealthResult, revenue *models.RevenueSummary, errorCount *int64) (*models.MetricsSnapshot, error) {
	snap := &models.MetricsSnapshot{
		ID:            uuid.NewString(),
		ProductID:     productID,
		Visits:        traffic.Visits,
		Devices:       traffic.Devices,
		BounceRatePct: traffic.BounceRatePct,
		Healthy:       health.Healthy,
		ErrorCount:    errorCount,
		SnapshotAt:    r.now(),
	}

	rt := health.ResponseTimeMS
	sc := health.StatusCode
	snap.ResponseTimeMS = &rt
	snap.StatusCode = &sc

	if revenue != nil {
		mrr := revenue.MRRCents
		subs := revenue.Subscribers
		snap.RevenueCents = &mrr
		snap.Subscribers = &subs
	}

	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}
	if r.metrics != nil {
		r.metrics.SnapshotsRecorded.Inc()
	}
	return snap, nil
}
