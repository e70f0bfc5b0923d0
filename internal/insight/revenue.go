package insight

import (
	"context"
	"fmt"

	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// ReplayRevenue reconstructs current MRR and subscriber count from a
// billing subject's ordered event history. A subscription_created sets or
// overwrites a subscription's amount (last write wins); a
// subscription_deleted removes it; other event types are ignored. The
// replay is O(n) and deterministic for a given ordered input.
func ReplayRevenue(events []*models.BillingEvent) models.RevenueSummary {
	active := make(map[string]int64)

	for _, ev := range events {
		if ev.SubscriptionID == "" {
			continue
		}
		switch ev.EventType {
		case models.BillingSubscriptionCreated:
			active[ev.SubscriptionID] = ev.AmountCents
		case models.BillingSubscriptionDeleted:
			delete(active, ev.SubscriptionID)
		}
	}

	var mrr int64
	for _, amount := range active {
		mrr += amount
	}

	return models.RevenueSummary{
		MRRCents:    mrr,
		Subscribers: int64(len(active)),
	}
}

// RevenueService reconstructs revenue state from the billing event store.
type RevenueService struct {
	store storage.BillingEventStore
}

// NewRevenueService constructs a RevenueService backed by the given store.
func NewRevenueService(store storage.BillingEventStore) *RevenueService {
	return &RevenueService{store: store}
}

// RevenueFor replays the full event history of a billing subject.
func (s *RevenueService) RevenueFor(ctx context.Context, billingID string) (models.RevenueSummary, error) {
	events, err := s.store.BillingEvents(ctx, billingID)
	if err != nil {
		return models.RevenueSummary{}, fmt.Errorf("failed to load billing events: %w", err)
	}
	return ReplayRevenue(events), nil
}
