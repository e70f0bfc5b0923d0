package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

func billingEvent(eventType, subscription string, amount int64) *models.BillingEvent {
	return &models.BillingEvent{
		ProductBillingID: "bill-1",
		EventType:        eventType,
		SubscriptionID:   subscription,
		AmountCents:      amount,
	}
}

func TestReplayRevenueEmpty(t *testing.T) {
	summary := ReplayRevenue(nil)

	assert.Equal(t, int64(0), summary.MRRCents)
	assert.Equal(t, int64(0), summary.Subscribers)
	assert.False(t, summary.HasRevenue())
}

func TestReplayRevenueCreateAndDelete(t *testing.T) {
	events := []*models.BillingEvent{
		billingEvent(models.BillingSubscriptionCreated, "sub-a", 900),
		billingEvent(models.BillingSubscriptionCreated, "sub-b", 2900),
		billingEvent(models.BillingSubscriptionDeleted, "sub-a", 0),
	}

	summary := ReplayRevenue(events)

	assert.Equal(t, int64(2900), summary.MRRCents)
	assert.Equal(t, int64(1), summary.Subscribers)
	assert.True(t, summary.HasRevenue())
}

func TestReplayRevenueLastWriteWins(t *testing.T) {
	// A plan change re-creates the subscription at the new amount.
	events := []*models.BillingEvent{
		billingEvent(models.BillingSubscriptionCreated, "sub-a", 900),
		billingEvent(models.BillingSubscriptionCreated, "sub-a", 1900),
	}

	summary := ReplayRevenue(events)

	assert.Equal(t, int64(1900), summary.MRRCents)
	assert.Equal(t, int64(1), summary.Subscribers)
}

func TestReplayRevenueIgnoresOtherEvents(t *testing.T) {
	events := []*models.BillingEvent{
		billingEvent(models.BillingSubscriptionCreated, "sub-a", 900),
		billingEvent(models.BillingPayment, "sub-a", 900),
		billingEvent(models.BillingSubscriptionCreated, "", 500), // no subscription id
	}

	summary := ReplayRevenue(events)

	assert.Equal(t, int64(900), summary.MRRCents)
	assert.Equal(t, int64(1), summary.Subscribers)
}

func TestReplayRevenueDeleteUnknownSubscription(t *testing.T) {
	events := []*models.BillingEvent{
		billingEvent(models.BillingSubscriptionDeleted, "sub-x", 0),
	}

	summary := ReplayRevenue(events)

	assert.False(t, summary.HasRevenue())
}

func TestRevenueForReplaysStoredHistory(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	for i, ev := range []*models.BillingEvent{
		billingEvent(models.BillingSubscriptionCreated, "sub-a", 900),
		billingEvent(models.BillingSubscriptionCreated, "sub-b", 2900),
		billingEvent(models.BillingSubscriptionDeleted, "sub-b", 0),
	} {
		ev.ExternalEventID = string(rune('a' + i))
		ev.OccurredAt = testNow.Add(time.Duration(i) * time.Minute)
		saved, err := store.SaveBillingEvent(ctx, ev)
		require.NoError(t, err)
		require.True(t, saved)
	}

	svc := NewRevenueService(store)
	summary, err := svc.RevenueFor(ctx, "bill-1")
	require.NoError(t, err)

	assert.Equal(t, int64(900), summary.MRRCents)
	assert.Equal(t, int64(1), summary.Subscribers)
}
