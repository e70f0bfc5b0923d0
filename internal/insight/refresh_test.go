package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

func newTestRefresh(store *storage.InMemoryStore) *RefreshService {
	traffic := NewTrafficService(store, 7)
	traffic.now = func() time.Time { return testNow }
	recorder := NewRecorder(store, nil)
	recorder.now = func() time.Time { return testNow }
	return NewRefreshService(
		store,
		traffic,
		NewRevenueService(store),
		NewProber(500*time.Millisecond, zap.NewNop()),
		recorder,
		nil,
		nil,
		zap.NewNop(),
	)
}

func TestRefreshProductRecordsSnapshot(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	product := &models.Product{
		ID:        "prod-1",
		UserID:    "user-1",
		Name:      "Example",
		Domain:    "127.0.0.1:1", // unreachable, probe fails
		ProjectID: "proj-1",
		Enabled:   true,
	}
	require.NoError(t, store.Create(ctx, product))

	ev := pv(1, 10, "/")
	ev.OccurredAt = testNow.AddDate(0, 0, -1)
	require.NoError(t, store.SaveTrafficEvent(ctx, ev))

	svc := newTestRefresh(store)
	ok, err := svc.RefreshProduct(ctx, product)
	require.NoError(t, err)
	assert.False(t, ok) // probe never reached the domain

	snap, err := store.LatestSnapshot(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.Visits)
	assert.False(t, snap.Healthy)
	require.NotNil(t, snap.StatusCode)
	assert.Equal(t, 0, *snap.StatusCode)
	assert.Nil(t, snap.RevenueCents)
}

func TestRefreshProductIncludesRevenue(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	product := &models.Product{
		ID:        "prod-1",
		UserID:    "user-1",
		BillingID: "bill-1",
		Enabled:   true,
	}
	require.NoError(t, store.Create(ctx, product))

	_, err := store.SaveBillingEvent(ctx, &models.BillingEvent{
		ProductBillingID: "bill-1",
		ExternalEventID:  "evt_1",
		EventType:        models.BillingSubscriptionCreated,
		SubscriptionID:   "sub-a",
		AmountCents:      2900,
	})
	require.NoError(t, err)

	svc := newTestRefresh(store)
	_, err = svc.RefreshProduct(ctx, product)
	require.NoError(t, err)

	snap, err := store.LatestSnapshot(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.NotNil(t, snap.RevenueCents)
	assert.Equal(t, int64(2900), *snap.RevenueCents)
	require.NotNil(t, snap.Subscribers)
	assert.Equal(t, int64(1), *snap.Subscribers)
}

func TestRefreshAllToleratesPartialFailure(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	// Neither domain is reachable, so both refresh without error but
	// count as failed probes.
	for _, id := range []string{"prod-1", "prod-2"} {
		require.NoError(t, store.Create(ctx, &models.Product{
			ID:      id,
			UserID:  "user-1",
			Domain:  "127.0.0.1:1",
			Enabled: true,
		}))
	}
	require.NoError(t, store.Create(ctx, &models.Product{
		ID:     "prod-3",
		UserID: "user-1",
		// disabled products are skipped entirely
	}))

	svc := newTestRefresh(store)
	report, err := svc.RefreshAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
}

func TestRunHealthChecksUpdatesProducts(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.Product{
		ID:      "prod-1",
		UserID:  "user-1",
		Domain:  "127.0.0.1:1",
		Enabled: true,
	}))

	svc := newTestRefresh(store)
	checked, err := svc.RunHealthChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, checked)

	product, err := store.Get(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, product.LastHealthy)
	assert.False(t, *product.LastHealthy)
	assert.Equal(t, 1, product.ConsecutiveFailures)

	// Another failed sweep increments the streak.
	_, err = svc.RunHealthChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, product.ConsecutiveFailures)
}
