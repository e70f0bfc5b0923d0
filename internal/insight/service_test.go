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

func newTestService(store *storage.InMemoryStore) *Service {
	classifier := NewClassifier(7)
	classifier.Now = func() time.Time { return testNow }
	svc := NewService(store, store, store, NewRevenueService(store), classifier, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func seedSnapshots(t *testing.T, store *storage.InMemoryStore, productID string, visits ...int64) {
	t.Helper()
	for i, v := range visits {
		err := store.SaveSnapshot(context.Background(), &models.MetricsSnapshot{
			ProductID:  productID,
			Visits:     v,
			Healthy:    true,
			SnapshotAt: testNow.AddDate(0, 0, -(len(visits) - 1 - i)),
		})
		require.NoError(t, err)
	}
}

func TestGetSignalUnknownProduct(t *testing.T) {
	svc := newTestService(storage.NewInMemoryStore())

	ps, err := svc.GetSignal(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestGetSignalNewProductAwaitsData(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Product{ID: "prod-1", UserID: "user-1", Enabled: true}))

	svc := newTestService(store)
	ps, err := svc.GetSignal(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, ps)

	assert.Equal(t, models.SignalAwaitingData, ps.Signal)
	assert.Nil(t, ps.Metrics)
	assert.Nil(t, ps.GrowthPct)
}

func TestGetSignalUsesStoredThresholds(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Product{ID: "prod-1", UserID: "user-1", Enabled: true}))
	seedSnapshots(t, store, "prod-1", 50, 50, 50, 50, 50, 50, 50, 50)

	svc := newTestService(store)

	// With defaults (traction at 100 visits) this product is merely healthy.
	ps, err := svc.GetSignal(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHealthy, ps.Signal)

	// A lower personal bar flips it to traction.
	require.NoError(t, store.SaveThresholds(ctx, "user-1", models.SignalThresholds{
		TractionVisits:         40,
		DegradedResponseTimeMS: 2000,
		DegradedDeclinePct:     30,
	}))
	ps, err = svc.GetSignal(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, models.SignalTraction, ps.Signal)
}

func TestListWithSignalsDisplayOrder(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.Product{ID: "prod-a", UserID: "user-1", Name: "Alpha", Enabled: true}))
	require.NoError(t, store.Create(ctx, &models.Product{ID: "prod-b", UserID: "user-1", Name: "Beta", Enabled: true}))
	require.NoError(t, store.Create(ctx, &models.Product{ID: "prod-c", UserID: "user-1", Name: "Gamma", Enabled: true}))

	// Alpha: dead (week of zero visits). Beta: traction. Gamma: no data.
	seedSnapshots(t, store, "prod-a", 0, 0, 0, 0, 0, 0, 0, 0)
	seedSnapshots(t, store, "prod-b", 120, 130, 140, 150, 160, 170, 180, 200)

	svc := newTestService(store)
	list, err := svc.ListWithSignals(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "Beta", list[0].Product.Name)
	assert.Equal(t, models.SignalTraction, list[0].Signal)
	assert.Equal(t, "Gamma", list[1].Product.Name)
	assert.Equal(t, models.SignalAwaitingData, list[1].Signal)
	assert.Equal(t, "Alpha", list[2].Product.Name)
	assert.Equal(t, models.SignalDead, list[2].Signal)
}

func TestHistoryWindow(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()
	seedSnapshots(t, store, "prod-1", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	svc := newTestService(store)

	history, err := svc.History(ctx, "prod-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 8) // default seven-day window

	history, err = svc.History(ctx, "prod-1", 30)
	require.NoError(t, err)
	assert.Len(t, history, 10)

	// Ascending order.
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].SnapshotAt.After(history[i-1].SnapshotAt))
	}
}
