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

type staticResolver struct{ country string }

func (r staticResolver) Country(string) (string, error) { return r.country, nil }

func newTestIngest(store *storage.InMemoryStore, geo CountryResolver) *IngestService {
	svc := NewIngestService(store, store, geo, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestIngestTrafficNormalizes(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newTestIngest(store, staticResolver{country: "DE"})
	ctx := context.Background()

	event := pv(1, 10, "/")
	require.NoError(t, svc.IngestTraffic(ctx, event, "203.0.113.9"))

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, testNow, event.OccurredAt)
	assert.Equal(t, testNow, event.ReceivedAt)
	assert.Equal(t, "DE", event.Country)

	stored, err := store.TrafficEventsSince(ctx, "proj-1", testNow.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngestTrafficKeepsProvidedCountry(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newTestIngest(store, staticResolver{country: "DE"})

	event := pv(1, 10, "/")
	event.Country = "US"
	require.NoError(t, svc.IngestTraffic(context.Background(), event, "203.0.113.9"))

	assert.Equal(t, "US", event.Country)
}

func TestIngestTrafficRejectsInvalid(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newTestIngest(store, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		event *models.TrafficEvent
	}{
		{"missing project", &models.TrafficEvent{EventType: models.TrafficEventPageview, SessionID: 1, DeviceID: 1}},
		{"missing session", &models.TrafficEvent{ProjectID: "p", EventType: models.TrafficEventPageview, DeviceID: 1}},
		{"bad event type", &models.TrafficEvent{ProjectID: "p", EventType: "click", SessionID: 1, DeviceID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.IngestTraffic(ctx, tt.event, "")
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestIngestBillingDuplicateIsSilentNoOp(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newTestIngest(store, nil)
	ctx := context.Background()

	first := &models.BillingEvent{
		ProductBillingID: "bill-1",
		ExternalEventID:  "evt_123",
		EventType:        models.BillingSubscriptionCreated,
		SubscriptionID:   "sub-a",
		AmountCents:      900,
	}
	saved, err := svc.IngestBilling(ctx, first)
	require.NoError(t, err)
	assert.True(t, saved)

	// Redelivery of the same external event id.
	replay := &models.BillingEvent{
		ProductBillingID: "bill-1",
		ExternalEventID:  "evt_123",
		EventType:        models.BillingSubscriptionCreated,
		SubscriptionID:   "sub-a",
		AmountCents:      900,
	}
	saved, err = svc.IngestBilling(ctx, replay)
	require.NoError(t, err)
	assert.False(t, saved)

	events, err := store.BillingEvents(ctx, "bill-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestIngestBillingRejectsInvalid(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newTestIngest(store, nil)

	_, err := svc.IngestBilling(context.Background(), &models.BillingEvent{ProductBillingID: "bill-1"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
