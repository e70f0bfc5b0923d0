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

func pv(session, device int64, path string) *models.TrafficEvent {
	return &models.TrafficEvent{
		ProjectID: "proj-1",
		EventType: models.TrafficEventPageview,
		SessionID: session,
		DeviceID:  device,
		Path:      path,
	}
}

func custom(session, device int64, name string) *models.TrafficEvent {
	return &models.TrafficEvent{
		ProjectID: "proj-1",
		EventType: models.TrafficEventCustom,
		EventName: name,
		SessionID: session,
		DeviceID:  device,
	}
}

func TestAggregateTrafficEmpty(t *testing.T) {
	assert.Equal(t, models.TrafficSummary{}, AggregateTraffic(nil))
}

func TestAggregateTrafficDistinctCounts(t *testing.T) {
	events := []*models.TrafficEvent{
		pv(1, 10, "/"),
		pv(1, 10, "/pricing"),
		pv(2, 10, "/"), // second session on the same device
		pv(3, 11, "/"),
	}

	summary := AggregateTraffic(events)

	assert.Equal(t, int64(3), summary.Visits)
	assert.Equal(t, int64(2), summary.Devices)
	assert.Equal(t, int64(4), summary.Pageviews)
}

func TestAggregateTrafficBounceRate(t *testing.T) {
	// Session 1 views two pages, sessions 2 and 3 bounce: 2/3 rounds to 67.
	events := []*models.TrafficEvent{
		pv(1, 10, "/"),
		pv(1, 10, "/docs"),
		pv(2, 11, "/"),
		pv(3, 12, "/"),
	}

	summary := AggregateTraffic(events)

	assert.Equal(t, 67, summary.BounceRatePct)
}

func TestAggregateTrafficCustomEventsDoNotBounce(t *testing.T) {
	// A session with one pageview plus custom events is still a bounce,
	// and a custom-only session counts as a visit but not a pageview
	// session.
	events := []*models.TrafficEvent{
		pv(1, 10, "/"),
		custom(1, 10, "signup_click"),
		custom(2, 11, "api_call"),
	}

	summary := AggregateTraffic(events)

	assert.Equal(t, int64(2), summary.Visits)
	assert.Equal(t, int64(1), summary.Pageviews)
	assert.Equal(t, 100, summary.BounceRatePct)
}

func TestAggregateTrafficNoPageviewsZeroBounce(t *testing.T) {
	events := []*models.TrafficEvent{
		custom(1, 10, "api_call"),
		custom(2, 11, "api_call"),
	}

	summary := AggregateTraffic(events)

	assert.Equal(t, int64(2), summary.Visits)
	assert.Equal(t, 0, summary.BounceRatePct)
}

func TestAggregateForProjectWindow(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	inside := pv(1, 10, "/")
	inside.OccurredAt = testNow.AddDate(0, 0, -2)
	outside := pv(2, 11, "/")
	outside.OccurredAt = testNow.AddDate(0, 0, -10)

	require.NoError(t, store.SaveTrafficEvent(ctx, inside))
	require.NoError(t, store.SaveTrafficEvent(ctx, outside))

	svc := NewTrafficService(store, 7)
	svc.now = func() time.Time { return testNow }

	summary, err := svc.AggregateForProject(ctx, "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Visits)

	// A wider explicit window picks up the older event too.
	summary, err = svc.AggregateForProject(ctx, "proj-1", 14)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Visits)
}
