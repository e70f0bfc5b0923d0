package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/models"
)

func TestProbeURL(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"example.com", "https://example.com"},
		{"https://example.com", "https://example.com"},
		{"http://example.com", "https://example.com"},
		{"  example.com", "https://example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, probeURL(tt.domain))
	}
}

func TestProbeEmptyDomain(t *testing.T) {
	p := NewProber(time.Second, zap.NewNop())

	result := p.Probe(context.Background(), "")

	assert.False(t, result.Healthy)
	assert.Equal(t, 0, result.StatusCode)
}

func TestProbeUnreachableNeverErrors(t *testing.T) {
	p := NewProber(500*time.Millisecond, zap.NewNop())

	// Nothing listens here; the failure must surface as a zero status
	// code result, not a panic or error.
	result := p.Probe(context.Background(), "127.0.0.1:1")

	assert.False(t, result.Healthy)
	assert.Equal(t, 0, result.StatusCode)
	assert.GreaterOrEqual(t, result.ResponseTimeMS, int64(0))
}

func TestMergeHealthNoData(t *testing.T) {
	assert.Nil(t, MergeHealth(&models.Product{}, nil))
}

func TestMergeHealthScheduledCheckOnly(t *testing.T) {
	healthy := true
	rt := int64(150)
	checkedAt := testNow.Add(-time.Hour)
	product := &models.Product{
		LastHealthy:        &healthy,
		LastResponseTimeMS: &rt,
		LastHealthCheckAt:  &checkedAt,
	}

	merged := MergeHealth(product, nil)

	assert.NotNil(t, merged)
	assert.True(t, merged.Healthy)
	assert.Equal(t, int64(150), *merged.ResponseTimeMS)
	assert.Equal(t, int64(0), merged.Visits)
	assert.Equal(t, checkedAt, merged.EffectiveAt)
}

func TestMergeHealthSnapshotNewerWins(t *testing.T) {
	unhealthy := false
	rt := int64(9000)
	checkedAt := testNow.Add(-2 * time.Hour)
	product := &models.Product{
		LastHealthy:        &unhealthy,
		LastResponseTimeMS: &rt,
		LastHealthCheckAt:  &checkedAt,
	}
	snapRT := int64(120)
	snap := &models.MetricsSnapshot{
		Visits:         42,
		Healthy:        true,
		ResponseTimeMS: &snapRT,
		SnapshotAt:     testNow.Add(-time.Hour),
	}

	merged := MergeHealth(product, snap)

	assert.True(t, merged.Healthy)
	assert.Equal(t, int64(120), *merged.ResponseTimeMS)
	assert.Equal(t, int64(42), merged.Visits)
	assert.Equal(t, snap.SnapshotAt, merged.EffectiveAt)
}

func TestMergeHealthFresherCheckOverridesSnapshot(t *testing.T) {
	unhealthy := false
	rt := int64(9000)
	checkedAt := testNow
	product := &models.Product{
		LastHealthy:        &unhealthy,
		LastResponseTimeMS: &rt,
		LastHealthCheckAt:  &checkedAt,
	}
	snapRT := int64(120)
	snap := &models.MetricsSnapshot{
		Visits:         42,
		Healthy:        true,
		ResponseTimeMS: &snapRT,
		SnapshotAt:     testNow.Add(-time.Hour),
	}

	merged := MergeHealth(product, snap)

	// Health fields come from the fresher scheduled check; the traffic
	// fields still come from the snapshot.
	assert.False(t, merged.Healthy)
	assert.Equal(t, int64(9000), *merged.ResponseTimeMS)
	assert.Equal(t, int64(42), merged.Visits)
	assert.Equal(t, testNow, merged.EffectiveAt)
}

func TestMergeHealthFresherCheckFallsBackOnMissingFields(t *testing.T) {
	checkedAt := testNow
	product := &models.Product{
		LastHealthCheckAt: &checkedAt,
	}
	snapRT := int64(120)
	snap := &models.MetricsSnapshot{
		Healthy:        true,
		ResponseTimeMS: &snapRT,
		SnapshotAt:     testNow.Add(-time.Hour),
	}

	merged := MergeHealth(product, snap)

	assert.True(t, merged.Healthy)
	assert.Equal(t, int64(120), *merged.ResponseTimeMS)
}
