package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/hivewatch/internal/models"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testClassifier() *Classifier {
	c := NewClassifier(7)
	c.Now = func() time.Time { return testNow }
	return c
}

// dailyHistory builds snapshots one day apart ending at testNow, with
// the given visit counts (oldest first).
func dailyHistory(visits ...int64) []*models.MetricsSnapshot {
	history := make([]*models.MetricsSnapshot, len(visits))
	for i, v := range visits {
		history[i] = &models.MetricsSnapshot{
			ProductID:  "prod-1",
			Visits:     v,
			Healthy:    true,
			SnapshotAt: testNow.AddDate(0, 0, -(len(visits) - 1 - i)),
		}
	}
	return history
}

func metricsFromLatest(history []*models.MetricsSnapshot) *models.MergedMetrics {
	latest := history[len(history)-1]
	return &models.MergedMetrics{
		Visits:      latest.Visits,
		Healthy:     latest.Healthy,
		EffectiveAt: latest.SnapshotAt,
	}
}

func TestClassifyTractionOnVisitsAboveThreshold(t *testing.T) {
	c := testClassifier()
	history := dailyHistory(100, 105, 110, 112, 115, 118, 120, 122, 124, 125, 126, 127, 128, 129, 130)

	signal, growth := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalTraction, signal)
	require.NotNil(t, growth)
	// latest 130 vs the entry exactly seven days earlier (122)
	assert.InDelta(t, 6.56, *growth, 0.01)
}

func TestClassifyTractionOnGrowthAboveFiftyPercent(t *testing.T) {
	c := testClassifier()
	// 20 visits a week ago, 40 now: +100% growth despite low volume
	history := dailyHistory(20, 21, 22, 23, 25, 28, 32, 40)

	signal, growth := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalTraction, signal)
	require.NotNil(t, growth)
	assert.InDelta(t, 100.0, *growth, 0.01)
}

func TestClassifyTractionOnActiveRevenue(t *testing.T) {
	c := testClassifier()
	history := dailyHistory(5, 5, 5, 5, 5, 5, 5, 5)
	revenue := &models.RevenueSummary{MRRCents: 900, Subscribers: 1}

	signal, _ := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), revenue)

	assert.Equal(t, models.SignalTraction, signal)
}

func TestClassifyAwaitingDataWhenNothingKnown(t *testing.T) {
	c := testClassifier()

	signal, growth := c.Classify(nil, nil, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalAwaitingData, signal)
	assert.Nil(t, growth)
}

func TestClassifyAwaitingDataBeatsDegradedOnShortHistory(t *testing.T) {
	c := testClassifier()
	// Five days of history only; the latest probe failed. Trend cannot be
	// judged yet, so awaiting-data wins over degraded.
	history := dailyHistory(10, 12, 9, 11, 10)
	metrics := metricsFromLatest(history)
	metrics.Healthy = false

	signal, _ := c.Classify(metrics, history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalAwaitingData, signal)
}

func TestClassifyNotAwaitingAtExactlySevenDaySpan(t *testing.T) {
	c := testClassifier()
	// Eight daily entries span exactly seven days.
	history := dailyHistory(10, 10, 10, 10, 10, 10, 10, 10)

	signal, _ := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.NotEqual(t, models.SignalAwaitingData, signal)
}

func TestClassifyDeadWhenTrafficNeverSeen(t *testing.T) {
	c := testClassifier()
	history := dailyHistory(0, 0, 0, 0, 0, 0, 0, 0)

	signal, growth := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalDead, signal)
	assert.Nil(t, growth)
}

func TestClassifyDeadAfterTrafficStops(t *testing.T) {
	c := testClassifier()
	// Last nonzero visits eight days ago, no revenue.
	history := dailyHistory(50, 0, 0, 0, 0, 0, 0, 0, 0)

	signal, _ := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalDead, signal)
}

func TestClassifyRevenueOverridesDead(t *testing.T) {
	c := testClassifier()
	history := dailyHistory(0, 0, 0, 0, 0, 0, 0, 0)
	revenue := &models.RevenueSummary{MRRCents: 2900, Subscribers: 3}

	signal, _ := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), revenue)

	assert.Equal(t, models.SignalTraction, signal)
}

func TestClassifyDegraded(t *testing.T) {
	thresholds := models.DefaultThresholds()
	slow := int64(3500)

	tests := []struct {
		name    string
		mutate  func(*models.MergedMetrics)
		history []*models.MetricsSnapshot
	}{
		{
			name:    "probe failed",
			mutate:  func(m *models.MergedMetrics) { m.Healthy = false },
			history: dailyHistory(10, 10, 10, 10, 10, 10, 10, 10),
		},
		{
			name:    "slow response",
			mutate:  func(m *models.MergedMetrics) { m.ResponseTimeMS = &slow },
			history: dailyHistory(10, 10, 10, 10, 10, 10, 10, 10),
		},
		{
			name:    "traffic decline past threshold",
			mutate:  func(*models.MergedMetrics) {},
			history: dailyHistory(80, 75, 70, 65, 60, 55, 50, 40), // -50% week over week
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClassifier()
			metrics := metricsFromLatest(tt.history)
			tt.mutate(metrics)

			signal, _ := c.Classify(metrics, tt.history, thresholds, nil)

			assert.Equal(t, models.SignalDegraded, signal)
		})
	}
}

func TestClassifyHealthyFallback(t *testing.T) {
	c := testClassifier()
	// Steady low traffic, healthy probes, no revenue: nothing remarkable.
	history := dailyHistory(30, 31, 29, 30, 32, 30, 31, 30)

	signal, growth := c.Classify(metricsFromLatest(history), history, models.DefaultThresholds(), nil)

	assert.Equal(t, models.SignalHealthy, signal)
	require.NotNil(t, growth)
	assert.InDelta(t, 0.0, *growth, 0.01)
}

func TestClassifyDeterministic(t *testing.T) {
	c := testClassifier()
	history := dailyHistory(40, 42, 44, 46, 48, 50, 52, 54)
	metrics := metricsFromLatest(history)

	s1, g1 := c.Classify(metrics, history, models.DefaultThresholds(), nil)
	s2, g2 := c.Classify(metrics, history, models.DefaultThresholds(), nil)

	assert.Equal(t, s1, s2)
	require.NotNil(t, g1)
	require.NotNil(t, g2)
	assert.Equal(t, *g1, *g2)
}

func TestGrowthPct(t *testing.T) {
	t.Run("no qualifying previous entry", func(t *testing.T) {
		history := dailyHistory(10, 20, 30) // span too short for a 7d-ago entry
		assert.Nil(t, growthPct(history))
	})

	t.Run("previous visits zero", func(t *testing.T) {
		history := dailyHistory(0, 5, 10, 15, 20, 25, 30, 35)
		assert.Nil(t, growthPct(history))
	})

	t.Run("picks entry at or before the window boundary", func(t *testing.T) {
		// Entries at -9d, -8d and now: the -8d entry is the closest one at
		// or before now-7d.
		history := []*models.MetricsSnapshot{
			{Visits: 100, SnapshotAt: testNow.AddDate(0, 0, -9)},
			{Visits: 200, SnapshotAt: testNow.AddDate(0, 0, -8)},
			{Visits: 300, SnapshotAt: testNow},
		}
		growth := growthPct(history)
		require.NotNil(t, growth)
		assert.InDelta(t, 50.0, *growth, 0.01)
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Nil(t, growthPct(nil))
	})
}

func TestSortProductSignals(t *testing.T) {
	mk := func(name string, signal models.Signal) *models.ProductSignal {
		return &models.ProductSignal{
			Product: &models.Product{Name: name},
			Signal:  signal,
		}
	}

	list := []*models.ProductSignal{
		mk("zeta", models.SignalDead),
		mk("beta", models.SignalHealthy),
		mk("alpha", models.SignalHealthy),
		mk("gamma", models.SignalTraction),
		mk("delta", models.SignalAwaitingData),
		mk("omega", models.SignalDegraded),
	}

	SortProductSignals(list)

	got := make([]string, len(list))
	for i, ps := range list {
		got[i] = ps.Product.Name
	}
	assert.Equal(t, []string{"gamma", "omega", "alpha", "beta", "delta", "zeta"}, got)
}
