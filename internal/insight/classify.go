package insight

import (
	"sort"
	"time"

	"github.com/hivewatch/hivewatch/internal/models"
)

const (
	// growthWindowDays is the lookback for the growth comparison: the
	// latest history entry against the entry at or before 7 days prior.
	growthWindowDays = 7

	// tractionGrowthPct is the week-over-week growth above which a
	// product signals traction regardless of absolute visits.
	tractionGrowthPct = 50.0
)

// Classifier turns merged metrics, snapshot history and revenue state
// into a signal. It is a pure function of its inputs and keeps no state;
// any caching belongs to callers.
type Classifier struct {
	// DeadAfterDays is the no-traffic interval after which a product
	// without revenue is considered dead.
	DeadAfterDays int

	// Now is overridable for tests.
	Now func() time.Time
}

// NewClassifier creates a classifier with the given dead-traffic interval.
func NewClassifier(deadAfterDays int) *Classifier {
	if deadAfterDays <= 0 {
		deadAfterDays = 7
	}
	return &Classifier{DeadAfterDays: deadAfterDays, Now: time.Now}
}

// evaluation carries the derived quantities the rules read.
type evaluation struct {
	metrics    *models.MergedMetrics
	history    []*models.MetricsSnapshot
	thresholds models.SignalThresholds
	revenue    *models.RevenueSummary

	growth      *float64
	daysSince   *int
	historySpan time.Duration
}

func (e *evaluation) hasRevenue() bool {
	return e.revenue != nil && e.revenue.HasRevenue()
}

func (e *evaluation) visits() int64 {
	if e.metrics == nil {
		return 0
	}
	return e.metrics.Visits
}

// rule pairs a signal with its predicate. Rules are evaluated in a fixed
// priority order; the first match wins.
type rule struct {
	signal models.Signal
	match  func(*evaluation) bool
}

func (c *Classifier) rules() []rule {
	return []rule{
		{models.SignalAwaitingData, func(e *evaluation) bool {
			if e.metrics == nil && len(e.history) == 0 {
				return true
			}
			// History that does not yet span the growth window cannot be
			// judged for trend.
			return len(e.history) > 0 && e.historySpan < growthWindowDays*24*time.Hour
		}},
		{models.SignalDead, func(e *evaluation) bool {
			if len(e.history) == 0 || e.hasRevenue() {
				return false
			}
			return e.daysSince == nil || *e.daysSince >= c.DeadAfterDays
		}},
		{models.SignalTraction, func(e *evaluation) bool {
			if e.visits() >= e.thresholds.TractionVisits {
				return true
			}
			if e.growth != nil && *e.growth > tractionGrowthPct {
				return true
			}
			return e.hasRevenue()
		}},
		{models.SignalDegraded, func(e *evaluation) bool {
			if e.metrics != nil {
				if !e.metrics.Healthy {
					return true
				}
				if e.metrics.ResponseTimeMS != nil && *e.metrics.ResponseTimeMS > e.thresholds.DegradedResponseTimeMS {
					return true
				}
			}
			return e.growth != nil && *e.growth <= -e.thresholds.DegradedDeclinePct
		}},
		{models.SignalHealthy, func(*evaluation) bool { return true }},
	}
}

// Classify computes the signal and growth percentage for one product.
// History must be ordered ascending by SnapshotAt; metrics and revenue
// may be nil when absent. Missing data never errors: it flows through as
// awaiting-data or an absent growth value.
func (c *Classifier) Classify(metrics *models.MergedMetrics, history []*models.MetricsSnapshot, thresholds models.SignalThresholds, revenue *models.RevenueSummary) (models.Signal, *float64) {
	e := &evaluation{
		metrics:    metrics,
		history:    history,
		thresholds: thresholds,
		revenue:    revenue,
		growth:     growthPct(history),
		daysSince:  c.daysSinceTraffic(history),
	}
	if len(history) > 0 {
		e.historySpan = history[len(history)-1].SnapshotAt.Sub(history[0].SnapshotAt)
	}

	for _, r := range c.rules() {
		if r.match(e) {
			return r.signal, e.growth
		}
	}
	return models.SignalHealthy, e.growth
}

// growthPct compares the latest entry's visits to the entry at or before
// one growth window earlier. Absent when there is no qualifying previous
// entry or its visits are zero.
func growthPct(history []*models.MetricsSnapshot) *float64 {
	if len(history) == 0 {
		return nil
	}

	latest := history[len(history)-1]
	cutoff := latest.SnapshotAt.AddDate(0, 0, -growthWindowDays)

	var previous *models.MetricsSnapshot
	for _, snap := range history {
		if snap.SnapshotAt.After(cutoff) {
			break
		}
		previous = snap
	}
	if previous == nil || previous.Visits == 0 {
		return nil
	}

	growth := float64(latest.Visits-previous.Visits) / float64(previous.Visits) * 100
	return &growth
}

// daysSinceTraffic reports whole days since the most recent history entry
// with any visits. Absent when no entry ever had traffic.
func (c *Classifier) daysSinceTraffic(history []*models.MetricsSnapshot) *int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Visits > 0 {
			days := int(c.Now().Sub(history[i].SnapshotAt).Hours() / 24)
			return &days
		}
	}
	return nil
}

// SortProductSignals orders products for display: signal priority first
// (traction, degraded, healthy, awaiting-data, dead), then product name.
func SortProductSignals(list []*models.ProductSignal) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := list[i].Signal.Priority(), list[j].Signal.Priority()
		if pi != pj {
			return pi < pj
		}
		return list[i].Product.Name < list[j].Product.Name
	})
}
