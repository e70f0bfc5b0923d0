package models

import (
	"errors"
	"time"
)

// Signal is the derived classification of a product's current state.
// It is computed on read and never persisted.
type Signal string

const (
	SignalTraction     Signal = "traction"
	SignalDegraded     Signal = "degraded"
	SignalHealthy      Signal = "healthy"
	SignalAwaitingData Signal = "awaiting-data"
	SignalDead         Signal = "dead"
)

// Priority returns the display sort rank: traction first, dead last.
func (s Signal) Priority() int {
	switch s {
	case SignalTraction:
		return 0
	case SignalDegraded:
		return 1
	case SignalHealthy:
		return 2
	case SignalAwaitingData:
		return 3
	case SignalDead:
		return 4
	}
	return 5
}

// SignalThresholds is the per-user threshold set used by the classifier.
type SignalThresholds struct {
	TractionVisits         int64   `json:"traction_visit_threshold"`
	DegradedResponseTimeMS int64   `json:"degraded_response_time_ms"`
	DegradedDeclinePct     float64 `json:"degraded_decline_pct"`
}

// DefaultThresholds apply when a user has no stored settings.
func DefaultThresholds() SignalThresholds {
	return SignalThresholds{
		TractionVisits:         100,
		DegradedResponseTimeMS: 2000,
		DegradedDeclinePct:     30,
	}
}

// Validate rejects non-positive threshold values.
func (t SignalThresholds) Validate() error {
	if t.TractionVisits <= 0 {
		return errors.New("traction_visit_threshold must be positive")
	}
	if t.DegradedResponseTimeMS <= 0 {
		return errors.New("degraded_response_time_ms must be positive")
	}
	if t.DegradedDeclinePct <= 0 {
		return errors.New("degraded_decline_pct must be positive")
	}
	return nil
}

// TrafficSummary is the output of trailing-window traffic aggregation.
type TrafficSummary struct {
	Visits        int64 `json:"visits"`
	Devices       int64 `json:"devices"`
	BounceRatePct int   `json:"bounce_rate_pct"`
	Pageviews     int64 `json:"pageviews"`
}

// RevenueSummary is the state reconstructed from a billing event stream.
type RevenueSummary struct {
	MRRCents    int64 `json:"mrr_cents"`
	Subscribers int64 `json:"subscribers"`
}

// HasRevenue reports whether any subscription revenue is active.
func (r RevenueSummary) HasRevenue() bool {
	return r.MRRCents > 0 || r.Subscribers > 0
}

// HealthResult is the outcome of one probe against a product's domain.
// Probe failures are represented as a result with StatusCode 0, never as
// an error.
type HealthResult struct {
	Healthy        bool  `json:"healthy"`
	ResponseTimeMS int64 `json:"response_time_ms"`
	StatusCode     int   `json:"status_code"`
}

// MergedMetrics reconciles the most recent scheduled health check with
// the most recent metrics snapshot, preferring whichever is newer.
type MergedMetrics struct {
	Visits        int64 `json:"visits"`
	Devices       int64 `json:"devices"`
	BounceRatePct int   `json:"bounce_rate_pct"`

	Healthy        bool   `json:"healthy"`
	ResponseTimeMS *int64 `json:"response_time_ms,omitempty"`
	StatusCode     *int   `json:"status_code,omitempty"`

	EffectiveAt time.Time `json:"effective_at"`
}

// ProductSignal is a product joined with its computed signal, returned by
// the read API.
type ProductSignal struct {
	Product   *Product        `json:"product"`
	Signal    Signal          `json:"signal"`
	GrowthPct *float64        `json:"growth_pct,omitempty"`
	Metrics   *MergedMetrics  `json:"metrics,omitempty"`
	Revenue   *RevenueSummary `json:"revenue,omitempty"`
}
