package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// AggregateTraffic computes the window summary from raw events. Visits
// and devices are distinct session/device counts; bounce rate is the
// share of pageview sessions with exactly one pageview, rounded to the
// nearest integer. Empty input yields an all-zero summary.
func AggregateTraffic(events []*models.TrafficEvent) models.TrafficSummary {
	if len(events) == 0 {
		return models.TrafficSummary{}
	}

	sessions := make(map[int64]struct{})
	devices := make(map[int64]struct{})
	sessionPageviews := make(map[int64]int64)
	var pageviews int64

	for _, ev := range events {
		sessions[ev.SessionID] = struct{}{}
		devices[ev.DeviceID] = struct{}{}

		// Only pageview-type events count toward bounce-rate session size.
		if ev.EventType == models.TrafficEventPageview {
			sessionPageviews[ev.SessionID]++
			pageviews++
		}
	}

	bounced := 0
	for _, count := range sessionPageviews {
		if count == 1 {
			bounced++
		}
	}

	bounceRate := 0
	if len(sessionPageviews) > 0 {
		bounceRate = int(math.Round(float64(bounced) / float64(len(sessionPageviews)) * 100))
	}

	return models.TrafficSummary{
		Visits:        int64(len(sessions)),
		Devices:       int64(len(devices)),
		BounceRatePct: bounceRate,
		Pageviews:     pageviews,
	}
}

// TrafficService aggregates a project's traffic over a trailing window.
type TrafficService struct {
	store      storage.TrafficEventStore
	windowDays int
	now        func() time.Time
}

// NewTrafficService constructs a TrafficService backed by the given store.
func NewTrafficService(store storage.TrafficEventStore, windowDays int) *TrafficService {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &TrafficService{
		store:      store,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// AggregateForProject summarizes the trailing window for one project.
// A days value of 0 uses the configured default window.
func (s *TrafficService) AggregateForProject(ctx context.Context, projectID string, days int) (models.TrafficSummary, error) {
	if days <= 0 {
		days = s.windowDays
	}
	since := s.now().AddDate(0, 0, -days)

	events, err := s.store.TrafficEventsSince(ctx, projectID, since)
	if err != nil {
		return models.TrafficSummary{}, fmt.Errorf("failed to load traffic events: %w", err)
	}
	return AggregateTraffic(events), nil
}
