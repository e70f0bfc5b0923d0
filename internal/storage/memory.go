package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hivewatch/hivewatch/internal/models"
)

// InMemoryStore provides in-memory storage for all streams. It backs the
// service when no database is configured and the tests.
type InMemoryStore struct {
	mu sync.RWMutex

	trafficByProject map[string][]*models.TrafficEvent
	billingByID      map[string]*models.BillingEvent // external_event_id -> event
	billingBySubject map[string][]*models.BillingEvent
	snapshots        map[string][]*models.MetricsSnapshot
	products         map[string]*models.Product
	productsByUser   map[string][]string
	settings         map[string]models.SignalThresholds
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		trafficByProject: make(map[string][]*models.TrafficEvent),
		billingByID:      make(map[string]*models.BillingEvent),
		billingBySubject: make(map[string][]*models.BillingEvent),
		snapshots:        make(map[string][]*models.MetricsSnapshot),
		products:         make(map[string]*models.Product),
		productsByUser:   make(map[string][]string),
		settings:         make(map[string]models.SignalThresholds),
	}
}

// =============================================
// Traffic events
// =============================================

func (s *InMemoryStore) SaveTrafficEvent(ctx context.Context, event *models.TrafficEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trafficByProject[event.ProjectID] = append(s.trafficByProject[event.ProjectID], event)
	return nil
}

func (s *InMemoryStore) TrafficEventsSince(ctx context.Context, projectID string, since time.Time) ([]*models.TrafficEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.TrafficEvent, 0)
	for _, ev := range s.trafficByProject[projectID] {
		if !ev.OccurredAt.Before(since) {
			result = append(result, ev)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

func (s *InMemoryStore) PurgeTrafficBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for projectID, events := range s.trafficByProject {
		kept := events[:0]
		for _, ev := range events {
			if deleted < int64(limit) && ev.OccurredAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, ev)
		}
		if len(kept) > 0 {
			s.trafficByProject[projectID] = kept
		} else {
			delete(s.trafficByProject, projectID)
		}
		if deleted >= int64(limit) {
			break
		}
	}
	return deleted, nil
}

// =============================================
// Billing events
// =============================================

func (s *InMemoryStore) SaveBillingEvent(ctx context.Context, event *models.BillingEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check-then-insert is atomic under the store lock.
	if _, exists := s.billingByID[event.ExternalEventID]; exists {
		return false, nil
	}
	s.billingByID[event.ExternalEventID] = event
	s.billingBySubject[event.ProductBillingID] = append(s.billingBySubject[event.ProductBillingID], event)
	return true, nil
}

func (s *InMemoryStore) BillingEvents(ctx context.Context, billingID string) ([]*models.BillingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.billingBySubject[billingID]
	result := make([]*models.BillingEvent, len(events))
	copy(result, events)
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

// =============================================
// Snapshots
// =============================================

func (s *InMemoryStore) SaveSnapshot(ctx context.Context, snap *models.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.ProductID] = append(s.snapshots[snap.ProductID], snap)
	return nil
}

func (s *InMemoryStore) LatestSnapshot(ctx context.Context, productID string) (*models.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.MetricsSnapshot
	for _, snap := range s.snapshots[productID] {
		if latest == nil || snap.SnapshotAt.After(latest.SnapshotAt) {
			latest = snap
		}
	}
	return latest, nil
}

func (s *InMemoryStore) SnapshotsSince(ctx context.Context, productID string, since time.Time) ([]*models.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.MetricsSnapshot, 0)
	for _, snap := range s.snapshots[productID] {
		if !snap.SnapshotAt.Before(since) {
			result = append(result, snap)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SnapshotAt.Before(result[j].SnapshotAt)
	})
	return result, nil
}

// =============================================
// Products
// =============================================

func (s *InMemoryStore) Get(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID string) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.productsByUser[userID]
	result := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *InMemoryStore) ListEnabled(ctx context.Context) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Product, 0)
	for _, p := range s.products {
		if p.Enabled {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	s.productsByUser[p.UserID] = append(s.productsByUser[p.UserID], p.ID)
	return nil
}

func (s *InMemoryStore) UpdateHealth(ctx context.Context, id string, healthy bool, responseTimeMS int64, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil
	}

	failures := 0
	if !healthy {
		failures = p.ConsecutiveFailures + 1
	}

	h := healthy
	rt := responseTimeMS
	at := checkedAt
	p.LastHealthy = &h
	p.LastResponseTimeMS = &rt
	p.LastHealthCheckAt = &at
	p.ConsecutiveFailures = failures
	p.UpdatedAt = checkedAt
	return nil
}

// =============================================
// Settings
// =============================================

func (s *InMemoryStore) Thresholds(ctx context.Context, userID string) (models.SignalThresholds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.settings[userID]; ok {
		return t, nil
	}
	return models.DefaultThresholds(), nil
}

func (s *InMemoryStore) SaveThresholds(ctx context.Context, userID string, t models.SignalThresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[userID] = t
	return nil
}
