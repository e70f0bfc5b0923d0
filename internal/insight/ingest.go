package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// ErrInvalidEvent marks events rejected by validation, as opposed to
// storage failures.
var ErrInvalidEvent = errors.New("invalid event")

// CountryResolver maps a client IP to an ISO country code. Lookups are
// best effort; failures leave the event's country empty.
type CountryResolver interface {
	Country(ip string) (string, error)
}

// IngestService validates and normalizes loosely-shaped upstream payloads
// into the strict event types before they reach storage. Invalid events
// are rejected whole, never partially stored or guessed at.
type IngestService struct {
	traffic storage.TrafficEventStore
	billing storage.BillingEventStore
	geo     CountryResolver
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestService constructs an IngestService. geo may be nil to skip
// country enrichment.
func NewIngestService(traffic storage.TrafficEventStore, billing storage.BillingEventStore, geo CountryResolver, m *metrics.Metrics, logger *zap.Logger) *IngestService {
	return &IngestService{
		traffic: traffic,
		billing: billing,
		geo:     geo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// IngestTraffic appends one traffic event. remoteIP is used for country
// enrichment when the event carries none.
func (s *IngestService) IngestTraffic(ctx context.Context, event *models.TrafficEvent, remoteIP string) error {
	if err := event.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.TrafficRejected.WithLabelValues("invalid").Inc()
		}
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	now := s.now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	event.ReceivedAt = now

	if event.Country == "" && s.geo != nil && remoteIP != "" {
		if country, err := s.geo.Country(remoteIP); err == nil {
			event.Country = country
		}
	}

	if err := s.traffic.SaveTrafficEvent(ctx, event); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.TrafficIngested.Inc()
	}
	return nil
}

// IngestBilling appends a billing event unless its external event id was
// seen before. Returns false for the silent duplicate no-op.
func (s *IngestService) IngestBilling(ctx context.Context, event *models.BillingEvent) (bool, error) {
	if err := event.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.BillingRejected.WithLabelValues("invalid").Inc()
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	now := s.now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	event.ReceivedAt = now

	saved, err := s.billing.SaveBillingEvent(ctx, event)
	if err != nil {
		return false, err
	}

	if s.metrics != nil {
		if saved {
			s.metrics.BillingIngested.Inc()
		} else {
			s.metrics.BillingDuplicates.Inc()
		}
	}
	if !saved {
		s.logger.Debug("duplicate billing event absorbed",
			zap.String("external_event_id", event.ExternalEventID),
		)
	}
	return saved, nil
}
