package insight

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/cache"
	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// Service is the read API over products, snapshots and events: signals,
// history windows and revenue state. Classification is recomputed on
// every read; the optional Redis cache sits in front of it.
type Service struct {
	products   storage.ProductRepo
	snapshots  storage.SnapshotStore
	settings   storage.SettingsRepo
	revenue    *RevenueService
	classifier *Classifier
	cache      *cache.SignalCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires the read API.
func NewService(products storage.ProductRepo, snapshots storage.SnapshotStore, settings storage.SettingsRepo, revenue *RevenueService, classifier *Classifier, signalCache *cache.SignalCache, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		products:   products,
		snapshots:  snapshots,
		settings:   settings,
		revenue:    revenue,
		classifier: classifier,
		cache:      signalCache,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// GetSignal computes the signal for one product, nil when the product
// does not exist.
func (s *Service) GetSignal(ctx context.Context, productID string) (*models.ProductSignal, error) {
	if cached := s.cache.Get(ctx, productID); cached != nil {
		return cached, nil
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	thresholds, err := s.settings.Thresholds(ctx, product.UserID)
	if err != nil {
		return nil, err
	}

	ps, err := s.buildSignal(ctx, product, thresholds)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, ps)
	return ps, nil
}

// ListWithSignals returns the user's products with computed signals in
// display order.
func (s *Service) ListWithSignals(ctx context.Context, userID string) ([]*models.ProductSignal, error) {
	products, err := s.products.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	thresholds, err := s.settings.Thresholds(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]*models.ProductSignal, 0, len(products))
	for _, product := range products {
		ps, err := s.buildSignal(ctx, product, thresholds)
		if err != nil {
			return nil, fmt.Errorf("failed to build signal for %s: %w", product.ID, err)
		}
		result = append(result, ps)
	}

	SortProductSignals(result)
	return result, nil
}

// History returns a product's snapshot series over the trailing window,
// ordered ascending. A days value of 0 defaults to 7.
func (s *Service) History(ctx context.Context, productID string, days int) ([]*models.MetricsSnapshot, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().AddDate(0, 0, -days)
	return s.snapshots.SnapshotsSince(ctx, productID, since)
}

// Revenue reconstructs the revenue state for a billing subject.
func (s *Service) Revenue(ctx context.Context, billingID string) (models.RevenueSummary, error) {
	return s.revenue.RevenueFor(ctx, billingID)
}

// Thresholds returns the user's signal thresholds, falling back to the
// defaults when none are stored.
func (s *Service) Thresholds(ctx context.Context, userID string) (models.SignalThresholds, error) {
	return s.settings.Thresholds(ctx, userID)
}

// SaveThresholds upserts the user's thresholds and drops their products'
// cached signals so reads reflect the new bar immediately.
func (s *Service) SaveThresholds(ctx context.Context, userID string, t models.SignalThresholds) error {
	if err := s.settings.SaveThresholds(ctx, userID, t); err != nil {
		return err
	}

	products, err := s.products.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, product := range products {
		s.cache.Invalidate(ctx, product.ID)
	}
	return nil
}

func (s *Service) buildSignal(ctx context.Context, product *models.Product, thresholds models.SignalThresholds) (*models.ProductSignal, error) {
	latest, err := s.snapshots.LatestSnapshot(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	// Twice the growth window so the comparison entry at or before
	// latest-7d is present for daily snapshot cadences.
	since := s.now().AddDate(0, 0, -2*growthWindowDays)
	history, err := s.snapshots.SnapshotsSince(ctx, product.ID, since)
	if err != nil {
		return nil, err
	}

	var revenue *models.RevenueSummary
	if product.BillingID != "" {
		rev, err := s.revenue.RevenueFor(ctx, product.BillingID)
		if err != nil {
			return nil, err
		}
		revenue = &rev
	}

	merged := MergeHealth(product, latest)
	signal, growth := s.classifier.Classify(merged, history, thresholds, revenue)

	if s.metrics != nil {
		s.metrics.SignalsComputed.WithLabelValues(string(signal)).Inc()
	}

	return &models.ProductSignal{
		Product:   product,
		Signal:    signal,
		GrowthPct: growth,
		Metrics:   merged,
		Revenue:   revenue,
	}, nil
}
