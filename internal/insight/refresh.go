package insight

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/cache"
	"github.com/hivewatch/hivewatch/internal/metrics"
	"github.com/hivewatch/hivewatch/internal/models"
	"github.com/hivewatch/hivewatch/internal/storage"
)

// RefreshReport summarizes a refresh-all run. Partial failures are
// tolerated and reported as counts, never as an all-or-nothing error.
type RefreshReport struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RefreshService runs the per-product refresh workflow: aggregate the
// traffic window, probe the domain, reconstruct revenue, and record one
// snapshot. Products are refreshed in parallel and one product's failure
// never blocks another's.
type RefreshService struct {
	products storage.ProductRepo
	traffic  *TrafficService
	revenue  *RevenueService
	prober   *Prober
	recorder *Recorder
	cache    *cache.SignalCache
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRefreshService wires the refresh workflow.
func NewRefreshService(products storage.ProductRepo, traffic *TrafficService, revenue *RevenueService, prober *Prober, recorder *Recorder, signalCache *cache.SignalCache, m *metrics.Metrics, logger *zap.Logger) *RefreshService {
	return &RefreshService{
		products: products,
		traffic:  traffic,
		revenue:  revenue,
		prober:   prober,
		recorder: recorder,
		cache:    signalCache,
		metrics:  m,
		logger:   logger,
	}
}

// RefreshProduct refreshes one product and reports whether the probe
// reached the domain. Aggregation and probing run concurrently.
func (s *RefreshService) RefreshProduct(ctx context.Context, product *models.Product) (bool, error) {
	var (
		wg      sync.WaitGroup
		summary models.TrafficSummary
		aggErr  error
		health  models.HealthResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if product.ProjectID == "" {
			s.logger.Debug("analytics skipped: missing project id",
				zap.String("product_id", product.ID))
			return
		}
		summary, aggErr = s.traffic.AggregateForProject(ctx, product.ProjectID, 0)
	}()
	go func() {
		defer wg.Done()
		started := time.Now()
		health = s.prober.Probe(ctx, product.Domain)
		if s.metrics != nil {
			s.metrics.ProbeLatency.Observe(time.Since(started).Seconds())
			if !health.Healthy {
				s.metrics.ProbeFailures.Inc()
			}
		}
	}()
	wg.Wait()

	if aggErr != nil {
		return false, aggErr
	}

	var revenue *models.RevenueSummary
	if product.BillingID != "" {
		rev, err := s.revenue.RevenueFor(ctx, product.BillingID)
		if err != nil {
			return false, err
		}
		revenue = &rev
	}

	if _, err := s.recorder.Record(ctx, product.ID, summary, health, revenue, nil); err != nil {
		return false, err
	}
	s.cache.Invalidate(ctx, product.ID)

	return health.StatusCode != 0, nil
}

// RefreshAll refreshes every enabled product in parallel.
func (s *RefreshService) RefreshAll(ctx context.Context) (RefreshReport, error) {
	products, err := s.products.ListEnabled(ctx)
	if err != nil {
		return RefreshReport{}, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for _, product := range products {
		product := product
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := s.RefreshProduct(ctx, product)
			status := "failed"
			if err != nil {
				s.logger.Warn("product refresh failed",
					zap.String("product_id", product.ID),
					zap.Error(err),
				)
			} else if ok {
				status = "succeeded"
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
			if s.metrics != nil {
				s.metrics.RefreshProducts.WithLabelValues(status).Inc()
			}
		}()
	}
	wg.Wait()

	report := RefreshReport{
		Total:     len(products),
		Succeeded: succeeded,
		Failed:    len(products) - succeeded,
	}
	s.logger.Info("refresh completed",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// RunHealthChecks probes every enabled product concurrently and writes
// the outcome to the product health fields. Returns the number checked.
func (s *RefreshService) RunHealthChecks(ctx context.Context) (int, error) {
	products, err := s.products.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, product := range products {
		product := product
		wg.Add(1)
		go func() {
			defer wg.Done()

			result := s.prober.Probe(ctx, product.Domain)
			if s.metrics != nil && !result.Healthy {
				s.metrics.ProbeFailures.Inc()
			}
			if err := s.products.UpdateHealth(ctx, product.ID, result.Healthy, result.ResponseTimeMS, time.Now()); err != nil {
				s.logger.Warn("failed to update product health",
					zap.String("product_id", product.ID),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()

	return len(products), nil
}
