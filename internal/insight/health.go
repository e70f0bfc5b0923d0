package insight

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hivewatch/hivewatch/internal/models"
)

// Prober performs HTTP health checks against product domains. A probe
// never returns an error: timeouts and network failures degrade into a
// result with StatusCode 0 so the refresh workflow records them as data
// points instead of failing.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber creates a prober with the given per-probe timeout.
func NewProber(timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// probeURL normalizes a configured domain into an https URL.
func probeURL(domain string) string {
	trimmed := strings.TrimSpace(domain)
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	return "https://" + trimmed
}

// Probe requests the product's domain and reports the outcome. An empty
// domain yields an unhealthy zero result.
func (p *Prober) Probe(ctx context.Context, domain string) models.HealthResult {
	if strings.TrimSpace(domain) == "" {
		return models.HealthResult{}
	}

	target := probeURL(domain)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return models.HealthResult{ResponseTimeMS: time.Since(started).Milliseconds()}
	}

	resp, err := p.client.Do(req)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		p.logger.Debug("health check failed",
			zap.String("domain", domain),
			zap.Int64("response_time_ms", elapsed),
			zap.Error(err),
		)
		return models.HealthResult{Healthy: false, ResponseTimeMS: elapsed, StatusCode: 0}
	}
	defer resp.Body.Close()

	result := models.HealthResult{
		Healthy:        resp.StatusCode >= 200 && resp.StatusCode < 400,
		ResponseTimeMS: elapsed,
		StatusCode:     resp.StatusCode,
	}

	p.logger.Debug("health check",
		zap.String("domain", domain),
		zap.Bool("healthy", result.Healthy),
		zap.Int("status_code", result.StatusCode),
		zap.Int64("response_time_ms", elapsed),
	)
	return result
}

// MergeHealth reconciles a product's last scheduled check with its most
// recent snapshot, preferring whichever is newer. With no snapshot it
// falls back to a degenerate record built from the scheduled check alone;
// with neither it returns nil (no data yet).
func MergeHealth(product *models.Product, snap *models.MetricsSnapshot) *models.MergedMetrics {
	if snap == nil {
		if product.LastHealthCheckAt == nil {
			return nil
		}
		merged := &models.MergedMetrics{
			EffectiveAt: *product.LastHealthCheckAt,
		}
		if product.LastHealthy != nil {
			merged.Healthy = *product.LastHealthy
		}
		merged.ResponseTimeMS = product.LastResponseTimeMS
		return merged
	}

	merged := &models.MergedMetrics{
		Visits:         snap.Visits,
		Devices:        snap.Devices,
		BounceRatePct:  snap.BounceRatePct,
		Healthy:        snap.Healthy,
		ResponseTimeMS: snap.ResponseTimeMS,
		StatusCode:     snap.StatusCode,
		EffectiveAt:    snap.SnapshotAt,
	}

	if product.LastHealthCheckAt != nil && product.LastHealthCheckAt.After(snap.SnapshotAt) {
		// The scheduled check is fresher; its fields win, falling back to
		// snapshot values when a scheduled field is absent.
		if product.LastHealthy != nil {
			merged.Healthy = *product.LastHealthy
		}
		if product.LastResponseTimeMS != nil {
			merged.ResponseTimeMS = product.LastResponseTimeMS
		}
		merged.EffectiveAt = *product.LastHealthCheckAt
	}

	return merged
}
