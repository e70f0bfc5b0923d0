package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Ingestion metrics
	TrafficIngested   prometheus.Counter
	TrafficRejected   *prometheus.CounterVec
	BillingIngested   prometheus.Counter
	BillingDuplicates prometheus.Counter
	BillingRejected   *prometheus.CounterVec

	// Probe metrics
	ProbeLatency  prometheus.Histogram
	ProbeFailures prometheus.Counter

	// Refresh metrics
	RefreshProducts   *prometheus.CounterVec
	SnapshotsRecorded prometheus.Counter

	// Classification metrics
	SignalsComputed *prometheus.CounterVec

	// Retention metrics
	EventsPurged prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TrafficIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_events_ingested_total",
			Help:      "Total number of traffic events accepted",
		}),
		TrafficRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_events_rejected_total",
			Help:      "Total number of traffic events rejected at the boundary",
		}, []string{"reason"}),
		BillingIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_ingested_total",
			Help:      "Total number of billing events accepted",
		}),
		BillingDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_duplicate_total",
			Help:      "Total number of billing events absorbed as duplicates",
		}),
		BillingRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_rejected_total",
			Help:      "Total number of billing events rejected at the boundary",
		}, []string{"reason"}),
		ProbeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Health probe latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		ProbeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Total number of failed health probes",
		}),
		RefreshProducts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_products_total",
			Help:      "Refresh outcomes per product",
		}, []string{"status"}),
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_recorded_total",
			Help:      "Total number of metrics snapshots recorded",
		}),
		SignalsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_computed_total",
			Help:      "Signals computed on the read path",
		}, []string{"signal"}),
		EventsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_events_purged_total",
			Help:      "Total number of traffic events removed by retention sweeps",
		}),
		RateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by rate limiting",
		}, []string{"endpoint"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
