package models

import "time"

// Product is one tracked web product. Only the health fields are mutated
// after creation (by the scheduled health sweep); everything else is
// managed by the CRUD surface outside this service.
type Product struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`

	// External correlation ids.
	ProjectID string `json:"project_id,omitempty"` // analytics drain project
	BillingID string `json:"billing_id,omitempty"` // billing provider product

	Enabled bool `json:"enabled"`

	// Scheduled health-check state.
	LastHealthy         *bool      `json:"last_healthy,omitempty"`
	LastResponseTimeMS  *int64     `json:"last_response_time_ms,omitempty"`
	LastHealthCheckAt   *time.Time `json:"last_health_check_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MetricsSnapshot is one recorded point-in-time set of metrics for a
// product. Snapshots are append-only and ordered by SnapshotAt; they form
// the per-product history time series the classifier reads.
type MetricsSnapshot struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	Visits        int64 `json:"visits"`
	Devices       int64 `json:"devices"`
	BounceRatePct int   `json:"bounce_rate_pct"`

	Healthy        bool   `json:"healthy"`
	ResponseTimeMS *int64 `json:"response_time_ms,omitempty"`
	StatusCode     *int   `json:"status_code,omitempty"`

	RevenueCents *int64 `json:"revenue_cents,omitempty"`
	Subscribers  *int64 `json:"subscribers,omitempty"`
	ErrorCount   *int64 `json:"error_count,omitempty"`

	SnapshotAt time.Time `json:"snapshot_at"`
}
