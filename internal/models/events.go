package models

import (
	"errors"
	"time"
)

// ===========================================
// TRAFFIC EVENT
// ===========================================

// Traffic event types delivered by the analytics drain.
const (
	TrafficEventPageview = "pageview"
	TrafficEventCustom   = "event"
)

// TrafficEvent is a single raw analytics event for a project. Events are
// immutable once stored; ordering is by OccurredAt. ReceivedAt records
// ingestion time and is only used for audit and retention.
type TrafficEvent struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	EventType string `json:"event_type"` // "pageview" or "event"
	EventName string `json:"event_name,omitempty"`

	// Session/device identity assigned by the drain. Visits and device
	// counts are deduplicated on these at aggregation time.
	SessionID int64 `json:"session_id"`
	DeviceID  int64 `json:"device_id"`

	Path       string `json:"path"`
	Referrer   string `json:"referrer,omitempty"`
	Country    string `json:"country,omitempty"`
	DeviceType string `json:"device_type,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the correlation fields required for aggregation.
func (e *TrafficEvent) Validate() error {
	if e.ProjectID == "" {
		return errors.New("missing project_id")
	}
	if e.SessionID == 0 {
		return errors.New("missing session_id")
	}
	if e.DeviceID == 0 {
		return errors.New("missing device_id")
	}
	if e.EventType != TrafficEventPageview && e.EventType != TrafficEventCustom {
		return errors.New(`event_type must be "pageview" or "event"`)
	}
	return nil
}

// ===========================================
// BILLING EVENT
// ===========================================

// Billing event types relevant to revenue reconstruction.
const (
	BillingSubscriptionCreated = "subscription_created"
	BillingSubscriptionDeleted = "subscription_deleted"
	BillingPayment             = "payment"
)

// BillingEvent is one event from the billing provider's webhook stream.
// Events are immutable and deduplicated by ExternalEventID: re-ingesting
// the same external event id is a silent no-op.
type BillingEvent struct {
	ID               string `json:"id"`
	ProductBillingID string `json:"product_billing_id"`
	ExternalEventID  string `json:"external_event_id"`

	EventType      string `json:"event_type"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`

	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the correlation fields required for dedup and replay.
func (e *BillingEvent) Validate() error {
	if e.ProductBillingID == "" {
		return errors.New("missing product_billing_id")
	}
	if e.ExternalEventID == "" {
		return errors.New("missing external_event_id")
	}
	return nil
}
