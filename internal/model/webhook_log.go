package model

import (
	"encoding/json"
	"time"
)

const (
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
	WebhookStatusIgnored   = "ignored"
)

// WebhookLog is an append-only record of one inbound Stripe delivery.
type WebhookLog struct {
	ID            string          `db:"id" json:"id"`
	StripeEventID string          `db:"stripe_event_id" json:"stripeEventId"`
	Type          string          `db:"type" json:"type"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        string          `db:"status" json:"status"`
	ErrorMessage  *string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}
