package model

import "time"

// SubscriptionChange is published whenever a webhook changes a user's billing state.
type SubscriptionChange struct {
	UserID               string    `json:"userId"`
	StripeEventID        string    `json:"stripeEventId"`
	EventType            string    `json:"eventType"`
	SubscriptionStatus   string    `json:"subscriptionStatus"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	OccurredAt           time.Time `json:"occurredAt"`
}

// Product is a purchasable recurring price from the Stripe catalogue.
type Product struct {
	PriceID     string `json:"priceId"`
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitAmount  int64  `json:"unitAmount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}
