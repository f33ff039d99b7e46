package testutil

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Event builds an unsigned event whose data.object is obj.
func Event(id, eventType string, obj any) stripe.Event {
	raw, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

// SignedEvent returns a webhook body for the event together with a valid
// Stripe-Signature header for secret.
func SignedEvent(secret, id, eventType string, obj any) (payload []byte, header string) {
	body := map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": obj},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}
