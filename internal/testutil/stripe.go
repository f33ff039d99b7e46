package testutil

import (
	"context"
	"fmt"
	"sync"

	"streampass/internal/model"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeClient records calls and returns canned objects. ConstructEvent uses
// the real stripe-go signature check against WebhookSecret.
type StripeClient struct {
	mu            sync.Mutex
	WebhookSecret string
	Prices        []*stripe.Price
	Err           error

	CustomerCalls  int
	CustomerParams []*stripe.CustomerParams
	CheckoutParams []*stripe.CheckoutSessionParams
	PortalParams   []*stripe.BillingPortalSessionParams
}

func NewStripeClient(webhookSecret string) *StripeClient {
	return &StripeClient{WebhookSecret: webhookSecret}
}

func (c *StripeClient) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.CustomerCalls++
	c.CustomerParams = append(c.CustomerParams, params)
	return &stripe.Customer{ID: fmt.Sprintf("cus_test_%d", c.CustomerCalls)}, nil
}

func (c *StripeClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.CheckoutParams = append(c.CheckoutParams, params)
	id := fmt.Sprintf("cs_test_%d", len(c.CheckoutParams))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (c *StripeClient) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.PortalParams = append(c.PortalParams, params)
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/session/test"}, nil
}

func (c *StripeClient) ListPrices(_ context.Context, _ *stripe.PriceListParams) ([]*stripe.Price, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Prices, nil
}

func (c *StripeClient) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, c.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// Notifier records published subscription changes.
type Notifier struct {
	mu      sync.Mutex
	Changes []model.SubscriptionChange
	Err     error
}

func (n *Notifier) NotifySubscriptionChange(_ context.Context, change model.SubscriptionChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Changes = append(n.Changes, change)
	return n.Err
}

func (n *Notifier) Published() []model.SubscriptionChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.SubscriptionChange(nil), n.Changes...)
}
