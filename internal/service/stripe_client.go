package service

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	pricepkg "github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeClient is the subset of the Stripe API the billing service talks to.
type StripeClient interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	ListPrices(ctx context.Context, params *stripe.PriceListParams) ([]*stripe.Price, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// stripeClient holds its own key and backend instead of the package-level
// stripe.Key, so several clients can coexist in one process.
type stripeClient struct {
	customers       customerpkg.Client
	checkoutSession checkoutsession.Client
	portalSession   billingsession.Client
	prices          pricepkg.Client
	webhookSecret   string
}

func NewStripeClient(secretKey, webhookSecret string) StripeClient {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &stripeClient{
		customers:       customerpkg.Client{B: backend, Key: secretKey},
		checkoutSession: checkoutsession.Client{B: backend, Key: secretKey},
		portalSession:   billingsession.Client{B: backend, Key: secretKey},
		prices:          pricepkg.Client{B: backend, Key: secretKey},
		webhookSecret:   webhookSecret,
	}
}

func (c *stripeClient) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return c.customers.New(params)
}

func (c *stripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return c.checkoutSession.New(params)
}

func (c *stripeClient) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return c.portalSession.New(params)
}

func (c *stripeClient) ListPrices(ctx context.Context, params *stripe.PriceListParams) ([]*stripe.Price, error) {
	params.Context = ctx
	var prices []*stripe.Price
	it := c.prices.List(params)
	for it.Next() {
		prices = append(prices, it.Price())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

// ConstructEvent verifies the Stripe-Signature header. API version mismatches
// are tolerated; only the fields the reconciler reads are decoded.
func (c *stripeClient) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
