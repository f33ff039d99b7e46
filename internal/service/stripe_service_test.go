package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"streampass/internal/config"
	"streampass/internal/lock"
	"streampass/internal/model"
	"streampass/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

type stripeFixture struct {
	svc      *StripeService
	client   *testutil.StripeClient
	users    *testutil.UserRepo
	logs     *testutil.WebhookLogRepo
	locker   lock.Locker
	notifier *testutil.Notifier
}

func newStripeFixture(t *testing.T) *stripeFixture {
	t.Helper()
	cfg := &config.Config{
		HostAPI:               "https://api.example.com",
		StripePortalReturnURL: "https://api.example.com/stripe/success",
	}
	f := &stripeFixture{
		client:   testutil.NewStripeClient("whsec_test"),
		users:    testutil.NewUserRepo(),
		logs:     testutil.NewWebhookLogRepo(),
		locker:   lock.NewMemoryLocker(),
		notifier: &testutil.Notifier{},
	}
	logger := zerolog.Nop()
	subSvc := NewSubscriptionService(f.users, logger)
	f.svc = NewStripeService(cfg, f.client, f.users, f.logs, subSvc, f.locker, f.notifier, logger)
	return f
}

func strPtr(s string) *string { return &s }

func TestGetOrCreateCustomerIsIdempotent(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com", FullName: "Ann"})

	first, err := f.svc.GetOrCreateCustomer(context.Background(), u)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateCustomer(context.Background(), u)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.client.CustomerCalls)
	require.NotNil(t, f.users.Get(u.ID).StripeCustomerID)
	assert.Equal(t, first, *f.users.Get(u.ID).StripeCustomerID)
	assert.Equal(t, "customer-create-"+u.ID, *f.client.CustomerParams[0].IdempotencyKey)
	assert.Equal(t, u.ID, f.client.CustomerParams[0].Metadata["userId"])
}

func TestGetOrCreateCustomerKeepsStoredIDOnRace(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com"})
	// Another request stored a customer after u was loaded.
	_, err := f.users.SetStripeCustomerID(context.Background(), u.ID, "cus_winner")
	require.NoError(t, err)

	id, err := f.svc.GetOrCreateCustomer(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "cus_winner", id)
	assert.Equal(t, "cus_winner", *u.StripeCustomerID)
}

func TestCreatePaymentLink(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com", StripeCustomerID: strPtr("cus_123")})

	url, err := f.svc.CreatePaymentLink(context.Background(), u, "price_basic")
	require.NoError(t, err)
	assert.Contains(t, url, "https://checkout.stripe.com/")
	assert.Zero(t, f.client.CustomerCalls)

	require.Len(t, f.client.CheckoutParams, 1)
	p := f.client.CheckoutParams[0]
	assert.Equal(t, "cus_123", *p.Customer)
	assert.Equal(t, "subscription", *p.Mode)
	assert.Equal(t, "price_basic", *p.LineItems[0].Price)
	assert.Equal(t, int64(1), *p.LineItems[0].Quantity)
	assert.Equal(t, "https://api.example.com/stripe/success?session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, "https://api.example.com/stripe/cancel", *p.CancelURL)
	assert.Equal(t, u.ID, p.Metadata["userId"])
	assert.Equal(t, u.ID, p.SubscriptionData.Metadata["userId"])
}

func TestCreateCustomerPortalSession(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com"})

	url, err := f.svc.CreateCustomerPortalSession(context.Background(), u)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 1, f.client.CustomerCalls)
	require.Len(t, f.client.PortalParams, 1)
	assert.Equal(t, *u.StripeCustomerID, *f.client.PortalParams[0].Customer)
	assert.Equal(t, "https://api.example.com/stripe/success", *f.client.PortalParams[0].ReturnURL)
}

func TestGetProducts(t *testing.T) {
	f := newStripeFixture(t)
	f.client.Prices = []*stripe.Price{
		{
			ID:         "price_1",
			UnitAmount: 999,
			Currency:   stripe.CurrencyUSD,
			Product:    &stripe.Product{ID: "prod_1", Name: "Basic", Description: "Basic plan"},
			Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
		},
		{ID: "price_2", UnitAmount: 100, Currency: stripe.CurrencyEUR},
	}

	products, err := f.svc.GetProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, model.Product{
		PriceID:     "price_1",
		ProductID:   "prod_1",
		Name:        "Basic",
		Description: "Basic plan",
		UnitAmount:  999,
		Currency:    "usd",
		Interval:    "month",
	}, products[0])
	assert.Equal(t, "price_2", products[1].PriceID)
	assert.Empty(t, products[1].Name)
}

func TestGetProductsError(t *testing.T) {
	f := newStripeFixture(t)
	f.client.Err = errors.New("stripe down")
	_, err := f.svc.GetProducts(context.Background())
	assert.Error(t, err)
}

func TestHandleCheckoutCompletedActivates(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com"})

	payload, header := testutil.SignedEvent("whsec_test", "evt_1", EventCheckoutSessionCompleted, map[string]any{
		"id":           "cs_1",
		"object":       "checkout.session",
		"subscription": "sub_123",
		"metadata":     map[string]string{"userId": u.ID},
	})
	event, err := f.svc.ConstructWebhookEvent(payload, header)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, payload))

	got := f.users.Get(u.ID)
	assert.Equal(t, model.SubscriptionStatusActive, got.SubscriptionStatus)
	require.NotNil(t, got.StripeSubscriptionID)
	assert.Equal(t, "sub_123", *got.StripeSubscriptionID)

	rows := f.logs.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.WebhookStatusProcessed, rows[0].Status)
	assert.JSONEq(t, string(payload), string(rows[0].Payload))

	published := f.notifier.Published()
	require.Len(t, published, 1)
	assert.Equal(t, u.ID, published[0].UserID)
	assert.Equal(t, "sub_123", published[0].StripeSubscriptionID)
}

func TestCheckoutWithoutSubscriptionThenEmptyDeleteTouchesNoUser(t *testing.T) {
	f := newStripeFixture(t)
	first := f.users.Seed(&model.User{Email: "a@b.com"})
	second := f.users.Seed(&model.User{Email: "c@d.com"})

	for i, u := range []*model.User{first, second} {
		event := testutil.Event(fmt.Sprintf("evt_nosub_%d", i), EventCheckoutSessionCompleted, map[string]any{
			"id":       fmt.Sprintf("cs_%d", i),
			"object":   "checkout.session",
			"metadata": map[string]string{"userId": u.ID},
		})
		require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))

		got := f.users.Get(u.ID)
		assert.Nil(t, got.StripeSubscriptionID)
		assert.Equal(t, model.SubscriptionStatusActive, got.SubscriptionStatus)
	}
	writes := f.users.Writes

	for _, typ := range []string{EventCustomerSubscriptionDeleted, EventCustomerSubscriptionUpdated} {
		event := testutil.Event("evt_empty_"+typ, typ, map[string]any{
			"id": "", "object": "subscription", "status": "canceled",
		})
		require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
	}

	assert.Equal(t, writes, f.users.Writes)
	for _, u := range []*model.User{first, second} {
		assert.Equal(t, model.SubscriptionStatusActive, f.users.Get(u.ID).SubscriptionStatus)
	}
	assert.Len(t, f.notifier.Published(), 2)
	for _, row := range f.logs.Rows() {
		assert.Equal(t, model.WebhookStatusProcessed, row.Status, row.StripeEventID)
	}
}

func TestHandleSubscriptionDeletedCancels(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{
		Email:                "a@b.com",
		StripeSubscriptionID: strPtr("sub_123"),
		SubscriptionStatus:   model.SubscriptionStatusActive,
	})

	event := testutil.Event("evt_2", EventCustomerSubscriptionDeleted, map[string]any{
		"id": "sub_123", "object": "subscription", "status": "canceled",
	})
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))

	got := f.users.Get(u.ID)
	assert.Nil(t, got.StripeSubscriptionID)
	assert.Equal(t, model.SubscriptionStatusCanceled, got.SubscriptionStatus)
}

func TestHandleSubscriptionUpdatedPassesStatusThrough(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com", StripeSubscriptionID: strPtr("sub_123")})

	event := testutil.Event("evt_3", EventCustomerSubscriptionUpdated, map[string]any{
		"id": "sub_123", "object": "subscription", "status": "trialing",
	})
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
	assert.Equal(t, "trialing", f.users.Get(u.ID).SubscriptionStatus)
}

func TestHandleInvoicePaymentFailedMarksPastDue(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{
		Email:              "a@b.com",
		StripeCustomerID:   strPtr("cus_123"),
		SubscriptionStatus: model.SubscriptionStatusActive,
	})

	event := testutil.Event("evt_4", EventInvoicePaymentFailed, map[string]any{
		"id": "in_1", "object": "invoice", "customer": "cus_123",
	})
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))

	assert.Equal(t, model.SubscriptionStatusPastDue, f.users.Get(u.ID).SubscriptionStatus)
	rows, err := f.logs.ListByEvent(context.Background(), "evt_4")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, EventInvoicePaymentFailed, rows[0].Type)
	assert.Equal(t, model.WebhookStatusProcessed, rows[0].Status)
}

func TestHandleUnknownReferencesAreNoOps(t *testing.T) {
	events := []stripe.Event{
		testutil.Event("evt_a", EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_1", "object": "checkout.session", "subscription": "sub_x",
			"metadata": map[string]string{"userId": "8c5b0a51-5a1e-4f4e-9a9e-3f6f1b2b9d7e"},
		}),
		testutil.Event("evt_b", EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_2", "object": "checkout.session", "metadata": map[string]string{"userId": "not-a-uuid"},
		}),
		testutil.Event("evt_c", EventCheckoutSessionCompleted, map[string]any{
			"id": "cs_3", "object": "checkout.session",
		}),
		testutil.Event("evt_d", EventCustomerSubscriptionUpdated, map[string]any{
			"id": "sub_unknown", "object": "subscription", "status": "active",
		}),
		testutil.Event("evt_e", EventCustomerSubscriptionDeleted, map[string]any{
			"id": "sub_unknown", "object": "subscription",
		}),
		testutil.Event("evt_f", EventInvoicePaymentFailed, map[string]any{
			"id": "in_1", "object": "invoice", "customer": "cus_unknown",
		}),
	}

	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com", StripeCustomerID: strPtr("cus_123"), StripeSubscriptionID: strPtr("sub_123")})
	before := f.users.Get(u.ID)

	for _, e := range events {
		require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), e, nil), e.ID)
	}

	assert.Equal(t, before, f.users.Get(u.ID))
	assert.Zero(t, f.users.Writes)
	assert.Empty(t, f.notifier.Published())
	for _, row := range f.logs.Rows() {
		assert.Equal(t, model.WebhookStatusProcessed, row.Status, row.StripeEventID)
	}
}

func TestHandleDuplicateDeliveryIsIgnored(t *testing.T) {
	f := newStripeFixture(t)
	u := f.users.Seed(&model.User{Email: "a@b.com", StripeSubscriptionID: strPtr("sub_123")})

	event := testutil.Event("evt_dup", EventCustomerSubscriptionUpdated, map[string]any{
		"id": "sub_123", "object": "subscription", "status": "active",
	})
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))

	assert.Equal(t, 1, f.users.Writes)
	rows := f.logs.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, model.WebhookStatusProcessed, rows[0].Status)
	assert.Equal(t, model.WebhookStatusIgnored, rows[1].Status)
	require.NotNil(t, rows[1].ErrorMessage)
	assert.Equal(t, "duplicate delivery", *rows[1].ErrorMessage)
	assert.Len(t, f.notifier.Published(), 1)
	assert.Equal(t, "active", f.users.Get(u.ID).SubscriptionStatus)
}

func TestHandleUndecodablePayloadLogsFailure(t *testing.T) {
	f := newStripeFixture(t)
	event := stripe.Event{
		ID:   "evt_bad",
		Type: EventCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: []byte(`{"id": 42}`)},
	}

	err := f.svc.HandleWebhookEvent(context.Background(), event, nil)
	require.Error(t, err)

	rows := f.logs.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.WebhookStatusFailed, rows[0].Status)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, err.Error(), *rows[0].ErrorMessage)

	// A failed delivery does not count as processed; the retry runs again.
	processed, err := f.logs.HasProcessed(context.Background(), "evt_bad")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestHandleUnhandledTypeIsIgnored(t *testing.T) {
	f := newStripeFixture(t)
	event := testutil.Event("evt_other", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
	rows := f.logs.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.WebhookStatusIgnored, rows[0].Status)
	assert.Nil(t, rows[0].ErrorMessage)
}

func TestHandleEventInFlight(t *testing.T) {
	f := newStripeFixture(t)
	release, ok, err := f.locker.TryAcquire(context.Background(), "stripe:event:evt_busy", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	event := testutil.Event("evt_busy", "customer.created", map[string]any{"id": "cus_1"})
	err = f.svc.HandleWebhookEvent(context.Background(), event, nil)
	assert.ErrorIs(t, err, ErrEventInFlight)
	assert.Empty(t, f.logs.Rows())
}

func TestHandleConcurrentDeliveriesUpdateOnce(t *testing.T) {
	f := newStripeFixture(t)
	f.users.Seed(&model.User{Email: "a@b.com", StripeSubscriptionID: strPtr("sub_123")})
	event := testutil.Event("evt_race", EventCustomerSubscriptionUpdated, map[string]any{
		"id": "sub_123", "object": "subscription", "status": "past_due",
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.HandleWebhookEvent(context.Background(), event, nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrEventInFlight)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.users.Writes)
}

func TestPublishFailureDoesNotFailWebhook(t *testing.T) {
	f := newStripeFixture(t)
	f.notifier.Err = errors.New("pubsub unavailable")
	f.users.Seed(&model.User{Email: "a@b.com", StripeCustomerID: strPtr("cus_123")})

	event := testutil.Event("evt_pub", EventInvoicePaymentFailed, map[string]any{"id": "in_1", "customer": "cus_123"})
	assert.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
}

func TestLogWriteFailureIsReturned(t *testing.T) {
	f := newStripeFixture(t)
	f.logs.CreateErr = errors.New("db down")

	event := testutil.Event("evt_log", "customer.created", map[string]any{"id": "cus_1"})
	assert.Error(t, f.svc.HandleWebhookEvent(context.Background(), event, nil))
}

func TestConstructWebhookEvent(t *testing.T) {
	f := newStripeFixture(t)
	payload, header := testutil.SignedEvent("whsec_test", "evt_sig", EventInvoicePaymentFailed, map[string]any{"id": "in_1"})

	event, err := f.svc.ConstructWebhookEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_sig", event.ID)

	_, err = f.svc.ConstructWebhookEvent(payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}
