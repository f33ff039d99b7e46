package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streampass/internal/config"
	"streampass/internal/lock"
	"streampass/internal/model"
	"streampass/internal/pubsub"
	"streampass/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const eventLockTTL = 30 * time.Second

// ErrEventInFlight is returned when another delivery of the same event is
// still being processed. Stripe retries the delivery later.
var ErrEventInFlight = errors.New("event is already being processed")

// StripeService manages Stripe integration
type StripeService struct {
	cfg      *config.Config
	client   StripeClient
	userRepo repository.UserRepository
	logRepo  repository.WebhookLogRepository
	subSvc   SubscriptionService
	locker   lock.Locker
	notifier pubsub.SubscriptionNotifier
	logger   zerolog.Logger
}

// NewStripeService returns the billing service with a scoped logger
func NewStripeService(
	cfg *config.Config,
	client StripeClient,
	userRepo repository.UserRepository,
	logRepo repository.WebhookLogRepository,
	subSvc SubscriptionService,
	locker lock.Locker,
	notifier pubsub.SubscriptionNotifier,
	logger zerolog.Logger,
) *StripeService {
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{
		cfg:      cfg,
		client:   client,
		userRepo: userRepo,
		logRepo:  logRepo,
		subSvc:   subSvc,
		locker:   locker,
		notifier: notifier,
		logger:   lg,
	}
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user and records
// its id on the user.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.HasStripeCustomer() {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.FullName),
		Metadata: map[string]string{"userId": user.ID},
	}
	params.SetIdempotencyKey("customer-create-" + user.ID)
	cust, err := s.client.CreateCustomer(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}

	stored, err := s.userRepo.SetStripeCustomerID(ctx, user.ID, cust.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	if stored == "" {
		return "", ErrUserNotFound
	}
	if stored != cust.ID {
		s.logger.Warn().
			Str("user_id", user.ID).
			Str("created", cust.ID).
			Str("kept", stored).
			Msg("Concurrent customer creation, keeping the stored id")
	}
	user.StripeCustomerID = &stored
	return stored, nil
}

// CreatePaymentLink creates a subscription-mode Checkout Session for priceID.
func (s *StripeService) CreatePaymentLink(ctx context.Context, user *model.User, priceID string) (string, error) {
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{"userId": user.ID}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(s.cfg.HostAPI + "/stripe/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cfg.HostAPI + "/stripe/cancel"),
		ClientReferenceID: stripe.String(user.ID),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	sess, err := s.client.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("price_id", priceID).Str("user_id", user.ID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateCustomerPortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreateCustomerPortalSession(ctx context.Context, user *model.User) (string, error) {
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	}
	sess, err := s.client.CreatePortalSession(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// GetProducts lists the active recurring prices together with their products.
func (s *StripeService) GetProducts(ctx context.Context) ([]model.Product, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	params.AddExpand("data.product")
	prices, err := s.client.ListPrices(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list Stripe prices")
		return nil, fmt.Errorf("list prices: %w", err)
	}

	products := make([]model.Product, 0, len(prices))
	for _, p := range prices {
		item := model.Product{
			PriceID:    p.ID,
			UnitAmount: p.UnitAmount,
			Currency:   string(p.Currency),
		}
		if p.Product != nil {
			item.ProductID = p.Product.ID
			item.Name = p.Product.Name
			item.Description = p.Product.Description
		}
		if p.Recurring != nil {
			item.Interval = string(p.Recurring.Interval)
		}
		products = append(products, item)
	}
	return products, nil
}

// ConstructWebhookEvent verifies a webhook payload against its signature.
func (s *StripeService) ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	return s.client.ConstructEvent(payload, signature)
}

// HandleWebhookEvent reconciles a verified event and appends one webhook log
// row for the delivery. payload is the request body the event was verified
// from and is stored on the log row as received.
func (s *StripeService) HandleWebhookEvent(ctx context.Context, event stripe.Event, payload []byte) error {
	lg := s.logger.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()
	lg.Info().Msg("Stripe webhook received")

	release, acquired, err := s.locker.TryAcquire(ctx, "stripe:event:"+event.ID, eventLockTTL)
	switch {
	case err != nil:
		lg.Warn().Err(err).Msg("Event lock unavailable, processing without it")
	case !acquired:
		lg.Warn().Msg("Event already in flight")
		return ErrEventInFlight
	default:
		defer release()
	}

	entry := &model.WebhookLog{
		StripeEventID: event.ID,
		Type:          string(event.Type),
		Payload:       payload,
	}

	processed, err := s.logRepo.HasProcessed(ctx, event.ID)
	if err != nil {
		lg.Error().Err(err).Msg("Failed to check webhook log")
		return fmt.Errorf("check webhook log: %w", err)
	}
	if processed {
		lg.Info().Msg("Duplicate delivery of a processed event")
		msg := "duplicate delivery"
		entry.Status = model.WebhookStatusIgnored
		entry.ErrorMessage = &msg
		return s.logRepo.Create(ctx, entry)
	}

	res, handleErr := s.subSvc.Reconcile(ctx, event)
	switch {
	case handleErr != nil:
		msg := handleErr.Error()
		entry.Status = model.WebhookStatusFailed
		entry.ErrorMessage = &msg
		lg.Error().Err(handleErr).Msg("Failed to process Stripe webhook")
	case res.Handled:
		entry.Status = model.WebhookStatusProcessed
	default:
		entry.Status = model.WebhookStatusIgnored
	}

	logErr := s.logRepo.Create(ctx, entry)
	if logErr != nil {
		lg.Error().Err(logErr).Msg("Failed to write webhook log")
	}

	if handleErr == nil && res.UserID != "" {
		s.notify(ctx, event, res)
	}

	if handleErr != nil {
		return handleErr
	}
	return logErr
}

func (s *StripeService) notify(ctx context.Context, event stripe.Event, res ReconcileResult) {
	occurred := time.Now().UTC()
	if event.Created > 0 {
		occurred = time.Unix(event.Created, 0).UTC()
	}
	change := model.SubscriptionChange{
		UserID:               res.UserID,
		StripeEventID:        event.ID,
		EventType:            string(event.Type),
		SubscriptionStatus:   res.SubscriptionStatus,
		StripeSubscriptionID: res.StripeSubscriptionID,
		OccurredAt:           occurred,
	}
	if err := s.notifier.NotifySubscriptionChange(ctx, change); err != nil {
		s.logger.Warn().Err(err).Str("user_id", res.UserID).Msg("Failed to publish subscription change")
	}
}
