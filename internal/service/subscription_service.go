package service

import (
	"context"
	"encoding/json"
	"fmt"

	"streampass/internal/model"
	"streampass/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaymentFailed        = "invoice.payment_failed"
)

// ReconcileResult describes what a webhook event did to local state.
type ReconcileResult struct {
	// Handled is false for event types the reconciler does not know.
	Handled bool
	// UserID is set only when a user row was modified.
	UserID               string
	SubscriptionStatus   string
	StripeSubscriptionID string
}

// SubscriptionService applies verified Stripe events to the users table.
type SubscriptionService interface {
	Reconcile(ctx context.Context, event stripe.Event) (ReconcileResult, error)
}

type subscriptionService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(userRepo repository.UserRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		userRepo: userRepo,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// Reconcile dispatches on the event type. References that match no user are
// logged and tolerated so Stripe stops redelivering them.
func (s *subscriptionService) Reconcile(ctx context.Context, event stripe.Event) (ReconcileResult, error) {
	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch string(event.Type) {
	case EventCheckoutSessionCompleted:
		return s.checkoutSessionCompleted(ctx, raw)
	case EventCustomerSubscriptionUpdated:
		return s.subscriptionUpdated(ctx, raw)
	case EventCustomerSubscriptionDeleted:
		return s.subscriptionDeleted(ctx, raw)
	case EventInvoicePaymentFailed:
		return s.invoicePaymentFailed(ctx, raw)
	default:
		s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Unhandled Stripe webhook event")
		return ReconcileResult{}, nil
	}
}

func (s *subscriptionService) checkoutSessionCompleted(ctx context.Context, raw json.RawMessage) (ReconcileResult, error) {
	res := ReconcileResult{Handled: true}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return res, fmt.Errorf("decode checkout session: %w", err)
	}

	userID := cs.Metadata["userId"]
	if userID == "" {
		s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session has no userId metadata")
		return res, nil
	}
	if _, err := uuid.Parse(userID); err != nil {
		s.logger.Warn().Str("session_id", cs.ID).Str("user_id", userID).Msg("Checkout session userId is not a valid id")
		return res, nil
	}

	var subID string
	if cs.Subscription != nil {
		subID = cs.Subscription.ID
	}
	updated, err := s.userRepo.ActivateSubscription(ctx, userID, subID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to activate subscription")
		return res, fmt.Errorf("activate subscription for user %s: %w", userID, err)
	}
	if updated == "" {
		s.logger.Warn().Str("user_id", userID).Str("session_id", cs.ID).Msg("No user found for checkout session")
		return res, nil
	}

	s.logger.Info().Str("user_id", updated).Str("subscription_id", subID).Msg("Subscription activated")
	res.UserID = updated
	res.SubscriptionStatus = model.SubscriptionStatusActive
	res.StripeSubscriptionID = subID
	return res, nil
}

func (s *subscriptionService) subscriptionUpdated(ctx context.Context, raw json.RawMessage) (ReconcileResult, error) {
	res := ReconcileResult{Handled: true}
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return res, fmt.Errorf("decode subscription: %w", err)
	}

	status := string(sub.Status)
	updated, err := s.userRepo.UpdateSubscriptionStatus(ctx, sub.ID, status)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to update subscription status")
		return res, fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if updated == "" {
		s.logger.Warn().Str("subscription_id", sub.ID).Msg("No user found for subscription")
		return res, nil
	}

	s.logger.Info().Str("user_id", updated).Str("subscription_id", sub.ID).Str("status", status).Msg("Subscription status updated")
	res.UserID = updated
	res.SubscriptionStatus = status
	res.StripeSubscriptionID = sub.ID
	return res, nil
}

func (s *subscriptionService) subscriptionDeleted(ctx context.Context, raw json.RawMessage) (ReconcileResult, error) {
	res := ReconcileResult{Handled: true}
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return res, fmt.Errorf("decode subscription: %w", err)
	}

	updated, err := s.userRepo.CancelSubscription(ctx, sub.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to cancel subscription")
		return res, fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}
	if updated == "" {
		s.logger.Warn().Str("subscription_id", sub.ID).Msg("No user found for deleted subscription")
		return res, nil
	}

	s.logger.Info().Str("user_id", updated).Str("subscription_id", sub.ID).Msg("Subscription canceled")
	res.UserID = updated
	res.SubscriptionStatus = model.SubscriptionStatusCanceled
	return res, nil
}

func (s *subscriptionService) invoicePaymentFailed(ctx context.Context, raw json.RawMessage) (ReconcileResult, error) {
	res := ReconcileResult{Handled: true}
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return res, fmt.Errorf("decode invoice: %w", err)
	}

	var customerID string
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn().Str("invoice_id", invoice.ID).Msg("Invoice has no customer")
		return res, nil
	}

	updated, err := s.userRepo.MarkPastDue(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("stripe_customer_id", customerID).Msg("Failed to mark subscription past due")
		return res, fmt.Errorf("mark customer %s past due: %w", customerID, err)
	}
	if updated == "" {
		s.logger.Warn().Str("stripe_customer_id", customerID).Msg("No user found for invoice customer")
		return res, nil
	}

	s.logger.Info().Str("user_id", updated).Str("invoice_id", invoice.ID).Msg("Subscription marked past due")
	res.UserID = updated
	res.SubscriptionStatus = model.SubscriptionStatusPastDue
	return res, nil
}
