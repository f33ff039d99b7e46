// Package testutil holds in-memory stand-ins for the Postgres repositories,
// the Stripe API and the Pub/Sub notifier.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streampass/internal/model"
	"streampass/internal/repository"

	"github.com/google/uuid"
)

// UserRepo mirrors the conditional updates of the Postgres user repository.
type UserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	// Writes counts successful billing updates.
	Writes int
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*UserRepo)(nil)

// Seed inserts u as-is, assigning an id if missing, and returns it.
func (r *UserRepo) Seed(u *model.User) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = model.SubscriptionStatusInactive
	}
	cp := *u
	r.users[u.ID] = &cp
	return u
}

// Get returns a copy of the stored user or nil.
func (r *UserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *UserRepo) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Normalize()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return &repository.ConstraintError{
				Constraint: "users_email_key",
				Detail:     fmt.Sprintf("Key (email)=(%s) already exists.", u.Email),
			}
		}
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{model.RoleUser}
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = model.SubscriptionStatusInactive
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *UserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return r.Get(id), nil
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) SetStripeCustomerID(_ context.Context, userID, customerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return "", nil
	}
	if u.StripeCustomerID == nil {
		id := customerID
		u.StripeCustomerID = &id
		r.Writes++
	}
	return *u.StripeCustomerID, nil
}

// ActivateSubscription stores an empty subscriptionID as nil, the way the
// Postgres repository binds it as NULL.
func (r *UserRepo) ActivateSubscription(_ context.Context, userID, subscriptionID string) (string, error) {
	return r.update(func(u *model.User) bool { return u.ID == userID }, func(u *model.User) {
		if subscriptionID == "" {
			u.StripeSubscriptionID = nil
		} else {
			id := subscriptionID
			u.StripeSubscriptionID = &id
		}
		u.SubscriptionStatus = model.SubscriptionStatusActive
	})
}

func (r *UserRepo) UpdateSubscriptionStatus(_ context.Context, subscriptionID, status string) (string, error) {
	if subscriptionID == "" {
		return "", nil
	}
	return r.update(matchSubscription(subscriptionID), func(u *model.User) {
		u.SubscriptionStatus = status
	})
}

func (r *UserRepo) CancelSubscription(_ context.Context, subscriptionID string) (string, error) {
	if subscriptionID == "" {
		return "", nil
	}
	return r.update(matchSubscription(subscriptionID), func(u *model.User) {
		u.StripeSubscriptionID = nil
		u.SubscriptionStatus = model.SubscriptionStatusCanceled
	})
}

func (r *UserRepo) MarkPastDue(_ context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	return r.update(func(u *model.User) bool {
		return u.StripeCustomerID != nil && *u.StripeCustomerID == customerID
	}, func(u *model.User) {
		u.SubscriptionStatus = model.SubscriptionStatusPastDue
	})
}

func matchSubscription(id string) func(*model.User) bool {
	return func(u *model.User) bool {
		return u.StripeSubscriptionID != nil && *u.StripeSubscriptionID == id
	}
}

func (r *UserRepo) update(match func(*model.User) bool, apply func(*model.User)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			apply(u)
			u.UpdatedAt = time.Now()
			r.Writes++
			return u.ID, nil
		}
	}
	return "", nil
}

// WebhookLogRepo is an append-only in-memory webhook log.
type WebhookLogRepo struct {
	mu   sync.Mutex
	rows []model.WebhookLog
	// CreateErr, when set, is returned by Create.
	CreateErr error
}

func NewWebhookLogRepo() *WebhookLogRepo {
	return &WebhookLogRepo{}
}

var _ repository.WebhookLogRepository = (*WebhookLogRepo)(nil)

func (r *WebhookLogRepo) Create(_ context.Context, entry *model.WebhookLog) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	r.rows = append(r.rows, *entry)
	return nil
}

func (r *WebhookLogRepo) HasProcessed(_ context.Context, stripeEventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StripeEventID == stripeEventID && row.Status == model.WebhookStatusProcessed {
			return true, nil
		}
	}
	return false, nil
}

func (r *WebhookLogRepo) ListByEvent(_ context.Context, stripeEventID string) ([]model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WebhookLog
	for _, row := range r.rows {
		if row.StripeEventID == stripeEventID {
			out = append(out, row)
		}
	}
	return out, nil
}

// Rows returns every appended row in insertion order.
func (r *WebhookLogRepo) Rows() []model.WebhookLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.WebhookLog(nil), r.rows...)
}
