package model

import (
	"strings"
	"time"
)

// RoleUser is granted to every registered account.
const RoleUser = "user"

// Subscription status labels written by the reconciler. The column is open
// ended: customer.subscription.updated stores whatever status Stripe reports.
const (
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// User represents an account row in the users table.
type User struct {
	ID                   string    `db:"id" json:"id"`
	Email                string    `db:"email" json:"email"`
	Password             string    `db:"password" json:"-"`
	FullName             string    `db:"full_name" json:"fullName"`
	IsActive             bool      `db:"is_active" json:"isActive"`
	Roles                []string  `db:"roles" json:"roles"`
	StripeCustomerID     *string   `db:"stripe_customer_id" json:"stripeCustomerId"`
	StripeSubscriptionID *string   `db:"stripe_subscription_id" json:"stripeSubscriptionId"`
	SubscriptionStatus   string    `db:"subscription_status" json:"subscriptionStatus"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize must run before a user row is inserted or updated.
func (u *User) Normalize() {
	u.Email = NormalizeEmail(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)
}

func (u *User) HasStripeCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}
