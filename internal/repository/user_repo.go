package repository

import (
	"context"
	"errors"
	"fmt"

	"streampass/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository persists accounts and their billing linkage. The Stripe
// update methods run as a single conditional statement and return the id of
// the user they touched, or "" when no row matched.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error)
	ActivateSubscription(ctx context.Context, userID, subscriptionID string) (string, error)
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (string, error)
	MarkPastDue(ctx context.Context, customerID string) (string, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, password, full_name, is_active, roles,
        stripe_customer_id, stripe_subscription_id, subscription_status, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.FullName,
		&u.IsActive,
		&u.Roles,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.SubscriptionStatus,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Normalize()
	if len(u.Roles) == 0 {
		u.Roles = []string{model.RoleUser}
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = model.SubscriptionStatusInactive
	}
	const q = `
        INSERT INTO users (email, password, full_name, is_active, roles, subscription_status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FullName, u.IsActive, u.Roles, u.SubscriptionStatus).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, model.NormalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return u, nil
}

// SetStripeCustomerID stores customerID only if the user has none yet, so two
// concurrent first-time checkouts cannot overwrite each other. It returns the
// customer id the row holds afterwards.
func (r *userRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	const q = `
        UPDATE users
        SET stripe_customer_id = $2, updated_at = NOW()
        WHERE id = $1 AND stripe_customer_id IS NULL
        RETURNING stripe_customer_id
    `
	var stored string
	err := r.pool.QueryRow(ctx, q, userID, customerID).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("set stripe customer for user %s: %w", userID, translateError(err))
	}

	var existing *string
	err = r.pool.QueryRow(ctx, `SELECT stripe_customer_id FROM users WHERE id = $1`, userID).Scan(&existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read stripe customer for user %s: %w", userID, err)
	}
	if existing == nil {
		return "", nil
	}
	return *existing, nil
}

// ActivateSubscription marks the user active. An empty subscriptionID clears
// the stored subscription to NULL.
func (r *userRepo) ActivateSubscription(ctx context.Context, userID, subscriptionID string) (string, error) {
	const q = `
        UPDATE users
        SET stripe_subscription_id = $2, subscription_status = 'active', updated_at = NOW()
        WHERE id = $1
        RETURNING id
    `
	return r.updateReturningID(ctx, q, userID, nullIfEmpty(subscriptionID))
}

func (r *userRepo) UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string) (string, error) {
	if subscriptionID == "" {
		return "", nil
	}
	const q = `
        UPDATE users
        SET subscription_status = $2, updated_at = NOW()
        WHERE stripe_subscription_id = $1
        RETURNING id
    `
	return r.updateReturningID(ctx, q, subscriptionID, status)
}

func (r *userRepo) CancelSubscription(ctx context.Context, subscriptionID string) (string, error) {
	if subscriptionID == "" {
		return "", nil
	}
	const q = `
        UPDATE users
        SET subscription_status = 'canceled', stripe_subscription_id = NULL, updated_at = NOW()
        WHERE stripe_subscription_id = $1
        RETURNING id
    `
	return r.updateReturningID(ctx, q, subscriptionID)
}

func (r *userRepo) MarkPastDue(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	const q = `
        UPDATE users
        SET subscription_status = 'past_due', updated_at = NOW()
        WHERE stripe_customer_id = $1
        RETURNING id
    `
	return r.updateReturningID(ctx, q, customerID)
}

// nullIfEmpty maps "" to a NULL parameter; pgx sends a plain "" as ''.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *userRepo) updateReturningID(ctx context.Context, q string, args ...any) (string, error) {
	var id string
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", translateError(err)
	}
	return id, nil
}
