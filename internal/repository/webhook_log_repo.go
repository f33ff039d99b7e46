package repository

import (
	"context"
	"fmt"

	"streampass/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookLogRepository appends rows to stripe_webhook_logs. Rows are never
// updated; a redelivered event gets a new row.
type WebhookLogRepository interface {
	Create(ctx context.Context, entry *model.WebhookLog) error
	HasProcessed(ctx context.Context, stripeEventID string) (bool, error)
	ListByEvent(ctx context.Context, stripeEventID string) ([]model.WebhookLog, error)
}

type webhookLogRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookLogRepo(pool *pgxpool.Pool) WebhookLogRepository {
	return &webhookLogRepo{pool: pool}
}

func (r *webhookLogRepo) Create(ctx context.Context, entry *model.WebhookLog) error {
	payload := entry.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	const q = `
        INSERT INTO stripe_webhook_logs (stripe_event_id, type, payload, status, error_message)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(ctx, q, entry.StripeEventID, entry.Type, payload, entry.Status, entry.ErrorMessage).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook log for event %s: %w", entry.StripeEventID, err)
	}
	return nil
}

func (r *webhookLogRepo) HasProcessed(ctx context.Context, stripeEventID string) (bool, error) {
	const q = `
        SELECT EXISTS (
            SELECT 1 FROM stripe_webhook_logs
            WHERE stripe_event_id = $1 AND status = 'processed'
        )
    `
	var exists bool
	if err := r.pool.QueryRow(ctx, q, stripeEventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check webhook log for event %s: %w", stripeEventID, err)
	}
	return exists, nil
}

func (r *webhookLogRepo) ListByEvent(ctx context.Context, stripeEventID string) ([]model.WebhookLog, error) {
	const q = `
        SELECT id, stripe_event_id, type, payload, status, error_message, created_at
        FROM stripe_webhook_logs
        WHERE stripe_event_id = $1
        ORDER BY created_at
    `
	rows, err := r.pool.Query(ctx, q, stripeEventID)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs for event %s: %w", stripeEventID, err)
	}
	defer rows.Close()

	var logs []model.WebhookLog
	for rows.Next() {
		var l model.WebhookLog
		if err := rows.Scan(&l.ID, &l.StripeEventID, &l.Type, &l.Payload, &l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
