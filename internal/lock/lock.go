// Package lock provides short-lived exclusive locks keyed by string, used to
// keep two deliveries of the same Stripe event from being reconciled at once.
package lock

import (
	"context"
	"time"
)

// Locker hands out non-blocking locks. A lock that is never released expires
// after ttl.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
