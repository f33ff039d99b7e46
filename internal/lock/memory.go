package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a Locker for single-process deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]uint64
	exp   map[string]time.Time
	token uint64
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]uint64),
		exp:  make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		if exp := l.exp[key]; exp.IsZero() || l.now().Before(exp) {
			return nil, false, nil
		}
	}

	l.token++
	token := l.token
	l.held[key] = token
	if ttl > 0 {
		l.exp[key] = l.now().Add(ttl)
	} else {
		delete(l.exp, key)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// A lock that expired and was taken by someone else stays theirs.
			if l.held[key] == token {
				delete(l.held, key)
				delete(l.exp, key)
			}
		})
	}
	return release, true, nil
}
