package memory

import (
	// Go Internal Packages
	"context"
	"sync"
	"time"

	// Local Packages
	clock "wallet-ledger/clock"
)

type attempts struct {
	count   int64
	expires time.Time
}

// AttemptCounter counts confirmation attempts per payment session in process
// memory. Entries expire ttl after their first attempt, like the redis keys.
type AttemptCounter struct {
	Clock clock.Clock

	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]attempts
}

func NewAttemptCounter(ttl time.Duration) *AttemptCounter {
	return &AttemptCounter{
		Clock:   clock.RealClock{},
		ttl:     ttl,
		entries: make(map[string]attempts),
	}
}

func (a *AttemptCounter) Record(_ context.Context, sessionID string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.Clock.Now()
	for id, e := range a.entries {
		if !now.Before(e.expires) {
			delete(a.entries, id)
		}
	}

	e, ok := a.entries[sessionID]
	if !ok {
		e.expires = now.Add(a.ttl)
	}
	e.count++
	a.entries[sessionID] = e
	return e.count, nil
}

func (a *AttemptCounter) Reset(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, sessionID)
	return nil
}
