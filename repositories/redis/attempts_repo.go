package redis

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// External Packages
	"github.com/redis/go-redis/v9"
)

// AttemptCounter counts confirmation attempts per payment session. Keys expire
// with the session so abandoned counters do not pile up.
type AttemptCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptCounter(client *redis.Client, ttl time.Duration) *AttemptCounter {
	return &AttemptCounter{client: client, ttl: ttl}
}

func attemptsKey(sessionID string) string {
	return fmt.Sprintf("confirm:attempts:%s", sessionID)
}

func (a *AttemptCounter) Record(ctx context.Context, sessionID string) (int64, error) {
	key := attemptsKey(sessionID)
	pipe := a.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, a.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (a *AttemptCounter) Reset(ctx context.Context, sessionID string) error {
	return a.client.Del(ctx, attemptsKey(sessionID)).Err()
}
