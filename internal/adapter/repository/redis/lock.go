package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iho/kasa/internal/domain"
)

// releaseScript deletes the lock only while it still holds our token, so a
// lock that expired and was taken by another node is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PeriodLock implements usecase.PeriodLocker with SET NX leases, letting
// several server replicas share one period at a time.
type PeriodLock struct {
	client *redis.Client
	prefix string
}

// NewPeriodLock creates a new PeriodLock.
func NewPeriodLock(client *redis.Client) *PeriodLock {
	return &PeriodLock{
		client: client,
		prefix: "kasa:lock:period:",
	}
}

// Acquire takes the lease on name for ttl.
func (l *PeriodLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire period lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrPeriodLocked
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release period lock: %w", err)
		}
		return nil
	}, nil
}
