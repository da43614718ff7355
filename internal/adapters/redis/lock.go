package redisad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hotelbot/internal/adapters/observability"
	"hotelbot/internal/domain"
)

// release only deletes the key while it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance redis mutex (SET NX PX + token-checked delete).
type Locker struct {
	c    *redis.Client
	poll time.Duration
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{c: c, poll: 50 * time.Millisecond}
}

func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	t := time.NewTicker(l.poll)
	defer t.Stop()
	for {
		ok, err := l.c.SetNX(ctx, key, token, ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if ok {
			observability.ObserveCache("lock", "acquired")
			return func(ctx context.Context) error {
				return release.Run(ctx, l.c, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			observability.ObserveCache("lock", "busy")
			return nil, fmt.Errorf("%w: %s", domain.ErrLocked, key)
		case <-t.C:
		}
	}
}
