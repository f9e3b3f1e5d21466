package caching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuestQuota grants anonymous callers a fixed number of attempts per window,
// keyed by guest key (normally the session id).
type RedisGuestQuota struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func NewRedisGuestQuota(client redis.Cmdable, limit int, window time.Duration) *RedisGuestQuota {
	return &RedisGuestQuota{client: client, limit: limit, window: window}
}

func guestKey(key string) string {
	return fmt.Sprintf("scangate:guest:%s:attempts", key)
}

// Remaining reports how many attempts the guest still has.
func (q *RedisGuestQuota) Remaining(ctx context.Context, key string) (int, error) {
	used, err := q.client.Get(ctx, guestKey(key)).Int()
	if err != nil {
		if err == redis.Nil {
			return q.limit, nil
		}
		return 0, err
	}
	if used >= q.limit {
		return 0, nil
	}
	return q.limit - used, nil
}

// Take spends one attempt. INCR is atomic, so concurrent guests with the same key
// never get more than limit successes.
func (q *RedisGuestQuota) Take(ctx context.Context, key string) (bool, error) {
	k := guestKey(key)
	used, err := q.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if used == 1 {
		if err := q.client.Expire(ctx, k, q.window).Err(); err != nil {
			return false, err
		}
	}
	return used <= int64(q.limit), nil
}
