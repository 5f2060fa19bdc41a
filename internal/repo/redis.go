package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Allow is a fixed-window counter: at most limit hits per key per window.
// Fails open on redis errors so an outage never locks users out.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if r == nil || r.C == nil || limit <= 0 {
		return true
	}
	bucket := fmt.Sprintf("rl:%s:%d", key, time.Now().Unix()/int64(window.Seconds()))
	n, err := r.C.Incr(ctx, bucket).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		r.C.Expire(ctx, bucket, window)
	}
	return n <= int64(limit)
}
