package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"venue-vote/internal/retry"
)

// releaseScript deletes the key only while it still carries our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	policy := retry.Policy{Attempts: 4, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
	if err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return c.Ping(ctx).Err()
	}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &Redis{client: c, prefix: "venue-vote:lock:"}, nil
}

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	token := newToken()
	full := r.prefix + key

	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
