package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis serializes transitions across API replicas. Each key is a SETNX
// with a random token; release deletes the key only if the token still matches.
type Redis struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		client: client,
		script: redis.NewScript(releaseScript),
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// TryLock makes one attempt at key and returns the owner token on success.
func (r *Redis) TryLock(ctx context.Context, key string) (string, bool, error) {
	if r == nil || r.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	if r == nil || r.client == nil || key == "" || token == "" {
		return nil
	}
	return r.script.Run(ctx, r.client, []string{key}, token).Err()
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	tokens := make(map[string]string, len(keys))
	releaseAll := func() {
		// ctx may already be cancelled; release must still reach redis.
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		for key, token := range tokens {
			_ = r.Release(bg, key, token)
		}
	}

	for _, key := range keys {
		token, err := r.wait(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		tokens[key] = token
	}
	return releaseAll, nil
}

func (r *Redis) wait(ctx context.Context, key string) (string, error) {
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		token, ok, err := r.TryLock(ctx, key)
		if err != nil {
			return "", fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
