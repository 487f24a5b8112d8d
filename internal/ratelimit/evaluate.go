package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyEvaluateOrg = "rentflow:ratelimit:evaluate:%s"

// EvaluateLimiter throttles on-demand alert passes per owner. A nil limiter
// allows everything.
type EvaluateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewEvaluateLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *EvaluateLimiter {
	limitCfg := cfg.RateLimit
	if !cfg.Redis.Enabled() || limitCfg.EvaluateInterval <= 0 || limitCfg.EvaluateBurst <= 0 {
		log.Info("evaluate rate limit disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return newEvaluateLimiter(NewTokenBucket(client), limitCfg.EvaluateInterval, limitCfg.EvaluateBurst)
}

func newEvaluateLimiter(bucket *TokenBucket, interval time.Duration, burst int) *EvaluateLimiter {
	return &EvaluateLimiter{
		bucket: bucket,
		rate:   1 / interval.Seconds(),
		burst:  burst,
	}
}

func (l *EvaluateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *EvaluateLimiter) Allow(ctx context.Context, orgID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyEvaluateOrg, orgID), l.rate, l.burst)
}
