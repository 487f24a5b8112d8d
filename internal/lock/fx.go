package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New always serializes in-process. With REDIS_ADDR set it also takes a redis
// lock so replicas sharing one database exclude each other.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	local := NewLocal()
	if !cfg.Redis.Enabled() {
		log.Info("lifecycle locks are process-local")
		return local
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("lifecycle locks use redis", zap.String("addr", cfg.Redis.Addr))
	return Chain(local, NewRedis(client, cfg.Redis.LockTTL))
}
