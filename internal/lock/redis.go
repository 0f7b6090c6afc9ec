package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisPrefix   = "teamhub:lock:"
	redisRetry    = 25 * time.Millisecond
	redisTimeout  = 250 * time.Millisecond
	releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
)

var unlockScript = redis.NewScript(releaseScript)

// Redis is a Locker shared by every instance talking to the same redis.
// A key expires after ttl even if its holder never releases it.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

func NewRedis(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	token := uuid.NewString()
	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := r.acquire(ctx, redisPrefix+key, token); err != nil {
			r.release(held, token)
			return nil, err
		}
		held = append(held, redisPrefix+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(held, token) })
	}, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return waitError(ctx)
			}
			return errors.Wrapf(err, "acquire %s", key)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return waitError(ctx)
		case <-time.After(redisRetry):
		}
	}
}

func (r *Redis) release(keys []string, token string) {
	for i := len(keys) - 1; i >= 0; i-- {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		if err := unlockScript.Run(ctx, r.client, []string{keys[i]}, token).Err(); err != nil {
			r.logger.Error("failed to release lock", zap.String("key", keys[i]), zap.Error(err))
		}
		cancel()
	}
}
