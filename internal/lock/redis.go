package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only while it still holds our token.
// KEYS[1] = lock key
// ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

const keyPrefix = "docufen:lock:"

// RedisLocker holds locks as SET NX PX keys so several server processes
// can share one database. The TTL bounds how long a crashed holder can block
// a document.
type RedisLocker struct {
	client         redis.UniversalClient
	ttl            time.Duration
	retryInterval  time.Duration
	acquireTimeout time.Duration
	logger         *zap.Logger
}

func NewRedisLocker(client redis.UniversalClient, cfg config.LockConfig, logger *zap.Logger) *RedisLocker {
	l := &RedisLocker{
		client:         client,
		ttl:            cfg.TTL,
		retryInterval:  cfg.RetryInterval,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         logger.With(zap.String("service", "redis_lock")),
	}
	if l.ttl <= 0 {
		l.ttl = 30 * time.Second
	}
	if l.retryInterval <= 0 {
		l.retryInterval = 25 * time.Millisecond
	}
	if l.acquireTimeout <= 0 {
		l.acquireTimeout = 10 * time.Second
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	const op = "lock"
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.acquireTimeout)
	defer cancel()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				l.logger.Error("Failed to acquire lock", zap.String("key", key), zap.Error(err))
			}
			return nil, domain.Unavailable(op, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.Unavailable(op, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be gone
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
