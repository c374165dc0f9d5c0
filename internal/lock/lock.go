// Package lock serializes mutations of a single document.
package lock

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"go.uber.org/zap"
)

// Locker grants exclusive access to a key until the returned unlock is
// called. unlock is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// DocumentKey is the lock key guarding one document aggregate.
func DocumentKey(docID string) string {
	return "doc:" + docID
}

// New builds the backend selected by cfg.
func New(cfg config.LockConfig, logger *zap.Logger) (Locker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLocker(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisLocker(client, cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
}
