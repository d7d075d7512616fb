package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"pockettrade.com/internal/config"
	"pockettrade.com/internal/domain"
)

// RedsyncLocker 基于 redsync 的分布式锁，多实例部署时保证同一 Pocket 只有一个执行周期
type RedsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

var _ domain.Locker = (*RedsyncLocker)(nil)

func NewRedsyncLocker(rdb redis.UniversalClient, cfg config.LockConfig) *RedsyncLocker {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	tries := cfg.Tries
	if tries <= 0 {
		tries = 3
	}
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		expiry: expiry,
		tries:  tries,
	}
}

func (l *RedsyncLocker) Obtain(ctx context.Context, key string) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(l.tries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		return nil
	}, nil
}
