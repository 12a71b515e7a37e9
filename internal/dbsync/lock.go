package dbsync

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// LockKey guards reconciliation cluster-wide: at most one run at a time.
// The TTL is the crash backstop; a healthy run releases the lock itself.
const LockKey = "db:sync_in_progress"

type Lock struct {
	Client *redis.Client
	TTL    time.Duration
}

// Acquire returns true when this process now holds the sync lock.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	return l.Client.SetNX(ctx, LockKey, "1", l.TTL).Result()
}

func (l *Lock) Release(ctx context.Context) error {
	return l.Client.Del(ctx, LockKey).Err()
}

// Held reports whether some process currently holds the lock.
func (l *Lock) Held(ctx context.Context) (bool, error) {
	_, err := l.Client.Get(ctx, LockKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
