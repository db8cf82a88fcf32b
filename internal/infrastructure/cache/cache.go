// Package cache holds the Redis client and short-lived settlement locks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another worker holds the lock.
var ErrLocked = errors.New("cache: lock held")

// Open parses url and verifies the connection.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out SET NX PX locks. A nil Locker grants every lock, so callers
// run unchanged when Redis is not configured.
type Locker struct {
	Rdb    *redis.Client
	Prefix string
}

// Lock is a held lock; Release is safe to call more than once.
type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

// Acquire takes the lock for name with the given ttl or returns ErrLocked.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	if l == nil || l.Rdb == nil {
		return &Lock{}, nil
	}
	key := l.Prefix + name
	token := uuid.NewString()
	ok, err := l.Rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{rdb: l.Rdb, key: key, token: token}, nil
}

// Release frees the lock if it has not expired and been taken by someone else.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil || lk.rdb == nil {
		return nil
	}
	return releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token).Err()
}
