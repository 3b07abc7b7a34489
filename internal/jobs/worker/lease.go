package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// CycleLock keeps overlapping processes from running the same cycle at once.
type CycleLock interface {
	// Acquire returns ok=false when another holder owns the lease.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type noopLock struct{}

func NoopLock() CycleLock { return noopLock{} }

func (noopLock) Acquire(ctx context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLock struct {
	rdb goredis.UniversalClient
	key string
	ttl time.Duration
}

// NewRedisLock leases key with SET NX PX. The lease is released by token so a holder
// never deletes a lease that expired and was taken by someone else.
func NewRedisLock(rdb goredis.UniversalClient, key string, ttl time.Duration) CycleLock {
	if key == "" {
		key = "dialogforge:cycle_lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisLock{rdb: rdb, key: key, ttl: ttl}
}

func (l *redisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire cycle lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}
	return release, true, nil
}
