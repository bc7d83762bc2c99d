package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/groupbuy-backend/pkg/instance"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const (
	defaultLockTTL     = 30 * time.Second
	defaultPollBase    = 20 * time.Millisecond
	defaultPollCap     = 250 * time.Millisecond
	releaseCallTimeout = 2 * time.Second
)

// RedisStore defines the commands RedisGuard needs.
type RedisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
}

type RedisGuardOptions struct {
	AcquireTimeout time.Duration
	TTL            time.Duration
	PollBase       time.Duration
	PollCap        time.Duration
	Logger         *logger.Logger
}

// RedisGuard coordinates critical sections across instances with SETNX and an owner token.
type RedisGuard struct {
	store    RedisStore
	timeout  time.Duration
	ttl      time.Duration
	pollBase time.Duration
	pollCap  time.Duration
	logg     *logger.Logger
}

// NewRedisGuard constructs a distributed guard.
func NewRedisGuard(store RedisStore, opts RedisGuardOptions) (*RedisGuard, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	g := &RedisGuard{
		store:    store,
		timeout:  opts.AcquireTimeout,
		ttl:      opts.TTL,
		pollBase: opts.PollBase,
		pollCap:  opts.PollCap,
		logg:     opts.Logger,
	}
	if g.timeout <= 0 {
		g.timeout = defaultAcquireTimeout
	}
	if g.ttl <= 0 {
		g.ttl = defaultLockTTL
	}
	if g.pollBase <= 0 {
		g.pollBase = defaultPollBase
	}
	if g.pollCap <= 0 {
		g.pollCap = defaultPollCap
	}
	return g, nil
}

var errLockBusy = errors.New("lock held by another owner")

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := g.store.LockKey(key)
	owner := fmt.Sprintf("%s:%s", instance.GetID(), uuid.NewString())

	acquireCtx, cancel := withAcquireTimeout(ctx, g.timeout)
	defer cancel()

	backoff := retry.WithCappedDuration(g.pollCap, retry.NewExponential(g.pollBase))
	err := retry.Do(acquireCtx, backoff, func(ctx context.Context) error {
		ok, err := g.store.SetNX(ctx, redisKey, owner, g.ttl)
		if err != nil {
			return fmt.Errorf("setnx %s: %w", redisKey, err)
		}
		if !ok {
			return retry.RetryableError(errLockBusy)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, errLockBusy) {
			return nil, timeoutError(key, err)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.release(redisKey, owner) })
	}, nil
}

// release deletes the key only when this owner still holds it.
func (g *RedisGuard) release(redisKey, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseCallTimeout)
	defer cancel()

	value, err := g.store.Get(ctx, redisKey)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logError(ctx, redisKey, "read lock owner", err)
		}
		return
	}
	if value != owner {
		return
	}
	if err := g.store.Del(ctx, redisKey); err != nil {
		g.logError(ctx, redisKey, "delete lock", err)
	}
}

func (g *RedisGuard) logError(ctx context.Context, key, msg string, err error) {
	if g.logg == nil {
		return
	}
	ctx = g.logg.WithField(ctx, "lock_key", key)
	g.logg.Error(ctx, msg, err)
}
