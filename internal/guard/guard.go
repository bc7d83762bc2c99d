package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const defaultAcquireTimeout = 5 * time.Second

// Guard hands out exclusive, keyed critical sections. Different keys never block each other.
type Guard interface {
	// Acquire blocks until the key is owned or the acquire timeout elapses. The returned
	// release func is safe to call more than once.
	Acquire(ctx context.Context, key string) (func(), error)
}

// BatchKey names the critical section shared by order placement and resolution of a batch.
func BatchKey(batchID uuid.UUID) string {
	return "batch:" + batchID.String()
}

// EscrowKey names the critical section protecting capture/void of one escrow record.
func EscrowKey(recordID uuid.UUID) string {
	return "escrow:" + recordID.String()
}

// New builds the guard backend selected in config.
func New(cfg config.GuardConfig, store RedisStore, logg *logger.Logger) (Guard, error) {
	if cfg.UsesRedis() {
		if store == nil {
			return nil, errors.New("redis store required for redis guard")
		}
		return NewRedisGuard(store, RedisGuardOptions{
			AcquireTimeout: cfg.AcquireTimeout,
			TTL:            cfg.LockTTL,
			Logger:         logg,
		})
	}
	return NewLocalGuard(cfg.AcquireTimeout), nil
}

func withAcquireTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func timeoutError(key string, err error) error {
	return pkgerrors.ConcurrencyTimeout(fmt.Sprintf("lock %s", key), err)
}
