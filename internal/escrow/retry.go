package escrow

import (
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
)

// RetryPolicy schedules capture/void retries with capped exponential backoff.
type RetryPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func RetryPolicyFromConfig(cfg config.EscrowConfig) RetryPolicy {
	return RetryPolicy{Base: cfg.RetryBase, Max: cfg.RetryMax, MaxAttempts: cfg.RetryMaxAttempts}
}

// Delay returns how long to wait after the given number of failed attempts.
// ok is false once attempts reached MaxAttempts; the record then needs an operator.
func (p RetryPolicy) Delay(attempts int) (time.Duration, bool) {
	p = p.normalized()
	if attempts >= p.MaxAttempts {
		return 0, false
	}
	backoff := retry.WithCappedDuration(p.Max, retry.NewExponential(p.Base))
	var delay time.Duration
	for i := 0; i < attempts; i++ {
		delay, _ = backoff.Next()
	}
	if delay <= 0 {
		delay = p.Base
	}
	return delay, true
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Base <= 0 {
		p.Base = time.Minute
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 8
	}
	return p
}
