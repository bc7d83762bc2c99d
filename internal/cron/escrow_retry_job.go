package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const defaultEscrowRetryLimit = 100

// EscrowRetryJobParams configure the failed capture/void retry job.
type EscrowRetryJobParams struct {
	Logger      *logger.Logger
	Coordinator escrowRetrier
	Limit       int
}

type escrowRetrier interface {
	RetryDue(ctx context.Context, limit int) (escrow.SettleResult, error)
}

// NewEscrowRetryJob builds the job that re-attempts failed escrow settlements
// whose backoff has elapsed.
func NewEscrowRetryJob(params EscrowRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("escrow coordinator required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultEscrowRetryLimit
	}
	return &escrowRetryJob{
		logg:  params.Logger,
		coord: params.Coordinator,
		limit: limit,
	}, nil
}

type escrowRetryJob struct {
	logg  *logger.Logger
	coord escrowRetrier
	limit int
}

func (j *escrowRetryJob) Name() string { return "escrow-retry" }

func (j *escrowRetryJob) Run(ctx context.Context) error {
	result, err := j.coord.RetryDue(ctx, j.limit)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"attempted": result.Attempted,
		"settled":   result.Settled,
		"failed":    result.Failed,
	})
	if err != nil && result.Attempted == 0 {
		return fmt.Errorf("escrow retry: %w", err)
	}
	if err != nil {
		// Failed records were rescheduled or moved to manual review.
		j.logg.Error(logCtx, "escrow retry pass had failures", err)
		return nil
	}
	if result.Attempted > 0 {
		j.logg.Info(logCtx, "escrow retry pass complete")
	}
	return nil
}
