package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// BatchResolutionJobParams configure the resolution sweep job.
type BatchResolutionJobParams struct {
	Logger  *logger.Logger
	Sweeper resolutionSweeper
	Clock   clock.Clock
}

type resolutionSweeper interface {
	RunResolutionSweep(ctx context.Context, now time.Time) (*pooling.SweepResult, error)
}

// NewBatchResolutionJob builds the job that resolves batches past their cutoff.
func NewBatchResolutionJob(params BatchResolutionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("resolution sweeper required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &batchResolutionJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		now:     clk.Now,
	}, nil
}

type batchResolutionJob struct {
	logg    *logger.Logger
	sweeper resolutionSweeper
	now     func() time.Time
}

func (j *batchResolutionJob) Name() string { return "batch-resolution" }

func (j *batchResolutionJob) Run(ctx context.Context) error {
	result, err := j.sweeper.RunResolutionSweep(ctx, j.now().UTC())
	if result != nil && result.SettleFailures > 0 {
		logCtx := j.logg.WithField(ctx, "settle_failures", result.SettleFailures)
		j.logg.Warn(logCtx, "escrow settlement failures scheduled for retry")
	}
	if err != nil {
		return fmt.Errorf("resolution sweep: %w", err)
	}
	return nil
}
