package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type fakeSweeper struct {
	calls  []time.Time
	result *pooling.SweepResult
	err    error
}

func (f *fakeSweeper) RunResolutionSweep(_ context.Context, now time.Time) (*pooling.SweepResult, error) {
	f.calls = append(f.calls, now)
	return f.result, f.err
}

type fakeRetrier struct {
	limit  int
	result escrow.SettleResult
	err    error
}

func (f *fakeRetrier) RetryDue(_ context.Context, limit int) (escrow.SettleResult, error) {
	f.limit = limit
	return f.result, f.err
}

func TestBatchResolutionJobSweepsAtClockTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	sweeper := &fakeSweeper{result: &pooling.SweepResult{SettleFailures: 2}}
	job, err := NewBatchResolutionJob(BatchResolutionJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
		Clock:   clock.NewManual(now),
	})
	if err != nil {
		t.Fatalf("NewBatchResolutionJob: %v", err)
	}
	if job.Name() != "batch-resolution" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sweeper.calls) != 1 || !sweeper.calls[0].Equal(now) {
		t.Fatalf("expected one sweep at %s, got %v", now, sweeper.calls)
	}
}

func TestBatchResolutionJobReturnsSweepErrors(t *testing.T) {
	sweeper := &fakeSweeper{result: &pooling.SweepResult{}, err: errors.New("batch lock timeout")}
	job, err := NewBatchResolutionJob(BatchResolutionJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewBatchResolutionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to surface")
	}
}

func TestBatchResolutionJobRequiresSweeper(t *testing.T) {
	if _, err := NewBatchResolutionJob(BatchResolutionJobParams{Logger: logger.New(logger.Options{})}); err == nil {
		t.Fatal("expected missing sweeper to fail")
	}
}

func TestEscrowRetryJobUsesDefaultLimit(t *testing.T) {
	retrier := &fakeRetrier{result: escrow.SettleResult{Attempted: 2, Settled: 2}}
	job, err := NewEscrowRetryJob(EscrowRetryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Coordinator: retrier,
	})
	if err != nil {
		t.Fatalf("NewEscrowRetryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if retrier.limit != defaultEscrowRetryLimit {
		t.Fatalf("expected limit %d, got %d", defaultEscrowRetryLimit, retrier.limit)
	}
}

func TestEscrowRetryJobToleratesRecordFailures(t *testing.T) {
	retrier := &fakeRetrier{
		result: escrow.SettleResult{Attempted: 3, Settled: 2, Failed: 1},
		err:    errors.New("capture declined"),
	}
	job, err := NewEscrowRetryJob(EscrowRetryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Coordinator: retrier,
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("NewEscrowRetryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected per-record failures to be logged only, got %v", err)
	}
	if retrier.limit != 10 {
		t.Fatalf("expected limit 10, got %d", retrier.limit)
	}
}

func TestEscrowRetryJobFailsWhenListingFails(t *testing.T) {
	retrier := &fakeRetrier{err: errors.New("db down")}
	job, err := NewEscrowRetryJob(EscrowRetryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Coordinator: retrier,
	})
	if err != nil {
		t.Fatalf("NewEscrowRetryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected listing failure to surface")
	}
}
