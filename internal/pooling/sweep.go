package pooling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/batches"
	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

type SweepResult struct {
	ResolvedSuccessful []uuid.UUID
	ResolvedFailed     []uuid.UUID
	Settled            int
	SettleFailures     int
}

// RunResolutionSweep resolves every active batch whose cutoff has passed and
// settles the escrow of resolved batches that still hold funds. Each batch is
// processed on its own; the returned error aggregates resolution failures.
// Settlement failures are left to the escrow retry schedule and only counted.
func (s *Service) RunResolutionSweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	due, err := s.batches.ListDueActive(ctx, now, s.sweepLimit)
	if err != nil {
		s.metrics.IncError()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due batches")
	}

	result := &SweepResult{}
	var errs error
	resolved := make([]*models.RegionalBatch, 0, len(due))
	for _, candidate := range due {
		batch, err := s.resolveBatch(ctx, candidate.ID, now)
		if err != nil {
			s.metrics.IncError()
			s.logg.Error(s.logg.WithBatchID(ctx, candidate.ID.String()), "batch resolution failed", err)
			errs = multierr.Append(errs, fmt.Errorf("resolve batch %s: %w", candidate.ID, err))
			continue
		}
		if batch == nil {
			continue
		}
		resolved = append(resolved, batch)
		s.metrics.IncResolved(string(batch.Status))
		if batch.Status == enums.BatchStatusSuccessful {
			result.ResolvedSuccessful = append(result.ResolvedSuccessful, batch.ID)
		} else {
			result.ResolvedFailed = append(result.ResolvedFailed, batch.ID)
		}
	}

	settled := make(map[uuid.UUID]struct{}, len(resolved))
	for _, batch := range resolved {
		settled[batch.ID] = struct{}{}
		result.add(s.settle(ctx, batch))
	}

	pending, err := s.batches.ListResolvedWithHeldEscrow(ctx, s.sweepLimit)
	if err != nil {
		s.metrics.IncError()
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches with held escrow"))
	}
	for i := range pending {
		if _, done := settled[pending[i].ID]; done {
			continue
		}
		result.add(s.settle(ctx, &pending[i]))
	}

	for _, batch := range resolved {
		event := enums.NotificationBatchFailed
		if batch.Status == enums.BatchStatusSuccessful {
			event = enums.NotificationBatchSucceeded
		}
		s.notifyBatch(ctx, batch, event)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"due":             len(due),
		"successful":      len(result.ResolvedSuccessful),
		"failed":          len(result.ResolvedFailed),
		"settled":         result.Settled,
		"settle_failures": result.SettleFailures,
	}), "resolution sweep complete")
	return result, errs
}

// resolveBatch re-checks a due batch under its lock. It returns nil when another
// caller resolved the batch first.
func (s *Service) resolveBatch(ctx context.Context, batchID uuid.UUID, now time.Time) (*models.RegionalBatch, error) {
	var resolved *models.RegionalBatch
	err := s.withBatchLock(ctx, batchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		target, ok := batches.Resolve(batch, now)
		if !ok {
			return nil
		}
		if err := batches.Transition(batch, target, now); err != nil {
			return err
		}
		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}
		if target == enums.BatchStatusSuccessful {
			if _, err := s.orders.WithTx(tx).UpdateGroupStatusForBatch(ctx, batch.ID, enums.GroupStatusSucceeded); err != nil {
				return dependencyError(err, "update order group status")
			}
		} else if err := s.closeOrders(ctx, tx, batch); err != nil {
			return err
		}
		resolved = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *SweepResult) add(res escrow.SettleResult) {
	r.Settled += res.Settled
	r.SettleFailures += res.Failed
}
