package batches

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// Transition moves batch to target when the lifecycle allows it and stamps the
// matching timestamp. It is the only place status changes are decided; callers
// must hold the batch guard.
func Transition(batch *models.RegionalBatch, target enums.BatchStatus, now time.Time) error {
	if batch == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "batch required")
	}
	current := batch.Status
	reject := func(reason string) error {
		err := pkgerrors.InvalidBatchState(string(current), string(target))
		return err.WithDetails(map[string]any{
			"current":   string(current),
			"attempted": string(target),
			"reason":    reason,
		})
	}

	switch {
	case current == enums.BatchStatusDraft && target == enums.BatchStatusActive:
		if !batch.CutoffDate.After(now) {
			return reject("cutoff date must be in the future")
		}
		if batch.MinimumQuantity < 1 {
			return reject("minimum quantity must be at least 1")
		}
		if !batch.Price.GreaterThan(decimal.Zero) {
			return reject("price must be positive")
		}
		batch.ActivatedAt = stamp(now)

	case current == enums.BatchStatusActive && target == enums.BatchStatusSuccessful:
		if batch.CurrentQuantity < batch.MinimumQuantity {
			return reject("minimum quantity not reached")
		}
		batch.ResolvedAt = stamp(now)

	case current == enums.BatchStatusActive && target == enums.BatchStatusFailed:
		if now.Before(batch.CutoffDate) {
			return reject("cutoff date not reached")
		}
		if batch.CurrentQuantity >= batch.MinimumQuantity {
			return reject("minimum quantity reached")
		}
		batch.ResolvedAt = stamp(now)

	case current == enums.BatchStatusActive && target == enums.BatchStatusCancelled:
		batch.CancelledAt = stamp(now)
		batch.ResolvedAt = stamp(now)

	case current == enums.BatchStatusSuccessful && target == enums.BatchStatusDelivered:
		batch.DeliveredAt = stamp(now)

	default:
		return pkgerrors.InvalidBatchState(string(current), string(target))
	}

	batch.Status = target
	return nil
}

// Resolve reports the outcome an active batch reaches at now. A batch that met its
// minimum resolves as successful even when the cutoff has also passed.
func Resolve(batch *models.RegionalBatch, now time.Time) (enums.BatchStatus, bool) {
	if batch == nil || batch.Status != enums.BatchStatusActive {
		return "", false
	}
	if batch.CurrentQuantity >= batch.MinimumQuantity {
		return enums.BatchStatusSuccessful, true
	}
	if !now.Before(batch.CutoffDate) {
		return enums.BatchStatusFailed, true
	}
	return "", false
}

// EnsureJoinable rejects orders on batches that are not active or whose cutoff passed.
func EnsureJoinable(batch *models.RegionalBatch, now time.Time) error {
	if batch.Status != enums.BatchStatusActive {
		return pkgerrors.BatchNotJoinable(string(batch.Status), "batch is not active")
	}
	if !now.Before(batch.CutoffDate) {
		return pkgerrors.BatchNotJoinable(string(batch.Status), "cutoff date has passed")
	}
	return nil
}

// EnsureEditable rejects changes to price, minimum or cutoff once the batch left draft.
func EnsureEditable(batch *models.RegionalBatch) error {
	if batch.Status == enums.BatchStatusDraft {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidBatchState, "batch terms are locked once the batch leaves draft").
		WithDetails(map[string]any{"current": string(batch.Status), "attempted": "edit"})
}

func stamp(now time.Time) *time.Time {
	t := now.UTC()
	return &t
}
