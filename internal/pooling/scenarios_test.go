package pooling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

func TestScenarioMinimumReachedReleasesAllEscrow(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "10.00", 5)

	for i := 0; i < 4; i++ {
		res := h.order(t, batch.ID, 1)
		assert.False(t, res.ReachedMinimum)
		assert.Equal(t, i+1, res.Order.Sequence)
	}
	current, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, current.CurrentQuantity)
	assert.Equal(t, enums.BatchStatusActive, current.Status)
	assert.Equal(t, repeat(enums.EscrowStateHeld, 4), h.escrowStates(t, batch.ID))

	fifth := h.order(t, batch.ID, 1)
	assert.True(t, fifth.ReachedMinimum)
	assert.Equal(t, 5, fifth.Batch.CurrentQuantity)
	assert.Equal(t, enums.BatchStatusSuccessful, fifth.Batch.Status)
	assert.Equal(t, enums.EscrowStateReleased, fifth.Order.EscrowStatus)

	assert.Equal(t, repeat(enums.EscrowStateReleased, 5), h.escrowStates(t, batch.ID))
	captures, voids := h.gateway.counts()
	assert.Equal(t, 5, captures)
	assert.Zero(t, voids)

	rows, err := h.svc.GetOrdersByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, enums.GroupStatusSucceeded, row.GroupStatus)
	}
	h.assertQuantityMatchesLedger(t, batch.ID)
	assert.Contains(t, h.notifier.events(), enums.NotificationBatchSucceeded)
}

func TestScenarioCutoffPassedSweepRefunds(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "8.00", 10)
	for i := 0; i < 3; i++ {
		h.order(t, batch.ID, 1)
	}

	now := h.clock.Advance(2 * time.Hour)
	result, err := h.svc.RunResolutionSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{batch.ID}, result.ResolvedFailed)
	assert.Empty(t, result.ResolvedSuccessful)
	assert.Equal(t, 3, result.Settled)
	assert.Zero(t, result.SettleFailures)

	resolved, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BatchStatusFailed, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	assert.Equal(t, repeat(enums.EscrowStateRefunded, 3), h.escrowStates(t, batch.ID))
	rows, err := h.svc.GetOrdersByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, enums.GroupStatusFailed, row.GroupStatus)
		assert.Equal(t, enums.FulfillmentStatusRefunded, row.FulfillmentStatus)
	}
	_, voids := h.gateway.counts()
	assert.Equal(t, 3, voids)
	assert.Contains(t, h.notifier.events(), enums.NotificationBatchFailed)
}

func TestScenarioCancelRefundsAndClosesBatch(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "15.00", 10)
	h.order(t, batch.ID, 1)
	h.order(t, batch.ID, 2)

	cancelled, err := h.svc.CancelBatch(context.Background(), h.vendor(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BatchStatusCancelled, cancelled.Status)
	assert.Equal(t, repeat(enums.EscrowStateRefunded, 2), h.escrowStates(t, batch.ID))

	_, err = h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:card-nonce-ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBatchNotJoinable))
	assert.Contains(t, h.notifier.events(), enums.NotificationBatchCancelled)
}

func TestScenarioOrderAfterCutoffRejectedBeforeSweep(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "5.00", 3)
	h.clock.Advance(time.Hour)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:card-nonce-ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBatchNotJoinable))
	assert.Zero(t, h.gateway.authorized)

	current, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BatchStatusActive, current.Status)
	assert.Zero(t, current.CurrentQuantity)
}

func TestScenarioTransientCaptureFailureRetried(t *testing.T) {
	h := newHarness(t)
	h.gateway.captureErrs = []error{errors.New("gateway unavailable")}
	batch := h.activeBatch(t, "20.00", 1)

	res := h.order(t, batch.ID, 1)
	require.True(t, res.ReachedMinimum)
	assert.Equal(t, enums.EscrowStateReleaseFailed, res.Order.EscrowStatus)

	h.clock.Advance(2 * time.Minute)
	retried, err := h.coord.RetryDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Settled)

	assert.Equal(t, []enums.EscrowState{enums.EscrowStateReleased}, h.escrowStates(t, batch.ID))
	captures, _ := h.gateway.counts()
	assert.Equal(t, 2, captures)

	// A further sweep or retry must not capture again.
	_, err = h.svc.RunResolutionSweep(context.Background(), h.clock.Advance(time.Hour))
	require.NoError(t, err)
	_, err = h.coord.RetryDue(context.Background(), 10)
	require.NoError(t, err)
	captures, _ = h.gateway.counts()
	assert.Equal(t, 2, captures)
}

func TestConcurrentJoinsReachMinimumExactlyOnce(t *testing.T) {
	h := newHarness(t)
	const (
		minimum = 5
		callers = 12
	)
	batch := h.activeBatch(t, "3.00", minimum)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		placed    int
		reached   int
		rejected  int
		unexpects []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
				BatchID:         batch.ID,
				CustomerID:      uuid.New(),
				Quantity:        1,
				PaymentSourceID: "cnon:card-nonce-ok",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
				if res.ReachedMinimum {
					reached++
				}
			case pkgerrors.IsCode(err, pkgerrors.CodeBatchNotJoinable):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpects)
	assert.Equal(t, 1, reached)
	assert.Equal(t, minimum, placed)
	assert.Equal(t, callers-minimum, rejected)

	final, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BatchStatusSuccessful, final.Status)
	assert.Equal(t, minimum, final.CurrentQuantity)
	h.assertQuantityMatchesLedger(t, batch.ID)

	rows, err := h.svc.GetOrdersByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, rows, minimum)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Sequence)
	}
}

func TestResolutionIsOneShot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	succeeded := h.activeBatch(t, "4.00", 1)
	h.order(t, succeeded.ID, 1)
	_, err := h.svc.CancelBatch(ctx, h.vendor(), succeeded.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidBatchState))

	failed := h.activeBatch(t, "4.00", 3)
	now := h.clock.Advance(2 * time.Hour)
	_, err = h.svc.RunResolutionSweep(ctx, now)
	require.NoError(t, err)

	_, err = h.svc.CancelBatch(ctx, h.vendor(), failed.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidBatchState))

	again, err := h.svc.RunResolutionSweep(ctx, h.clock.Advance(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again.ResolvedSuccessful)
	assert.Empty(t, again.ResolvedFailed)

	for id, want := range map[uuid.UUID]enums.BatchStatus{
		succeeded.ID: enums.BatchStatusSuccessful,
		failed.ID:    enums.BatchStatusFailed,
	} {
		batch, err := h.svc.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, batch.Status)
	}
}

func TestSweepSettlesResolvedBatchesStillHoldingFunds(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "6.00", 10)
	h.order(t, batch.ID, 1)
	h.order(t, batch.ID, 1)

	// Simulate a cancellation whose refunds never ran.
	require.NoError(t, h.client.DB().Model(&models.RegionalBatch{}).
		Where("id = ?", batch.ID).
		Update("status", enums.BatchStatusCancelled).Error)

	result, err := h.svc.RunResolutionSweep(context.Background(), h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, result.ResolvedFailed)
	assert.Equal(t, 2, result.Settled)
	assert.Equal(t, repeat(enums.EscrowStateRefunded, 2), h.escrowStates(t, batch.ID))
}

func TestSweepWithNothingDue(t *testing.T) {
	h := newHarness(t)
	h.activeBatch(t, "6.00", 10)

	result, err := h.svc.RunResolutionSweep(context.Background(), h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, result.ResolvedSuccessful)
	assert.Empty(t, result.ResolvedFailed)
	assert.Zero(t, result.Settled)
}
