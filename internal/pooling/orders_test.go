package pooling

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

func TestPlaceOrderSnapshotsPrice(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "12.50", 10)

	res := h.order(t, batch.ID, 2)
	assert.True(t, res.Order.UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, res.Order.TotalPrice.Equal(decimal.RequireFromString("25.00")))
	require.NotNil(t, res.Order.Escrow)
	assert.True(t, res.Order.Escrow.HeldAmount.Equal(res.Order.TotalPrice))
	assert.Equal(t, escrow.HoldIdempotencyKey(res.Order.ID), res.Order.Escrow.IdempotencyKey)

	// Bypass the price lock; the stored order must be unaffected.
	require.NoError(t, h.client.DB().Model(&models.RegionalBatch{}).
		Where("id = ?", batch.ID).
		Update("price", decimal.RequireFromString("99.00")).Error)

	stored, err := h.svc.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, stored.UnitPrice.Equal(decimal.RequireFromString("12.50")))
}

func TestPlaceOrderHoldFailureLeavesNoState(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "9.00", 3)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "decline:insufficient-funds",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentHoldFailed))

	var orderCount, escrowCount int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, h.client.DB().Model(&models.EscrowRecord{}).Count(&escrowCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, escrowCount)

	current, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Zero(t, current.CurrentQuantity)
	assert.NotContains(t, h.notifier.events(), enums.NotificationOrderPlaced)
}

func TestPlaceOrderHoldTimeoutVoidsAndRollsBack(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "9.00", 3)
	h.gateway.blockHold = true

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:slow",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyTimeout))

	h.gateway.mu.Lock()
	voided := len(h.gateway.voidedKeys)
	h.gateway.mu.Unlock()
	assert.Equal(t, 1, voided)

	h.gateway.mu.Lock()
	h.gateway.blockHold = false
	h.gateway.mu.Unlock()
	res := h.order(t, batch.ID, 1)
	assert.Equal(t, 1, res.Order.Sequence)
	h.assertQuantityMatchesLedger(t, batch.ID)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "9.00", 3)

	cases := map[string]PlaceOrderInput{
		"missing customer": {BatchID: batch.ID, Quantity: 1, PaymentSourceID: "cnon:ok"},
		"zero quantity":    {BatchID: batch.ID, CustomerID: uuid.New(), PaymentSourceID: "cnon:ok"},
		"missing source":   {BatchID: batch.ID, CustomerID: uuid.New(), Quantity: 1},
		"over order limit": {BatchID: batch.ID, CustomerID: uuid.New(), Quantity: MaxOrderQuantity + 1, PaymentSourceID: "cnon:ok"},
		"huge quantity":    {BatchID: batch.ID, CustomerID: uuid.New(), Quantity: math.MaxInt64, PaymentSourceID: "cnon:ok"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(context.Background(), in)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         uuid.New(),
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPlaceOrderOnDraftRejected(t *testing.T) {
	h := newHarness(t)
	batch := h.draftBatch(t, "9.00", 3)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBatchNotJoinable))
}

func TestPlaceOrderAllowsRepeatCustomer(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "2.00", 10)
	customer := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
			BatchID:         batch.ID,
			CustomerID:      customer,
			Quantity:        1,
			PaymentSourceID: "cnon:ok",
		})
		require.NoError(t, err)
	}
	h.assertQuantityMatchesLedger(t, batch.ID)
}

func TestPlaceOrderNotifiesCustomerAndVendor(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "2.00", 10)
	res := h.order(t, batch.ID, 1)

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	require.Len(t, h.notifier.sent, 1)
	sent := h.notifier.sent[0]
	assert.Equal(t, enums.NotificationOrderPlaced, sent.event)
	assert.ElementsMatch(t, []uuid.UUID{res.Order.CustomerID, h.vendorID}, sent.recipients)
	require.NotNil(t, sent.payload.OrderID)
	assert.Equal(t, res.Order.ID, *sent.payload.OrderID)
}

func TestAdvanceFulfillment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	open := h.activeBatch(t, "2.00", 10)
	pending := h.order(t, open.ID, 1)
	_, err := h.svc.AdvanceFulfillment(ctx, h.vendor(), pending.Order.ID, enums.FulfillmentStatusShipped)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	batch := h.activeBatch(t, "2.00", 1)
	res := h.order(t, batch.ID, 1)

	shipped, err := h.svc.AdvanceFulfillment(ctx, h.vendor(), res.Order.ID, enums.FulfillmentStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusShipped, shipped.FulfillmentStatus)

	_, err = h.svc.AdvanceFulfillment(ctx, h.vendor(), res.Order.ID, enums.FulfillmentStatusShipped)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.AdvanceFulfillment(ctx, h.vendor(), res.Order.ID, enums.FulfillmentStatusRefunded)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleVendor}
	_, err = h.svc.AdvanceFulfillment(ctx, stranger, res.Order.ID, enums.FulfillmentStatusDelivered)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	delivered, err := h.svc.AdvanceFulfillment(ctx, Actor{Role: enums.UserRoleHelper}, res.Order.ID, enums.FulfillmentStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusDelivered, delivered.FulfillmentStatus)
}

func TestPlaceOrderRejectsAfterCutoffEvenWithRoomLeft(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "2.00", 10)
	h.order(t, batch.ID, 3)
	h.clock.Advance(time.Hour + time.Second)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        1,
		PaymentSourceID: "cnon:ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBatchNotJoinable))
	h.assertQuantityMatchesLedger(t, batch.ID)
}

func TestPlaceOrderRejectsBatchQuantityOverflow(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "9.00", 5)
	h.order(t, batch.ID, 1)

	// Push the counters next to the column limit without placing that many orders.
	require.NoError(t, h.client.DB().Model(&models.RegionalBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]any{
			"current_quantity": maxBatchQuantity - 5,
			"minimum_quantity": maxBatchQuantity,
		}).Error)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        10,
		PaymentSourceID: "cnon:ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	h.gateway.mu.Lock()
	authorized := h.gateway.authorized
	h.gateway.mu.Unlock()
	assert.Equal(t, 1, authorized)

	current, err := h.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, maxBatchQuantity-5, current.CurrentQuantity)
	assert.Equal(t, enums.BatchStatusActive, current.Status)
}

func TestPlaceOrderRejectsTotalBeyondMoneyColumn(t *testing.T) {
	h := newHarness(t)
	batch := h.activeBatch(t, "9999999999.99", 5)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		BatchID:         batch.ID,
		CustomerID:      uuid.New(),
		Quantity:        2,
		PaymentSourceID: "cnon:ok",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var escrowCount int64
	require.NoError(t, h.client.DB().Model(&models.EscrowRecord{}).Count(&escrowCount).Error)
	assert.Zero(t, escrowCount)
}
