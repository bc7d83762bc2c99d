package pooling

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/batches"
	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

const (
	// MaxOrderQuantity caps the units a single order may commit.
	MaxOrderQuantity = 10000
	// maxBatchQuantity matches the integer column backing batch quantities.
	maxBatchQuantity = math.MaxInt32
)

// maxAmount is the largest value a numeric(12,2) money column holds.
var maxAmount = decimal.New(1, 10).Sub(decimal.New(1, -2))

type PlaceOrderInput struct {
	BatchID         uuid.UUID
	CustomerID      uuid.UUID
	Quantity        int
	PaymentSourceID string
}

type PlaceOrderResult struct {
	Order          *models.Order
	Batch          *models.RegionalBatch
	ReachedMinimum bool
}

// PlaceOrder commits a customer to a batch. The batch is re-validated, funds are
// held, the order is appended and the quantity updated under one lock. When the
// order reaches the minimum the batch succeeds and its escrow is captured after the
// lock is released.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if in.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if in.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if in.Quantity > MaxOrderQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-order limit")
	}
	if strings.TrimSpace(in.PaymentSourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	ctx = s.logg.WithBatchID(ctx, in.BatchID.String())
	var (
		result   PlaceOrderResult
		vendorID uuid.UUID
		held     *models.EscrowRecord
	)
	err := s.withBatchLock(ctx, in.BatchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := batches.EnsureJoinable(batch, s.clock.Now()); err != nil {
			return err
		}
		listing, err := s.listings.WithTx(tx).FindByID(ctx, batch.ListingID)
		if err != nil {
			return lookupError(err, "listing")
		}
		vendorID = listing.VendorID

		if batch.CurrentQuantity > maxBatchQuantity-in.Quantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds what the batch can take")
		}
		unitPrice := batch.Price
		total := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		if total.GreaterThan(maxAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total exceeds the supported amount")
		}
		orderID := uuid.New()

		record, err := s.escrow.Hold(ctx, tx, escrow.HoldInput{
			OrderID:         orderID,
			BatchID:         batch.ID,
			Amount:          total,
			Currency:        listing.Currency,
			PaymentSourceID: in.PaymentSourceID,
		})
		if err != nil {
			return err
		}
		held = record

		repo := s.orders.WithTx(tx)
		sequence, err := repo.NextSequence(ctx, batch.ID)
		if err != nil {
			return dependencyError(err, "next ledger sequence")
		}
		order := &models.Order{
			ID:                orderID,
			BatchID:           batch.ID,
			CustomerID:        in.CustomerID,
			Quantity:          in.Quantity,
			UnitPrice:         unitPrice,
			TotalPrice:        total,
			Currency:          listing.Currency,
			GroupStatus:       enums.GroupStatusOpen,
			FulfillmentStatus: enums.FulfillmentStatusPending,
			EscrowStatus:      record.State,
			Sequence:          sequence,
		}
		if err := repo.Create(ctx, order); err != nil {
			return dependencyError(err, "append order")
		}

		batch.CurrentQuantity += in.Quantity
		if batch.CurrentQuantity >= batch.MinimumQuantity {
			if err := batches.Transition(batch, enums.BatchStatusSuccessful, s.clock.Now()); err != nil {
				return err
			}
			if _, err := repo.UpdateGroupStatusForBatch(ctx, batch.ID, enums.GroupStatusSucceeded); err != nil {
				return dependencyError(err, "update order group status")
			}
			order.GroupStatus = enums.GroupStatusSucceeded
			result.ReachedMinimum = true
		}
		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}

		order.Escrow = record
		result.Order = order
		result.Batch = batch
		return nil
	})
	if err != nil {
		if held != nil {
			s.escrow.Abandon(context.WithoutCancel(ctx), held)
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.Order.ID.String()), map[string]any{
		"sequence":         result.Order.Sequence,
		"current_quantity": result.Batch.CurrentQuantity,
		"reached_minimum":  result.ReachedMinimum,
	})
	s.logg.Info(logCtx, "order placed")

	if result.ReachedMinimum {
		s.metrics.IncResolved(string(enums.BatchStatusSuccessful))
		s.settle(context.WithoutCancel(ctx), result.Batch)
		if order, err := s.orders.FindByID(ctx, result.Order.ID); err == nil {
			result.Order = order
		} else {
			s.logg.Error(logCtx, "reload order after settlement", err)
		}
	}

	if s.notifier != nil {
		payload := notifications.Payload{
			BatchID: result.Batch.ID,
			OrderID: &result.Order.ID,
			Data: map[string]any{
				"quantity":    result.Order.Quantity,
				"total_price": result.Order.TotalPrice.StringFixed(2),
				"currency":    string(result.Order.Currency),
			},
		}
		s.notifier.NotifyMany(ctx, []uuid.UUID{in.CustomerID, vendorID}, enums.NotificationOrderPlaced, payload)
		if result.ReachedMinimum {
			s.notifyBatch(ctx, result.Batch, enums.NotificationBatchSucceeded)
		}
	}
	return &result, nil
}

var fulfillmentRank = map[enums.FulfillmentStatus]int{
	enums.FulfillmentStatusPending:   0,
	enums.FulfillmentStatusShipped:   1,
	enums.FulfillmentStatusDelivered: 2,
}

// AdvanceFulfillment moves a succeeded order forward to shipped or delivered.
func (s *Service) AdvanceFulfillment(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.FulfillmentStatus) (*models.Order, error) {
	if target != enums.FulfillmentStatusShipped && target != enums.FulfillmentStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment can only advance to shipped or delivered")
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.withBatchLock(ctx, order.BatchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := s.authorizeBatch(ctx, tx, actor, batch); err != nil {
			return err
		}
		repo := s.orders.WithTx(tx)
		current, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return lookupError(err, "order")
		}
		if current.GroupStatus != enums.GroupStatusSucceeded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only orders of a successful batch can be fulfilled").
				WithDetails(map[string]any{"group_status": string(current.GroupStatus)})
		}
		rank, known := fulfillmentRank[current.FulfillmentStatus]
		if !known || rank >= fulfillmentRank[target] {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment cannot move backwards").
				WithDetails(map[string]any{"current": string(current.FulfillmentStatus), "attempted": string(target)})
		}
		if err := repo.UpdateFulfillmentStatus(ctx, orderID, target); err != nil {
			return dependencyError(err, "update fulfillment")
		}
		current.FulfillmentStatus = target
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
