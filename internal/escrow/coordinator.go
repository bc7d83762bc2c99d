package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/guard"
	"github.com/angelmondragon/groupbuy-backend/internal/orders"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const (
	defaultHoldTimeout = 10 * time.Second
	defaultSettleLimit = 100
	abandonTimeout     = 10 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ManualReviewHook is invoked once a record exhausts its retries.
type ManualReviewHook func(ctx context.Context, record models.EscrowRecord)

type CoordinatorParams struct {
	DB             txRunner
	Repository     *Repository
	Orders         orders.Repository
	Gateway        Gateway
	Guard          guard.Guard
	Policy         RetryPolicy
	HoldTimeout    time.Duration
	SettleLimit    int
	Metrics        *metrics.EscrowMetrics
	Clock          clock.Clock
	Logger         *logger.Logger
	OnManualReview ManualReviewHook
}

// Coordinator owns escrow custody: it authorizes funds for new orders and later
// captures or voids them. Records in released or refunded are never touched again.
type Coordinator struct {
	db             txRunner
	repo           *Repository
	orders         orders.Repository
	gateway        Gateway
	guard          guard.Guard
	policy         RetryPolicy
	holdTimeout    time.Duration
	settleLimit    int
	metrics        *metrics.EscrowMetrics
	clock          clock.Clock
	logg           *logger.Logger
	onManualReview ManualReviewHook
}

func NewCoordinator(p CoordinatorParams) (*Coordinator, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if p.Repository == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Guard == nil {
		return nil, fmt.Errorf("guard required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	c := &Coordinator{
		db:             p.DB,
		repo:           p.Repository,
		orders:         p.Orders,
		gateway:        p.Gateway,
		guard:          p.Guard,
		policy:         p.Policy.normalized(),
		holdTimeout:    p.HoldTimeout,
		settleLimit:    p.SettleLimit,
		metrics:        p.Metrics,
		clock:          p.Clock,
		logg:           p.Logger,
		onManualReview: p.OnManualReview,
	}
	if c.holdTimeout <= 0 {
		c.holdTimeout = defaultHoldTimeout
	}
	if c.settleLimit <= 0 {
		c.settleLimit = defaultSettleLimit
	}
	if c.clock == nil {
		c.clock = clock.NewSystem()
	}
	return c, nil
}

// HoldInput describes the funds to authorize for an order that is about to be appended.
type HoldInput struct {
	OrderID         uuid.UUID
	BatchID         uuid.UUID
	Amount          decimal.Decimal
	Currency        enums.Currency
	PaymentSourceID string
}

// HoldIdempotencyKey is the gateway key for an order's authorization. It lets an
// abandoned authorization be voided without knowing its reference.
func HoldIdempotencyKey(orderID uuid.UUID) string {
	return "hold-" + orderID.String()
}

type authorizeResult struct {
	reference string
	err       error
}

// Hold authorizes in.Amount and records it inside tx. On any error nothing is
// persisted: a declined or failed call returns PAYMENT_HOLD_FAILED, and a call that
// outlives the hold timeout returns CONCURRENCY_TIMEOUT after a void by idempotency key.
func (c *Coordinator) Hold(ctx context.Context, tx *gorm.DB, in HoldInput) (*models.EscrowRecord, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if in.OrderID == uuid.Nil || in.BatchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and batch ids are required")
	}
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold amount must be positive")
	}
	key := HoldIdempotencyKey(in.OrderID)
	ctx = c.logg.WithOrderID(ctx, in.OrderID.String())
	ctx = c.logg.WithBatchID(ctx, in.BatchID.String())

	req := AuthorizeRequest{
		IdempotencyKey: key,
		AmountCents:    ToCents(in.Amount),
		Currency:       in.Currency,
		SourceID:       in.PaymentSourceID,
		ReferenceID:    in.OrderID.String(),
		Note:           "group buy batch " + in.BatchID.String(),
	}

	holdCtx, cancel := context.WithTimeout(ctx, c.holdTimeout)
	defer cancel()

	done := make(chan authorizeResult, 1)
	go func() {
		ref, err := c.gateway.Authorize(holdCtx, req)
		done <- authorizeResult{reference: ref, err: err}
	}()

	var res authorizeResult
	select {
	case res = <-done:
	case <-holdCtx.Done():
		res = authorizeResult{err: holdCtx.Err()}
		go c.voidLateAuthorization(ctx, done)
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || holdCtx.Err() != nil {
			c.metrics.Observe(metrics.EscrowOpHold, metrics.OutcomeTimeout)
			c.logg.Warn(ctx, "payment hold timed out; voiding by idempotency key")
			c.voidByKey(ctx, key)
			return nil, pkgerrors.ConcurrencyTimeout("payment hold", res.err)
		}
		c.metrics.Observe(metrics.EscrowOpHold, metrics.OutcomeFailure)
		c.logg.Warn(c.logg.WithField(ctx, "error", res.err.Error()), "payment hold failed")
		return nil, pkgerrors.PaymentHoldFailed(res.err)
	}

	record := &models.EscrowRecord{
		OrderID:            in.OrderID,
		BatchID:            in.BatchID,
		PaymentReferenceID: res.reference,
		IdempotencyKey:     key,
		HeldAmount:         in.Amount,
		Currency:           in.Currency,
		State:              enums.EscrowStateHeld,
	}
	if err := c.repo.Create(ctx, tx, record); err != nil {
		c.Abandon(ctx, record)
		return nil, fmt.Errorf("persist escrow record: %w", err)
	}
	c.metrics.Observe(metrics.EscrowOpHold, metrics.OutcomeSuccess)
	return record, nil
}

// Abandon voids an authorization whose record never committed.
func (c *Coordinator) Abandon(ctx context.Context, record *models.EscrowRecord) {
	if record == nil || record.PaymentReferenceID == "" {
		return
	}
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()
	if err := c.gateway.Void(voidCtx, record.PaymentReferenceID); err != nil {
		c.logg.Error(ctx, "failed to void abandoned authorization", err)
	}
}

// voidLateAuthorization voids an authorization that succeeded after Hold gave up on it.
func (c *Coordinator) voidLateAuthorization(ctx context.Context, done <-chan authorizeResult) {
	late := <-done
	if late.err != nil || late.reference == "" {
		return
	}
	c.Abandon(ctx, &models.EscrowRecord{PaymentReferenceID: late.reference})
}

func (c *Coordinator) voidByKey(ctx context.Context, key string) {
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()
	if err := c.gateway.VoidByIdempotencyKey(voidCtx, key); err != nil {
		c.logg.Error(c.logg.WithField(ctx, "idempotency_key", key), "failed to void timed out authorization", err)
	}
}

type settlement struct {
	op                 string
	target             enums.EscrowState
	failed             enums.EscrowState
	successFulfillment *enums.FulfillmentStatus
	failedFulfillment  *enums.FulfillmentStatus
	call               func(ctx context.Context, reference string) error
	wrap               func(recordID string, err error) *pkgerrors.Error
}

func fulfillmentPtr(status enums.FulfillmentStatus) *enums.FulfillmentStatus {
	return &status
}

func (c *Coordinator) releaseSettlement() settlement {
	return settlement{
		op:     metrics.EscrowOpRelease,
		target: enums.EscrowStateReleased,
		failed: enums.EscrowStateReleaseFailed,
		call:   c.gateway.Capture,
		wrap:   pkgerrors.EscrowReleaseFailed,
	}
}

func (c *Coordinator) refundSettlement() settlement {
	return settlement{
		op:                 metrics.EscrowOpRefund,
		target:             enums.EscrowStateRefunded,
		failed:             enums.EscrowStateRefundFailed,
		successFulfillment: fulfillmentPtr(enums.FulfillmentStatusRefunded),
		failedFulfillment:  fulfillmentPtr(enums.FulfillmentStatusRefundPending),
		call:               c.gateway.Void,
		wrap:               pkgerrors.EscrowRefundFailed,
	}
}

// Release captures the held funds. Calling it on a released record returns the
// record without contacting the gateway.
func (c *Coordinator) Release(ctx context.Context, recordID uuid.UUID) (*models.EscrowRecord, error) {
	return c.settle(ctx, recordID, c.releaseSettlement())
}

// Refund voids the held funds. Calling it on a refunded record returns the record
// without contacting the gateway.
func (c *Coordinator) Refund(ctx context.Context, recordID uuid.UUID) (*models.EscrowRecord, error) {
	return c.settle(ctx, recordID, c.refundSettlement())
}

func (c *Coordinator) settle(ctx context.Context, recordID uuid.UUID, s settlement) (*models.EscrowRecord, error) {
	release, err := c.guard.Acquire(ctx, guard.EscrowKey(recordID))
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := c.repo.FindByID(ctx, nil, recordID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow record not found")
		}
		return nil, err
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"escrow_id": record.ID.String(),
		"order_id":  record.OrderID.String(),
		"batch_id":  record.BatchID.String(),
		"operation": s.op,
	})

	if record.State.IsTerminal() {
		c.metrics.Observe(s.op, metrics.OutcomeNoop)
		return record, nil
	}
	if !record.State.CanTransitionTo(s.target) {
		return record, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("escrow %s is %s and cannot become %s", record.ID, record.State, s.target))
	}

	now := c.clock.Now().UTC()
	callErr := s.call(ctx, record.PaymentReferenceID)
	if callErr == nil {
		record.State = s.target
		record.NextAttemptAt = nil
		record.LastError = nil
		record.ManualReview = false
		if s.target == enums.EscrowStateReleased {
			record.ReleasedAt = &now
		} else {
			record.RefundedAt = &now
		}
		if err := c.persist(ctx, record, s.successFulfillment); err != nil {
			c.logg.Error(ctx, "escrow settled at gateway but state was not saved", err)
			return nil, err
		}
		c.metrics.Observe(s.op, metrics.OutcomeSuccess)
		return record, nil
	}

	record.State = s.failed
	record.Attempts++
	msg := callErr.Error()
	record.LastError = &msg
	outcome := metrics.OutcomeFailure
	if delay, ok := c.policy.Delay(record.Attempts); ok {
		next := now.Add(delay)
		record.NextAttemptAt = &next
	} else {
		record.NextAttemptAt = nil
		record.ManualReview = true
		outcome = metrics.OutcomeManualReview
	}

	settleErr := s.wrap(record.ID.String(), callErr)
	if err := c.persist(ctx, record, s.failedFulfillment); err != nil {
		return nil, multierr.Append(settleErr, err)
	}
	c.metrics.Observe(s.op, outcome)
	c.logg.Error(c.logg.WithField(ctx, "attempts", record.Attempts), "escrow settlement failed", callErr)

	if record.ManualReview {
		c.logg.Warn(ctx, "escrow retries exhausted; manual review required")
		if c.onManualReview != nil {
			c.onManualReview(ctx, *record)
		}
	}
	return record, settleErr
}

func (c *Coordinator) persist(ctx context.Context, record *models.EscrowRecord, fulfillment *enums.FulfillmentStatus) error {
	return c.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.repo.Save(ctx, tx, record); err != nil {
			return fmt.Errorf("save escrow record: %w", err)
		}
		if err := c.orders.WithTx(tx).UpdateEscrowStatus(ctx, record.OrderID, record.State, fulfillment); err != nil {
			return fmt.Errorf("mirror escrow state on order: %w", err)
		}
		return nil
	})
}

// SettleResult summarizes a bulk settlement.
type SettleResult struct {
	Attempted int
	Settled   int
	Failed    int
}

// ReleaseBatch captures every held record of the batch.
func (c *Coordinator) ReleaseBatch(ctx context.Context, batchID uuid.UUID) (SettleResult, error) {
	return c.settleBatch(ctx, batchID, c.Release)
}

// RefundBatch voids every held record of the batch.
func (c *Coordinator) RefundBatch(ctx context.Context, batchID uuid.UUID) (SettleResult, error) {
	return c.settleBatch(ctx, batchID, c.Refund)
}

// settleBatch handles one page of held records; the resolution sweep picks up any remainder.
func (c *Coordinator) settleBatch(ctx context.Context, batchID uuid.UUID, fn func(context.Context, uuid.UUID) (*models.EscrowRecord, error)) (SettleResult, error) {
	var result SettleResult
	records, err := c.repo.ListByBatchState(ctx, batchID, enums.EscrowStateHeld, c.settleLimit)
	if err != nil {
		return result, fmt.Errorf("list held escrow: %w", err)
	}
	var errs error
	for _, record := range records {
		result.Attempted++
		if _, err := fn(ctx, record.ID); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
			continue
		}
		result.Settled++
	}
	return result, errs
}

// RetryDue re-attempts failed captures and voids whose backoff elapsed.
func (c *Coordinator) RetryDue(ctx context.Context, limit int) (SettleResult, error) {
	var result SettleResult
	if limit <= 0 {
		limit = c.settleLimit
	}
	records, err := c.repo.ListDueRetries(ctx, c.clock.Now(), limit)
	if err != nil {
		return result, fmt.Errorf("list due retries: %w", err)
	}
	var errs error
	for _, record := range records {
		var fn func(context.Context, uuid.UUID) (*models.EscrowRecord, error)
		switch record.State {
		case enums.EscrowStateReleaseFailed:
			fn = c.Release
		case enums.EscrowStateRefundFailed:
			fn = c.Refund
		default:
			continue
		}
		result.Attempted++
		if _, err := fn(ctx, record.ID); err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
			continue
		}
		result.Settled++
	}
	return result, errs
}

// Get returns a record by id.
func (c *Coordinator) Get(ctx context.Context, recordID uuid.UUID) (*models.EscrowRecord, error) {
	record, err := c.repo.FindByID(ctx, nil, recordID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow record not found")
		}
		return nil, err
	}
	return record, nil
}

// ManualReview lists records that need an operator.
func (c *Coordinator) ManualReview(ctx context.Context, limit int) ([]models.EscrowRecord, error) {
	return c.repo.ListManualReview(ctx, limit)
}
