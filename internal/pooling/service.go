package pooling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/batches"
	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/internal/guard"
	"github.com/angelmondragon/groupbuy-backend/internal/listings"
	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/internal/orders"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
)

const defaultSweepLimit = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type escrowCoordinator interface {
	Hold(ctx context.Context, tx *gorm.DB, in escrow.HoldInput) (*models.EscrowRecord, error)
	Abandon(ctx context.Context, record *models.EscrowRecord)
	ReleaseBatch(ctx context.Context, batchID uuid.UUID) (escrow.SettleResult, error)
	RefundBatch(ctx context.Context, batchID uuid.UUID) (escrow.SettleResult, error)
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event enums.NotificationEvent, payload notifications.Payload)
	NotifyMany(ctx context.Context, recipients []uuid.UUID, event enums.NotificationEvent, payload notifications.Payload)
}

type ServiceParams struct {
	DB         txRunner
	Listings   listings.Repository
	Batches    batches.Repository
	Orders     orders.Repository
	Escrow     escrowCoordinator
	Guard      guard.Guard
	Notifier   notifier
	Clock      clock.Clock
	Metrics    *metrics.ResolutionMetrics
	Logger     *logger.Logger
	SweepLimit int
}

// Service exposes the group-buy operations: listing and batch management, order
// placement and batch resolution.
type Service struct {
	db         txRunner
	listings   listings.Repository
	batches    batches.Repository
	orders     orders.Repository
	escrow     escrowCoordinator
	guard      guard.Guard
	notifier   notifier
	clock      clock.Clock
	metrics    *metrics.ResolutionMetrics
	logg       *logger.Logger
	sweepLimit int
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.DB == nil:
		return nil, fmt.Errorf("db required")
	case p.Listings == nil:
		return nil, fmt.Errorf("listings repository required")
	case p.Batches == nil:
		return nil, fmt.Errorf("batches repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Escrow == nil:
		return nil, fmt.Errorf("escrow coordinator required")
	case p.Guard == nil:
		return nil, fmt.Errorf("guard required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	s := &Service{
		db:         p.DB,
		listings:   p.Listings,
		batches:    p.Batches,
		orders:     p.Orders,
		escrow:     p.Escrow,
		guard:      p.Guard,
		notifier:   p.Notifier,
		clock:      p.Clock,
		metrics:    p.Metrics,
		logg:       p.Logger,
		sweepLimit: p.SweepLimit,
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.sweepLimit <= 0 {
		s.sweepLimit = defaultSweepLimit
	}
	return s, nil
}

// Actor is the caller of a mutation. The zero value is the system itself.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// mayManage rejects vendors acting on listings they do not own.
func (a Actor) mayManage(listing *models.Listing) error {
	if a.Role != enums.UserRoleVendor {
		return nil
	}
	if listing.VendorID != a.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another vendor")
	}
	return nil
}

// GetListing returns a listing by id.
func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, lookupError(err, "listing")
	}
	return listing, nil
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.RegionalBatch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, lookupError(err, "batch")
	}
	return batch, nil
}

// ListBatches returns every batch of a listing.
func (s *Service) ListBatches(ctx context.Context, listingID uuid.UUID) ([]models.RegionalBatch, error) {
	if _, err := s.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	rows, err := s.batches.ListByListing(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
	}
	return rows, nil
}

// GetOrdersByBatch returns the ledger of a batch in placement order.
func (s *Service) GetOrdersByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Order, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := s.orders.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// GetOrder returns an order with its escrow record.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order")
	}
	return order, nil
}

// VendorForBatch returns the vendor owning the listing of a batch.
func (s *Service) VendorForBatch(ctx context.Context, batchID uuid.UUID) (uuid.UUID, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return uuid.Nil, err
	}
	listing, err := s.GetListing(ctx, batch.ListingID)
	if err != nil {
		return uuid.Nil, err
	}
	return listing.VendorID, nil
}

// withBatchLock runs fn under the batch guard and inside a transaction holding the
// batch row lock. Everything that reads or writes quantity or status goes through here.
func (s *Service) withBatchLock(ctx context.Context, batchID uuid.UUID, fn func(tx *gorm.DB, batch *models.RegionalBatch) error) error {
	release, err := s.guard.Acquire(ctx, guard.BatchKey(batchID))
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.batches.WithTx(tx).FindForUpdate(ctx, batchID)
		if err != nil {
			return lookupError(err, "batch")
		}
		return fn(tx, batch)
	})
}

// recipients returns the vendor plus every customer with an order on the batch.
func (s *Service) recipients(ctx context.Context, batch *models.RegionalBatch) []uuid.UUID {
	var ids []uuid.UUID
	if listing, err := s.listings.FindByID(ctx, batch.ListingID); err == nil {
		ids = append(ids, listing.VendorID)
	} else {
		s.logg.Error(s.logg.WithBatchID(ctx, batch.ID.String()), "load listing for notification", err)
	}
	rows, err := s.orders.ListByBatch(ctx, batch.ID)
	if err != nil {
		s.logg.Error(s.logg.WithBatchID(ctx, batch.ID.String()), "load orders for notification", err)
		return ids
	}
	for _, row := range rows {
		ids = append(ids, row.CustomerID)
	}
	return ids
}

func (s *Service) notifyBatch(ctx context.Context, batch *models.RegionalBatch, event enums.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyMany(ctx, s.recipients(ctx, batch), event, notifications.Payload{
		BatchID: batch.ID,
		Data:    map[string]any{"status": string(batch.Status), "region": batch.Region},
	})
}

// settle captures or voids the held escrow of a resolved batch. Failures are
// scheduled for retry by the coordinator, so they are logged rather than returned.
func (s *Service) settle(ctx context.Context, batch *models.RegionalBatch) escrow.SettleResult {
	var (
		result escrow.SettleResult
		err    error
		op     string
	)
	switch {
	case batch.Status.CapturesEscrow():
		op = metrics.EscrowOpRelease
		result, err = s.escrow.ReleaseBatch(ctx, batch.ID)
	case batch.Status.RefundsEscrow():
		op = metrics.EscrowOpRefund
		result, err = s.escrow.RefundBatch(ctx, batch.ID)
	default:
		return result
	}
	s.metrics.AddSettled(op, result.Settled)
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"batch_id":  batch.ID.String(),
			"operation": op,
			"settled":   result.Settled,
			"failed":    result.Failed,
		})
		s.logg.Error(logCtx, "escrow settlement incomplete; failed records will be retried", err)
	}
	return result
}

func lookupError(err error, what string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func dependencyError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
