package pooling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/batches"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

type CreateListingInput struct {
	VendorID    uuid.UUID
	Title       string
	Description *string
	Currency    enums.Currency
}

// CreateListing registers a vendor offer that batches can be opened against.
func (s *Service) CreateListing(ctx context.Context, in CreateListingInput) (*models.Listing, error) {
	title := strings.TrimSpace(in.Title)
	if in.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	currency := in.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	listing := &models.Listing{
		VendorID:    in.VendorID,
		Title:       title,
		Description: in.Description,
		Currency:    currency,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, dependencyError(err, "create listing")
	}
	return listing, nil
}

type CreateBatchInput struct {
	ListingID       uuid.UUID
	Region          string
	Price           decimal.Decimal
	MinimumQuantity int
	CutoffDate      time.Time
	DeliveryMethod  enums.DeliveryMethod
}

// CreateBatch opens a draft batch for a listing in a region.
func (s *Service) CreateBatch(ctx context.Context, actor Actor, in CreateBatchInput) (*models.RegionalBatch, error) {
	region := strings.TrimSpace(in.Region)
	if region == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region is required")
	}
	if err := validateTerms(in.Price, in.MinimumQuantity, in.CutoffDate, in.DeliveryMethod); err != nil {
		return nil, err
	}

	listing, err := s.GetListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if err := actor.mayManage(listing); err != nil {
		return nil, err
	}

	batch := &models.RegionalBatch{
		ListingID:       listing.ID,
		Region:          region,
		Price:           in.Price,
		MinimumQuantity: in.MinimumQuantity,
		CutoffDate:      in.CutoffDate.UTC(),
		DeliveryMethod:  in.DeliveryMethod,
		Status:          enums.BatchStatusDraft,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, dependencyError(err, "create batch")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"batch_id":   batch.ID.String(),
		"listing_id": listing.ID.String(),
		"region":     region,
	}), "batch created")
	return batch, nil
}

// UpdateDraftBatchInput carries the batch terms to change. Nil fields are left untouched.
type UpdateDraftBatchInput struct {
	Price           *decimal.Decimal
	MinimumQuantity *int
	CutoffDate      *time.Time
	DeliveryMethod  *enums.DeliveryMethod
}

// UpdateDraftBatch edits batch terms while the batch is still a draft.
func (s *Service) UpdateDraftBatch(ctx context.Context, actor Actor, batchID uuid.UUID, in UpdateDraftBatchInput) (*models.RegionalBatch, error) {
	var updated *models.RegionalBatch
	err := s.withBatchLock(ctx, batchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := s.authorizeBatch(ctx, tx, actor, batch); err != nil {
			return err
		}
		if err := batches.EnsureEditable(batch); err != nil {
			return err
		}

		if in.Price != nil {
			batch.Price = *in.Price
		}
		if in.MinimumQuantity != nil {
			batch.MinimumQuantity = *in.MinimumQuantity
		}
		if in.CutoffDate != nil {
			batch.CutoffDate = in.CutoffDate.UTC()
		}
		if in.DeliveryMethod != nil {
			batch.DeliveryMethod = *in.DeliveryMethod
		}
		if err := validateTerms(batch.Price, batch.MinimumQuantity, batch.CutoffDate, batch.DeliveryMethod); err != nil {
			return err
		}

		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ActivateBatch opens a draft batch for orders.
func (s *Service) ActivateBatch(ctx context.Context, actor Actor, batchID uuid.UUID) (*models.RegionalBatch, error) {
	var activated *models.RegionalBatch
	err := s.withBatchLock(ctx, batchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := s.authorizeBatch(ctx, tx, actor, batch); err != nil {
			return err
		}
		if err := batches.Transition(batch, enums.BatchStatusActive, s.clock.Now()); err != nil {
			return err
		}
		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}
		activated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithBatchID(ctx, batchID.String()), "batch activated")
	return activated, nil
}

// CancelBatch stops an active batch and refunds every held order once the lock is
// released.
func (s *Service) CancelBatch(ctx context.Context, actor Actor, batchID uuid.UUID) (*models.RegionalBatch, error) {
	var cancelled *models.RegionalBatch
	err := s.withBatchLock(ctx, batchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := s.authorizeBatch(ctx, tx, actor, batch); err != nil {
			return err
		}
		if err := batches.Transition(batch, enums.BatchStatusCancelled, s.clock.Now()); err != nil {
			return err
		}
		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}
		if err := s.closeOrders(ctx, tx, batch); err != nil {
			return err
		}
		cancelled = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithBatchID(ctx, batchID.String())
	s.logg.Info(logCtx, "batch cancelled")
	s.metrics.IncResolved(string(enums.BatchStatusCancelled))
	s.settle(context.WithoutCancel(ctx), cancelled)
	s.notifyBatch(ctx, cancelled, enums.NotificationBatchCancelled)
	return cancelled, nil
}

// MarkDelivered records delivery of a successful batch and of its orders.
func (s *Service) MarkDelivered(ctx context.Context, actor Actor, batchID uuid.UUID) (*models.RegionalBatch, error) {
	var delivered *models.RegionalBatch
	err := s.withBatchLock(ctx, batchID, func(tx *gorm.DB, batch *models.RegionalBatch) error {
		if err := s.authorizeBatch(ctx, tx, actor, batch); err != nil {
			return err
		}
		if err := batches.Transition(batch, enums.BatchStatusDelivered, s.clock.Now()); err != nil {
			return err
		}
		if err := s.batches.WithTx(tx).Save(ctx, batch); err != nil {
			return dependencyError(err, "save batch")
		}
		from := []enums.FulfillmentStatus{enums.FulfillmentStatusPending, enums.FulfillmentStatusShipped}
		if _, err := s.orders.WithTx(tx).UpdateFulfillmentForBatch(ctx, batch.ID, from, enums.FulfillmentStatusDelivered); err != nil {
			return dependencyError(err, "mark orders delivered")
		}
		delivered = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithBatchID(ctx, batchID.String()), "batch delivered")
	s.notifyBatch(ctx, delivered, enums.NotificationBatchDelivered)
	return delivered, nil
}

// closeOrders marks the orders of a failed or cancelled batch as awaiting refund.
func (s *Service) closeOrders(ctx context.Context, tx *gorm.DB, batch *models.RegionalBatch) error {
	repo := s.orders.WithTx(tx)
	if _, err := repo.UpdateGroupStatusForBatch(ctx, batch.ID, enums.GroupStatusFailed); err != nil {
		return dependencyError(err, "update order group status")
	}
	from := []enums.FulfillmentStatus{enums.FulfillmentStatusPending}
	if _, err := repo.UpdateFulfillmentForBatch(ctx, batch.ID, from, enums.FulfillmentStatusRefundPending); err != nil {
		return dependencyError(err, "update order fulfillment")
	}
	return nil
}

func (s *Service) authorizeBatch(ctx context.Context, tx *gorm.DB, actor Actor, batch *models.RegionalBatch) error {
	if actor.Role != enums.UserRoleVendor {
		return nil
	}
	listing, err := s.listings.WithTx(tx).FindByID(ctx, batch.ListingID)
	if err != nil {
		return lookupError(err, "listing")
	}
	return actor.mayManage(listing)
}

func validateTerms(price decimal.Decimal, minimum int, cutoff time.Time, method enums.DeliveryMethod) error {
	switch {
	case !price.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	case !price.Equal(price.Truncate(2)):
		return pkgerrors.New(pkgerrors.CodeValidation, "price must have at most 2 decimal places")
	case price.GreaterThan(maxAmount):
		return pkgerrors.New(pkgerrors.CodeValidation, "price exceeds the supported amount")
	case minimum < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum quantity must be at least 1")
	case minimum > maxBatchQuantity:
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum quantity is too large")
	case cutoff.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "cutoff date is required")
	case !method.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported delivery method")
	}
	return nil
}
