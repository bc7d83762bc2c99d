package batches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-backend/internal/repo"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository persists regional batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, batch *models.RegionalBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RegionalBatch, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.RegionalBatch, error)
	Save(ctx context.Context, batch *models.RegionalBatch) error
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]models.RegionalBatch, error)
	ListDueActive(ctx context.Context, now time.Time, limit int) ([]models.RegionalBatch, error)
	ListResolvedWithHeldEscrow(ctx context.Context, limit int) ([]models.RegionalBatch, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a batches repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, batch *models.RegionalBatch) error {
	return r.DB(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RegionalBatch, error) {
	var batch models.RegionalBatch
	if err := r.DB(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindForUpdate reads the batch with a row lock held until the surrounding tx ends.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.RegionalBatch, error) {
	var batch models.RegionalBatch
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) Save(ctx context.Context, batch *models.RegionalBatch) error {
	return r.DB(ctx).Save(batch).Error
}

func (r *repository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]models.RegionalBatch, error) {
	var rows []models.RegionalBatch
	err := r.DB(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListDueActive returns active batches whose cutoff is at or before now.
func (r *repository) ListDueActive(ctx context.Context, now time.Time, limit int) ([]models.RegionalBatch, error) {
	var rows []models.RegionalBatch
	q := r.DB(ctx).
		Where("status = ? AND cutoff_date <= ?", enums.BatchStatusActive, now.UTC()).
		Order("cutoff_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ListResolvedWithHeldEscrow returns resolved batches that still have funds on hold.
func (r *repository) ListResolvedWithHeldEscrow(ctx context.Context, limit int) ([]models.RegionalBatch, error) {
	var rows []models.RegionalBatch
	held := r.DB(ctx).
		Model(&models.EscrowRecord{}).
		Select("1").
		Where("escrow_records.batch_id = regional_batches.id AND escrow_records.state = ?", enums.EscrowStateHeld)
	q := r.DB(ctx).
		Where("status IN ?", []enums.BatchStatus{
			enums.BatchStatusSuccessful,
			enums.BatchStatusDelivered,
			enums.BatchStatusFailed,
			enums.BatchStatusCancelled,
		}).
		Where("EXISTS (?)", held).
		Order("resolved_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
