package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/repo"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository persists escrow records. A nil tx runs on the shared connection.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, record *models.EscrowRecord) error {
	return r.Conn(ctx, tx).Create(record).Error
}

func (r *Repository) Save(ctx context.Context, tx *gorm.DB, record *models.EscrowRecord) error {
	return r.Conn(ctx, tx).Save(record).Error
}

func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.EscrowRecord, error) {
	var record models.EscrowRecord
	if err := r.Conn(ctx, tx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.EscrowRecord, error) {
	var record models.EscrowRecord
	if err := r.Conn(ctx, tx).Where("order_id = ?", orderID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByBatchState returns records of a batch in the given state, oldest first.
func (r *Repository) ListByBatchState(ctx context.Context, batchID uuid.UUID, state enums.EscrowState, limit int) ([]models.EscrowRecord, error) {
	var rows []models.EscrowRecord
	q := r.DB(ctx).
		Where("batch_id = ? AND state = ?", batchID, state).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ListDueRetries returns failed records whose backoff elapsed and that still belong to automation.
func (r *Repository) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]models.EscrowRecord, error) {
	var rows []models.EscrowRecord
	q := r.DB(ctx).
		Where("state IN ?", []enums.EscrowState{enums.EscrowStateReleaseFailed, enums.EscrowStateRefundFailed}).
		Where("manual_review = ?", false).
		Where("next_attempt_at IS NOT NULL AND next_attempt_at <= ?", now.UTC()).
		Order("next_attempt_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ListManualReview returns records automation gave up on.
func (r *Repository) ListManualReview(ctx context.Context, limit int) ([]models.EscrowRecord, error) {
	var rows []models.EscrowRecord
	q := r.DB(ctx).
		Where("manual_review = ?", true).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
