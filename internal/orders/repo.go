package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/internal/repo"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Repository is the order ledger. Rows are append-only apart from the status columns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Order, error)
	ListByBatchAfter(ctx context.Context, batchID uuid.UUID, afterSequence, limit int) ([]models.Order, error)
	SumQuantityByBatch(ctx context.Context, batchID uuid.UUID) (int, error)
	NextSequence(ctx context.Context, batchID uuid.UUID) (int, error)
	UpdateGroupStatusForBatch(ctx context.Context, batchID uuid.UUID, status enums.GroupStatus) (int64, error)
	UpdateFulfillmentForBatch(ctx context.Context, batchID uuid.UUID, from []enums.FulfillmentStatus, to enums.FulfillmentStatus) (int64, error)
	UpdateFulfillmentStatus(ctx context.Context, orderID uuid.UUID, status enums.FulfillmentStatus) error
	UpdateEscrowStatus(ctx context.Context, orderID uuid.UUID, state enums.EscrowState, fulfillment *enums.FulfillmentStatus) error
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Omit("Escrow").Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Escrow").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBatch returns the ledger for a batch in placement order.
func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.DB(ctx).
		Preload("Escrow").
		Where("batch_id = ?", batchID).
		Order("sequence ASC").
		Find(&rows).Error
	return rows, err
}

// ListByBatchAfter returns up to limit ledger rows placed after afterSequence.
func (r *repository) ListByBatchAfter(ctx context.Context, batchID uuid.UUID, afterSequence, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.DB(ctx).
		Preload("Escrow").
		Where("batch_id = ? AND sequence > ?", batchID, afterSequence).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) SumQuantityByBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("batch_id = ?", batchID).
		Scan(&total).Error
	return int(total), err
}

// NextSequence returns the ledger position for the next order. Callers must hold the batch guard.
func (r *repository) NextSequence(ctx context.Context, batchID uuid.UUID) (int, error) {
	var last int64
	err := r.DB(ctx).
		Model(&models.Order{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("batch_id = ?", batchID).
		Scan(&last).Error
	return int(last) + 1, err
}

func (r *repository) UpdateGroupStatusForBatch(ctx context.Context, batchID uuid.UUID, status enums.GroupStatus) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("batch_id = ?", batchID).
		Update("group_status", status)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFulfillmentForBatch(ctx context.Context, batchID uuid.UUID, from []enums.FulfillmentStatus, to enums.FulfillmentStatus) (int64, error) {
	q := r.DB(ctx).
		Model(&models.Order{}).
		Where("batch_id = ?", batchID)
	if len(from) > 0 {
		q = q.Where("fulfillment_status IN ?", from)
	}
	res := q.Update("fulfillment_status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFulfillmentStatus(ctx context.Context, orderID uuid.UUID, status enums.FulfillmentStatus) error {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("fulfillment_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateEscrowStatus mirrors the escrow record state onto the order row.
func (r *repository) UpdateEscrowStatus(ctx context.Context, orderID uuid.UUID, state enums.EscrowState, fulfillment *enums.FulfillmentStatus) error {
	updates := map[string]any{"escrow_status": state}
	if fulfillment != nil {
		updates["fulfillment_status"] = *fulfillment
	}
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
