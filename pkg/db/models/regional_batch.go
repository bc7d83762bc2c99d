package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// RegionalBatch is a time-bounded, region-scoped purchasing round for a listing.
type RegionalBatch struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ListingID       uuid.UUID            `gorm:"column:listing_id;type:uuid;not null;index"`
	Region          string               `gorm:"column:region;not null;index"`
	Price           decimal.Decimal      `gorm:"column:price;type:numeric(12,2);not null"`
	MinimumQuantity int                  `gorm:"column:minimum_quantity;not null"`
	CurrentQuantity int                  `gorm:"column:current_quantity;not null;default:0"`
	CutoffDate      time.Time            `gorm:"column:cutoff_date;not null;index"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	Status          enums.BatchStatus    `gorm:"column:status;type:text;not null;default:'draft';index"`
	ActivatedAt     *time.Time           `gorm:"column:activated_at"`
	ResolvedAt      *time.Time           `gorm:"column:resolved_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (RegionalBatch) TableName() string { return "regional_batches" }

func (b *RegionalBatch) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
