package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Listing is a vendor's product offer; pricing lives on its regional batches.
type Listing struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID      `gorm:"column:vendor_id;type:uuid;not null;index"`
	Title       string         `gorm:"column:title;not null"`
	Description *string        `gorm:"column:description"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Listing) TableName() string { return "listings" }

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
