package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// Order is one customer's committed quantity in a batch. Prices are snapshots
// taken when the order was accepted.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BatchID           uuid.UUID               `gorm:"column:batch_id;type:uuid;not null;index;uniqueIndex:idx_orders_batch_sequence,priority:1"`
	CustomerID        uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	Quantity          int                     `gorm:"column:quantity;not null"`
	UnitPrice         decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice        decimal.Decimal         `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency          enums.Currency          `gorm:"column:currency;type:text;not null;default:'USD'"`
	GroupStatus       enums.GroupStatus       `gorm:"column:group_status;type:text;not null;default:'open'"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:text;not null;default:'pending'"`
	EscrowStatus      enums.EscrowState       `gorm:"column:escrow_status;type:text;not null"`
	Sequence          int                     `gorm:"column:sequence;not null;uniqueIndex:idx_orders_batch_sequence,priority:2"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Escrow *EscrowRecord `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
