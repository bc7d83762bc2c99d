package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// EscrowRecord tracks funds authorized, but not captured, for one order.
type EscrowRecord struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BatchID            uuid.UUID         `gorm:"column:batch_id;type:uuid;not null;index"`
	PaymentReferenceID string            `gorm:"column:payment_reference_id;not null"`
	IdempotencyKey     string            `gorm:"column:idempotency_key;not null;uniqueIndex"`
	HeldAmount         decimal.Decimal   `gorm:"column:held_amount;type:numeric(12,2);not null"`
	Currency           enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	State              enums.EscrowState `gorm:"column:state;type:text;not null;index"`
	Attempts           int               `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt      *time.Time        `gorm:"column:next_attempt_at;index"`
	LastError          *string           `gorm:"column:last_error"`
	ManualReview       bool              `gorm:"column:manual_review;not null;default:false"`
	ReleasedAt         *time.Time        `gorm:"column:released_at"`
	RefundedAt         *time.Time        `gorm:"column:refunded_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (EscrowRecord) TableName() string { return "escrow_records" }

func (e *EscrowRecord) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
