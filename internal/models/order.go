package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is a marketplace order. The referral ledger only touches the delivery fee
// fields when it redeems a free delivery.
type Order struct {
	ID                     uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                 uuid.UUID      `gorm:"type:char(36);not null;index" json:"user_id"`
	SubtotalCents          int64          `gorm:"not null;default:0" json:"subtotal_cents"`
	DeliveryFeeCents       int64          `gorm:"not null;default:0" json:"delivery_fee_cents"`
	WaivedDeliveryFeeCents int64          `gorm:"not null;default:0" json:"waived_delivery_fee_cents"`
	FreeDeliveryApplied    bool           `gorm:"not null;default:false" json:"free_delivery_applied"`
	Status                 string         `gorm:"size:20;not null;default:'PENDING';index" json:"status"` // PENDING, PAID, DELIVERED, CANCELLED
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}
