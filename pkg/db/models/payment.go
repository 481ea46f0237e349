package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
)

// Payment is the 1:1 record of how an order is paid. Provider-backed rows are
// mutated only by the payment gateway bridge in response to confirmed events.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Provider         string              `gorm:"column:provider;not null;default:''"`
	ProviderIntentID *string             `gorm:"column:provider_intent_id;uniqueIndex"`
	ProviderChargeID *string             `gorm:"column:provider_charge_id"`
	AmountCents      int64               `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	Status           enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Method           enums.PaymentMethod `gorm:"column:method;not null"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	RefundedAt       *time.Time          `gorm:"column:refunded_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
