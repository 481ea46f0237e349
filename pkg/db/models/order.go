package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/types"
)

// Order is one buyer's purchase event. Cancellation is a status transition;
// orders are never physically deleted.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID            uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status             enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	SubtotalCents      int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCostCents  int64               `gorm:"column:shipping_cost_cents;not null;default:0"`
	TaxCents           int64               `gorm:"column:tax_cents;not null;default:0"`
	TotalCents         int64               `gorm:"column:total_cents;not null"`
	Currency           enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	ShippingAddress    types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes              *string             `gorm:"column:notes"`
	TrackingNumber     *string             `gorm:"column:tracking_number"`
	InvoiceNumber      *string             `gorm:"column:invoice_number"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment            *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt        *time.Time          `gorm:"column:confirmed_at"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
