package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
)

// FinancialRecord is the seller ledger entry for one order item: exactly one
// record per item, net of platform and processing fees.
type FinancialRecord struct {
	ID                 uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID           uuid.UUID                   `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderID            uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID        uuid.UUID                   `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	AmountCents        int64                       `gorm:"column:amount_cents;not null"`
	PlatformFeeCents   int64                       `gorm:"column:platform_fee_cents;not null;default:0"`
	ProcessingFeeCents int64                       `gorm:"column:processing_fee_cents;not null;default:0"`
	NetAmountCents     int64                       `gorm:"column:net_amount_cents;not null"`
	Status             enums.FinancialRecordStatus `gorm:"column:status;not null;default:'pending'"`
	PayoutID           *uuid.UUID                  `gorm:"column:payout_id;type:uuid"`
	PayoutMethod       *enums.PayoutMethod         `gorm:"column:payout_method"`
	ClearedAt          *time.Time                  `gorm:"column:cleared_at"`
	PaidAt             *time.Time                  `gorm:"column:paid_at"`
	CreatedAt          time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
