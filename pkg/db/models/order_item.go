package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is an immutable snapshot of one product line within an order.
// The product attributes are copied at order time so later catalog edits do
// not rewrite historical orders. Created once, never mutated.
type OrderItem struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID             uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	NameSnapshot         string    `gorm:"column:name_snapshot;not null"`
	DescriptionSnapshot  string    `gorm:"column:description_snapshot;not null;default:''"`
	CategorySnapshot     string    `gorm:"column:category_snapshot;not null;default:''"`
	UnitPriceCentsSnapshot int64   `gorm:"column:unit_price_cents_snapshot;not null"`
	Qty                  int       `gorm:"column:qty;not null"`
	SubtotalCents        int64     `gorm:"column:subtotal_cents;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}
