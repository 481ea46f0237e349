package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the live catalog row. Order items snapshot its attributes at
// purchase time; StockQty is mutated only through the inventory guard's
// conditional update.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	Category    string    `gorm:"column:category;not null;default:''"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	StockQty    int       `gorm:"column:stock_qty;not null;default:0"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
