package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is the seller-of-record for products and ledger entries. Orders can
// only include products from verified, active sellers.
type Seller struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Verified  bool      `gorm:"column:verified;not null;default:false"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
