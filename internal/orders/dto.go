package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/types"
)

// OrderLineInput names one requested product line. Quantities are validated
// by the service; prices always come from the live catalog row.
type OrderLineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// PlaceOrderInput captures everything order placement needs.
type PlaceOrderInput struct {
	BuyerID         uuid.UUID
	Items           []OrderLineInput
	ShippingAddress types.Address
	Notes           *string
	PaymentMethod   enums.PaymentMethod
}

// CancelOrderInput identifies the order and the acting buyer.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	Reason      string
}

// UpdateStatusInput captures a seller/admin status transition request.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	TargetStatus   enums.OrderStatus
	TrackingNumber *string
	ActorUserID    uuid.UUID
	ActorSellerID  *uuid.UUID
	ActorRole      enums.ActorRole
}

// OrderFilters bound the buyer order list.
type OrderFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderSummary is the aggregated row returned in the buyer order list.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalCents    int64               `json:"total_cents"`
	ItemCount     int                 `json:"item_count"`
	InvoiceNumber *string             `json:"invoice_number,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
