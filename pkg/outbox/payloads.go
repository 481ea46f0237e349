package outbox

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedPayload is the data block for order.created events.
type OrderCreatedPayload struct {
	OrderID    uuid.UUID `json:"orderId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	TotalCents int64     `json:"totalCents"`
	Currency   string    `json:"currency"`
	ItemCount  int       `json:"itemCount"`
}

// OrderCancelledPayload is the data block for order.cancelled events.
type OrderCancelledPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	CancelledAt time.Time `json:"cancelledAt"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderDeliveredPayload is the data block for order.delivered events.
type OrderDeliveredPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// PaymentCompletedPayload is the data block for payment.completed events.
type PaymentCompletedPayload struct {
	PaymentID     uuid.UUID `json:"paymentId"`
	OrderID       uuid.UUID `json:"orderId"`
	AmountCents   int64     `json:"amountCents"`
	Currency      string    `json:"currency"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
}

// PaymentFailedPayload is the data block for payment.failed events.
type PaymentFailedPayload struct {
	PaymentID     uuid.UUID `json:"paymentId"`
	OrderID       uuid.UUID `json:"orderId"`
	FailureReason string    `json:"failureReason,omitempty"`
}

// PaymentRefundedPayload is the data block for payment.refunded events.
type PaymentRefundedPayload struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	OrderID     uuid.UUID `json:"orderId"`
	AmountCents int64     `json:"amountCents"`
	Partial     bool      `json:"partial"`
}

// PayoutProcessedPayload is the data block for payout.processed events.
type PayoutProcessedPayload struct {
	PayoutID       uuid.UUID `json:"payoutId"`
	SellerID       uuid.UUID `json:"sellerId"`
	RecordCount    int       `json:"recordCount"`
	NetAmountCents int64     `json:"netAmountCents"`
	Method         string    `json:"method"`
}
