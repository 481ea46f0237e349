package enums

// OutboxEventType enumerates domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated     OutboxEventType = "order.created"
	EventOrderCancelled   OutboxEventType = "order.cancelled"
	EventOrderDelivered   OutboxEventType = "order.delivered"
	EventPaymentCompleted OutboxEventType = "payment.completed"
	EventPaymentFailed    OutboxEventType = "payment.failed"
	EventPaymentRefunded  OutboxEventType = "payment.refunded"
	EventPayoutProcessed  OutboxEventType = "payout.processed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventPayoutProcessed,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event references.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
	AggregatePayout  OutboxAggregateType = "payout"
)

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}
