package payments

// Provider webhook payloads decoded at the boundary into one variant per
// handled event type. Each variant carries exactly the fields that event
// type guarantees.

// ConfirmEvent reports a successfully captured payment.
type ConfirmEvent struct {
	EventID     string
	IntentID    string
	ChargeID    string
	AmountCents int64
	RawPayload  []byte
}

// FailEvent reports a failed payment attempt.
type FailEvent struct {
	EventID    string
	IntentID   string
	Reason     string
	RawPayload []byte
}

// CancelEvent reports a cancelled payment intent.
type CancelEvent struct {
	EventID    string
	IntentID   string
	RawPayload []byte
}

// RefundEvent reports a provider-side refund (full or partial).
type RefundEvent struct {
	EventID     string
	IntentID    string
	ChargeID    string
	AmountCents int64
	Partial     bool
	RawPayload  []byte
}
