package enums

// WebhookEventStatus tracks whether a provider event has been applied.
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
)

// String implements fmt.Stringer.
func (w WebhookEventStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookEventStatus.
func (w WebhookEventStatus) IsValid() bool {
	return w == WebhookEventStatusPending || w == WebhookEventStatusProcessed
}
