package enums

// NotificationType categorizes post-commit notifications.
type NotificationType string

const (
	NotificationOrderCreated     NotificationType = "order_created"
	NotificationOrderCancelled   NotificationType = "order_cancelled"
	NotificationOrderDelivered   NotificationType = "order_delivered"
	NotificationPaymentCompleted NotificationType = "payment_completed"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationPayoutProcessed  NotificationType = "payout_processed"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
