package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

// Handled stripe event types. Anything else is acknowledged and ignored.
const (
	eventTypeIntentSucceeded = "payment_intent.succeeded"
	eventTypeIntentFailed    = "payment_intent.payment_failed"
	eventTypeIntentCanceled  = "payment_intent.canceled"
	eventTypeChargeRefunded  = "charge.refunded"
)

// DecodeStripeEvent converts a verified provider event into the typed
// variant for its event type. Returns nil, nil for unhandled event types.
func DecodeStripeEvent(event *stripe.Event) (any, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	switch string(event.Type) {
	case eventTypeIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return ConfirmEvent{
			EventID:     event.ID,
			IntentID:    intent.ID,
			ChargeID:    latestChargeID(&intent),
			AmountCents: intent.AmountReceived,
			RawPayload:  event.Data.Raw,
		}, nil

	case eventTypeIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return FailEvent{
			EventID:    event.ID,
			IntentID:   intent.ID,
			Reason:     failureReason(&intent),
			RawPayload: event.Data.Raw,
		}, nil

	case eventTypeIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return CancelEvent{
			EventID:    event.ID,
			IntentID:   intent.ID,
			RawPayload: event.Data.Raw,
		}, nil

	case eventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
		}
		intentID := ""
		if charge.PaymentIntent != nil {
			intentID = charge.PaymentIntent.ID
		}
		return RefundEvent{
			EventID:     event.ID,
			IntentID:    intentID,
			ChargeID:    charge.ID,
			AmountCents: charge.AmountRefunded,
			Partial:     charge.AmountRefunded < charge.Amount,
			RawPayload:  event.Data.Raw,
		}, nil

	default:
		return nil, nil
	}
}

func latestChargeID(intent *stripe.PaymentIntent) string {
	if intent.LatestCharge != nil {
		return intent.LatestCharge.ID
	}
	return ""
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return fmt.Sprintf("payment failed for intent %s", intent.ID)
}
