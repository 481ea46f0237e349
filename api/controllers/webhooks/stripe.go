package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/avilaluz/mercadito-backend/api/responses"
	"github.com/avilaluz/mercadito-backend/internal/payments"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
	"github.com/avilaluz/mercadito-backend/pkg/metrics"
)

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook receives payment lifecycle events from the provider.
//
// Once the signature verifies, the response is always 2xx: the durable
// idempotency fence lives inside the payment service transaction, so a
// failed mutation is surfaced through logs and reconciliation rather than
// by asking the provider to retry against a poisoned delivery.
func StripeWebhook(svc payments.Service, client stripeClient, guard stripeWebhookGuard, pm *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		start := time.Now()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				// Redis outage: fall through to the database fence.
				if logg != nil {
					logg.Warn(ctx, "webhook idempotency fast path unavailable")
				}
			} else if seen {
				pm.ObserveWebhook(string(event.Type), "duplicate", time.Since(start))
				responses.WriteSuccess(w, map[string]string{"status": "already_processed"})
				return
			}
		}

		if err := handleStripeEvent(ctx, svc, &event); err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, event.ID)
			}
			pm.ObserveWebhook(string(event.Type), "error", time.Since(start))
			if logg != nil {
				logg.Error(ctx, "stripe event handling failed", err)
			}
			// Acknowledge anyway; reconciliation picks this up from the logs.
			responses.WriteSuccess(w, map[string]string{"status": "acknowledged"})
			return
		}

		pm.ObserveWebhook(string(event.Type), "processed", time.Since(start))
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

func handleStripeEvent(ctx context.Context, svc payments.Service, event *stripe.Event) error {
	decoded, err := payments.DecodeStripeEvent(event)
	if err != nil {
		return err
	}

	switch e := decoded.(type) {
	case payments.ConfirmEvent:
		return svc.Confirm(ctx, e)
	case payments.FailEvent:
		return svc.Fail(ctx, e)
	case payments.CancelEvent:
		return svc.Cancel(ctx, e)
	case payments.RefundEvent:
		return svc.RefundFromWebhook(ctx, e)
	case nil:
		// Unhandled event type, acknowledged without processing.
		return nil
	default:
		return nil
	}
}
