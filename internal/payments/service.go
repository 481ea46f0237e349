package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/internal/catalog"
	"github.com/avilaluz/mercadito-backend/internal/effects"
	dbpkg "github.com/avilaluz/mercadito-backend/pkg/db"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/outbox"
)

// errAlreadyProcessed short-circuits the transaction when the webhook event
// id has already been applied. Mapped to success at the service boundary:
// duplicate delivery is not an error.
var errAlreadyProcessed = errors.New("webhook event already processed")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IntentResult is returned to the buyer's payment client.
type IntentResult struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// RefundInput captures an API-driven refund request.
type RefundInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.ActorRole
	AmountCents *int64
	Reason      string
}

// RefundResult reports what the provider actually refunded.
type RefundResult struct {
	RefundID    string `json:"refund_id"`
	AmountCents int64  `json:"amount_cents"`
	Partial     bool   `json:"partial"`
	Status      string `json:"status"`
}

// Service is the payment gateway bridge: it creates provider intents and
// maps confirmed provider events onto internal Payment/Order state.
type Service interface {
	CreateIntent(ctx context.Context, orderID, actorUserID uuid.UUID) (*IntentResult, error)
	Confirm(ctx context.Context, event ConfirmEvent) error
	Fail(ctx context.Context, event FailEvent) error
	Cancel(ctx context.Context, event CancelEvent) error
	RefundFromWebhook(ctx context.Context, event RefundEvent) error
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

// ServiceParams collects the bridge's dependencies.
type ServiceParams struct {
	Repo     Repository
	Webhooks WebhookStore
	Catalog  catalog.Repository
	Provider ProviderClient
	Tx       txRunner
	Outbox   outbox.Emitter
	Effects  effects.Dispatcher
}

type service struct {
	repo     Repository
	webhooks WebhookStore
	catalog  catalog.Repository
	provider ProviderClient
	tx       txRunner
	outbox   outbox.Emitter
	effects  effects.Dispatcher
}

// NewService builds the payment bridge, validating required dependencies.
// The provider client is injected here; nothing reads a global client.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhook store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Effects == nil {
		return nil, fmt.Errorf("effects dispatcher required")
	}
	return &service{
		repo:     params.Repo,
		webhooks: params.Webhooks,
		catalog:  params.Catalog,
		provider: params.Provider,
		tx:       params.Tx,
		outbox:   params.Outbox,
		effects:  params.Effects,
	}, nil
}

// CreateIntent creates a provider payment intent for a card order and
// persists the intent reference. Restricted to the owning buyer.
func (s *service) CreateIntent(ctx context.Context, orderID, actorUserID uuid.UUID) (*IntentResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != actorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if !order.PaymentMethod.RequiresProvider() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid through the card processor")
	}

	payment, err := s.repo.FindPaymentByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment already %s", payment.Status))
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(payment.AmountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("buyer_id", order.BuyerID.String())

	intent, err := s.provider.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider intent")
	}

	if err := s.repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"provider_intent_id": intent.ID,
		"status":             enums.PaymentStatusProcessing,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist intent reference")
	}

	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  payment.AmountCents,
		Currency:     string(order.Currency),
	}, nil
}

// Confirm applies a successful provider payment. The webhook fence is
// checked and written inside the same transaction as the payment and order
// mutation, so duplicate delivery can never apply the effect twice. The
// terminal-status check is a secondary guard only.
func (s *service) Confirm(ctx context.Context, event ConfirmEvent) error {
	if event.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event id required")
	}
	if event.IntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider intent id required")
	}

	var (
		confirmedOrder   *models.Order
		confirmedPayment *models.Payment
		invoiceNumber    string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.webhooks.WithTx(tx)
		seen, err := store.FindByEventID(ctx, event.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook fence")
		}
		if seen != nil {
			return errAlreadyProcessed
		}

		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByIntentIDForUpdate(ctx, event.IntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		// Secondary guard only; a FAILED attempt may still succeed on retry,
		// so only settled states short-circuit here. Cancelled counts as
		// settled: the buyer already cancelled the order and its stock was
		// released, so a late success must not resurrect it.
		switch payment.Status {
		case enums.PaymentStatusCompleted, enums.PaymentStatusRefunded, enums.PaymentStatusCancelled:
			return s.recordEvent(ctx, store, event.EventID, "payment_intent.succeeded", event.IntentID, event.RawPayload)
		}

		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		now := time.Now()
		invoiceNumber = GenerateInvoiceNumber(now)

		paymentUpdates := map[string]any{
			"status":       enums.PaymentStatusCompleted,
			"completed_at": now,
		}
		if event.ChargeID != "" {
			paymentUpdates["provider_charge_id"] = event.ChargeID
		}
		if err := repo.UpdatePayment(ctx, payment.ID, paymentUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}

		orderUpdates := map[string]any{
			"payment_status": enums.PaymentStatusCompleted,
			"invoice_number": invoiceNumber,
		}
		if order.Status == enums.OrderStatusPending {
			orderUpdates["status"] = enums.OrderStatusConfirmed
			orderUpdates["confirmed_at"] = now
			order.Status = enums.OrderStatusConfirmed
		}
		if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		if err := s.recordEvent(ctx, store, event.EventID, "payment_intent.succeeded", event.IntentID, event.RawPayload); err != nil {
			return err
		}

		payment.Status = enums.PaymentStatusCompleted
		order.PaymentStatus = enums.PaymentStatusCompleted
		order.InvoiceNumber = &invoiceNumber
		confirmedOrder = order
		confirmedPayment = payment

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: outbox.PaymentCompletedPayload{
				PaymentID:     payment.ID,
				OrderID:       order.ID,
				AmountCents:   payment.AmountCents,
				Currency:      string(payment.Currency),
				InvoiceNumber: invoiceNumber,
			},
		})
	})
	if err != nil {
		if errors.Is(err, errAlreadyProcessed) || dbpkg.IsUniqueViolation(err, "ux_webhook_events_event_id") {
			return nil
		}
		return err
	}
	if confirmedOrder == nil {
		// Terminal-status short-circuit: fenced, nothing new applied.
		return nil
	}

	s.dispatchPaymentEffect(ctx, confirmedOrder, effects.Event{
		Type:        enums.NotificationPaymentCompleted,
		UserID:      confirmedOrder.BuyerID,
		OrderID:     confirmedOrder.ID,
		Title:       "Payment received",
		Body:        fmt.Sprintf("Payment of $%.2f received. Invoice %s.", float64(confirmedPayment.AmountCents)/100, invoiceNumber),
		AmountCents: confirmedPayment.AmountCents,
	})
	return nil
}

// Fail marks the payment attempt failed. The order stays open for retry.
func (s *service) Fail(ctx context.Context, event FailEvent) error {
	if event.EventID == "" || event.IntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event and intent ids required")
	}

	var failedOrder *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.webhooks.WithTx(tx)
		seen, err := store.FindByEventID(ctx, event.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook fence")
		}
		if seen != nil {
			return errAlreadyProcessed
		}

		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByIntentIDForUpdate(ctx, event.IntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status.IsTerminal() {
			return s.recordEvent(ctx, store, event.EventID, "payment_intent.payment_failed", event.IntentID, event.RawPayload)
		}

		updates := map[string]any{"status": enums.PaymentStatusFailed}
		if event.Reason != "" {
			updates["failure_reason"] = event.Reason
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if err := repo.UpdateOrder(ctx, payment.OrderID, map[string]any{
			"payment_status": enums.PaymentStatusFailed,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if err := s.recordEvent(ctx, store, event.EventID, "payment_intent.payment_failed", event.IntentID, event.RawPayload); err != nil {
			return err
		}

		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		failedOrder = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: outbox.PaymentFailedPayload{
				PaymentID:     payment.ID,
				OrderID:       payment.OrderID,
				FailureReason: event.Reason,
			},
		})
	})
	if err != nil {
		if errors.Is(err, errAlreadyProcessed) || dbpkg.IsUniqueViolation(err, "ux_webhook_events_event_id") {
			return nil
		}
		return err
	}
	if failedOrder == nil {
		return nil
	}

	s.dispatchPaymentEffect(ctx, failedOrder, effects.Event{
		Type:    enums.NotificationPaymentFailed,
		UserID:  failedOrder.BuyerID,
		OrderID: failedOrder.ID,
		Title:   "Payment failed",
		Body:    "Your payment could not be completed. Please try again.",
	})
	return nil
}

// Cancel marks the payment cancelled after the provider voided the intent.
func (s *service) Cancel(ctx context.Context, event CancelEvent) error {
	if event.EventID == "" || event.IntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event and intent ids required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.webhooks.WithTx(tx)
		seen, err := store.FindByEventID(ctx, event.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook fence")
		}
		if seen != nil {
			return errAlreadyProcessed
		}

		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByIntentIDForUpdate(ctx, event.IntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status.IsTerminal() {
			return s.recordEvent(ctx, store, event.EventID, "payment_intent.canceled", event.IntentID, event.RawPayload)
		}

		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status": enums.PaymentStatusCancelled,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if err := repo.UpdateOrder(ctx, payment.OrderID, map[string]any{
			"payment_status": enums.PaymentStatusCancelled,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.recordEvent(ctx, store, event.EventID, "payment_intent.canceled", event.IntentID, event.RawPayload)
	})
	if errors.Is(err, errAlreadyProcessed) || dbpkg.IsUniqueViolation(err, "ux_webhook_events_event_id") {
		return nil
	}
	return err
}

// RefundFromWebhook applies a provider-side refund event. Ledger records are
// not adjusted; refund reconciliation stays outside the seller ledger.
func (s *service) RefundFromWebhook(ctx context.Context, event RefundEvent) error {
	if event.EventID == "" || event.IntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event and intent ids required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.webhooks.WithTx(tx)
		seen, err := store.FindByEventID(ctx, event.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook fence")
		}
		if seen != nil {
			return errAlreadyProcessed
		}

		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByIntentIDForUpdate(ctx, event.IntentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		if err := s.applyRefund(ctx, tx, payment, event.AmountCents, event.Partial); err != nil {
			return err
		}
		return s.recordEvent(ctx, store, event.EventID, "charge.refunded", event.IntentID, event.RawPayload)
	})
	if errors.Is(err, errAlreadyProcessed) || dbpkg.IsUniqueViolation(err, "ux_webhook_events_event_id") {
		return nil
	}
	return err
}

// Refund is the API-driven refund path: permitted only when the payment is
// COMPLETED with a charge reference. The provider call happens first; only a
// successful provider refund mutates local state.
func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	payment, err := s.repo.FindPaymentByOrderID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if input.ActorRole != enums.ActorRoleAdmin {
		order, err := s.repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != input.ActorUserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	}

	// Guard before any provider call: a PENDING payment must fail here
	// without the provider ever being contacted.
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("refund requires a completed payment, payment is %s", payment.Status))
	}
	if payment.ProviderChargeID == nil || *payment.ProviderChargeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no provider charge reference")
	}

	amount := payment.AmountCents
	partial := false
	if input.AmountCents != nil {
		if *input.AmountCents <= 0 || *input.AmountCents > payment.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount out of range")
		}
		amount = *input.AmountCents
		partial = amount < payment.AmountCents
	}

	params := &stripe.RefundParams{
		Charge: stripe.String(*payment.ProviderChargeID),
		Amount: stripe.Int64(amount),
	}
	if input.Reason != "" {
		params.AddMetadata("reason", input.Reason)
	}
	providerRefund, err := s.provider.CreateRefund(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider refund")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.applyRefund(ctx, tx, payment, amount, partial)
	})
	if err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID:    providerRefund.ID,
		AmountCents: amount,
		Partial:     partial,
		Status:      string(providerRefund.Status),
	}, nil
}

func (s *service) applyRefund(ctx context.Context, tx *gorm.DB, payment *models.Payment, amountCents int64, partial bool) error {
	repo := s.repo.WithTx(tx)
	now := time.Now()

	if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"status":      enums.PaymentStatusRefunded,
		"refunded_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	if err := repo.UpdateOrder(ctx, payment.OrderID, map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: outbox.PaymentRefundedPayload{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			AmountCents: amountCents,
			Partial:     partial,
		},
	})
}

func (s *service) recordEvent(ctx context.Context, store WebhookStore, eventID, eventType, intentID string, payload []byte) error {
	row := &models.WebhookEvent{
		EventID:          eventID,
		EventType:        eventType,
		ProviderIntentID: &intentID,
		Payload:          json.RawMessage(payload),
	}
	if err := store.CreateProcessed(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}
	return nil
}

// dispatchPaymentEffect resolves the buyer's email best-effort and hands the
// event to the dispatcher. A lookup failure only drops the email channel.
func (s *service) dispatchPaymentEffect(ctx context.Context, order *models.Order, event effects.Event) {
	if buyer, err := s.catalog.FindUser(ctx, order.BuyerID); err == nil {
		event.EmailTo = buyer.Email
	}
	s.effects.Dispatch(ctx, event)
}
