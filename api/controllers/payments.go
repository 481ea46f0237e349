package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/api/middleware"
	"github.com/avilaluz/mercadito-backend/api/responses"
	"github.com/avilaluz/mercadito-backend/api/validators"
	"github.com/avilaluz/mercadito-backend/internal/payments"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
)

type createIntentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

type refundRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
}

func parseUUIDField(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}

// CreatePaymentIntent opens a provider payment intent for a card order.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDField(payload.OrderID, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateIntent(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// RefundPayment reverses a completed payment through the provider. Admins may
// refund any order; buyers only their own.
func RefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "actor role missing"))
			return
		}

		var payload refundRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Refund(r.Context(), payments.RefundInput{
			OrderID:     orderID,
			ActorUserID: userID,
			ActorRole:   role,
			AmountCents: payload.AmountCents,
			Reason:      payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
