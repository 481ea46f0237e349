package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/api/responses"
	"github.com/avilaluz/mercadito-backend/api/validators"
	"github.com/avilaluz/mercadito-backend/internal/payouts"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
)

type processPayoutRequest struct {
	SellerID  string   `json:"seller_id" validate:"required,uuid"`
	RecordIDs []string `json:"record_ids" validate:"required,min=1,dive,uuid"`
	Method    string   `json:"method" validate:"required"`
	Reference *string  `json:"reference,omitempty" validate:"omitempty,max=200"`
}

// ProcessPayout marks a batch of cleared ledger entries as paid out. Admin only.
func ProcessPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload processPayoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := parseUUIDField(payload.SellerID, "seller_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recordIDs := make([]uuid.UUID, 0, len(payload.RecordIDs))
		for _, raw := range payload.RecordIDs {
			id, err := parseUUIDField(raw, "record id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			recordIDs = append(recordIDs, id)
		}

		method, err := enums.ParsePayoutMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout method"))
			return
		}

		result, err := svc.ProcessPayout(r.Context(), payouts.ProcessPayoutInput{
			SellerID:    sellerID,
			RecordIDs:   recordIDs,
			Method:      method,
			Reference:   payload.Reference,
			ActorUserID: userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
