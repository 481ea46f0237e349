package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/api/middleware"
	"github.com/avilaluz/mercadito-backend/api/responses"
	"github.com/avilaluz/mercadito-backend/internal/ledger"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
)

// SellerFinancials returns the authenticated seller's ledger summary.
func SellerFinancials(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		raw := middleware.SellerIDFromContext(r.Context())
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "seller identity missing"))
			return
		}
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid seller identity"))
			return
		}

		from, to, err := dateRangeQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SellerSummary(r.Context(), sellerID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// PlatformFinancials returns the marketplace-wide ledger summary. Admin only;
// an optional seller_id query narrows it to one seller.
func PlatformFinancials(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		from, to, err := dateRangeQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("seller_id")); raw != "" {
			sellerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller_id"))
				return
			}
			summary, err := svc.SellerSummary(r.Context(), sellerID, from, to)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, summary)
			return
		}

		summary, err := svc.PlatformSummary(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func dateRangeQuery(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_from")
		}
		from = &t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_to")
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "date_to precedes date_from")
	}
	return from, to, nil
}
