package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avilaluz/mercadito-backend/api/middleware"
	"github.com/avilaluz/mercadito-backend/api/responses"
	"github.com/avilaluz/mercadito-backend/api/validators"
	internalorders "github.com/avilaluz/mercadito-backend/internal/orders"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
	"github.com/avilaluz/mercadito-backend/pkg/pagination"
	"github.com/avilaluz/mercadito-backend/pkg/types"
)

type placeOrderRequest struct {
	Items           []placeOrderLine `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address    `json:"shipping_address" validate:"required"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
	PaymentMethod   string           `json:"payment_method" validate:"required"`
}

type placeOrderLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type updateStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
}

type orderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
	SubtotalCents  int64     `json:"subtotal_cents"`
}

type paymentResponse struct {
	Status        string     `json:"status"`
	Method        string     `json:"method"`
	Provider      string     `json:"provider,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"payment_status"`
	PaymentMethod     string              `json:"payment_method"`
	SubtotalCents     int64               `json:"subtotal_cents"`
	ShippingCostCents int64               `json:"shipping_cost_cents"`
	TaxCents          int64               `json:"tax_cents"`
	TotalCents        int64               `json:"total_cents"`
	Currency          string              `json:"currency"`
	ShippingAddress   types.Address       `json:"shipping_address"`
	Notes             *string             `json:"notes,omitempty"`
	TrackingNumber    *string             `json:"tracking_number,omitempty"`
	InvoiceNumber     *string             `json:"invoice_number,omitempty"`
	Items             []orderItemResponse `json:"items"`
	Payment           *paymentResponse    `json:"payment,omitempty"`
	ConfirmedAt       *time.Time          `json:"confirmed_at,omitempty"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:                order.ID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		PaymentMethod:     string(order.PaymentMethod),
		SubtotalCents:     order.SubtotalCents,
		ShippingCostCents: order.ShippingCostCents,
		TaxCents:          order.TaxCents,
		TotalCents:        order.TotalCents,
		Currency:          string(order.Currency),
		ShippingAddress:   order.ShippingAddress,
		Notes:             order.Notes,
		TrackingNumber:    order.TrackingNumber,
		InvoiceNumber:     order.InvoiceNumber,
		Items:             make([]orderItemResponse, 0, len(order.Items)),
		ConfirmedAt:       order.ConfirmedAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		CreatedAt:         order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			SellerID:       item.SellerID,
			Name:           item.NameSnapshot,
			UnitPriceCents: item.UnitPriceCentsSnapshot,
			Qty:            item.Qty,
			SubtotalCents:  item.SubtotalCents,
		})
	}
	if order.Payment != nil {
		resp.Payment = &paymentResponse{
			Status:        string(order.Payment.Status),
			Method:        string(order.Payment.Method),
			Provider:      order.Payment.Provider,
			AmountCents:   order.Payment.AmountCents,
			FailureReason: order.Payment.FailureReason,
			CompletedAt:   order.Payment.CompletedAt,
			RefundedAt:    order.Payment.RefundedAt,
		}
	}
	return resp
}

// PlaceOrder submits the buyer's cart as an order.
func PlaceOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		items := make([]internalorders.OrderLineInput, 0, len(payload.Items))
		for _, line := range payload.Items {
			items = append(items, internalorders.OrderLineInput{
				ProductID: line.ProductID,
				Qty:       line.Qty,
			})
		}

		order, err := svc.PlaceOrderFromCart(r.Context(), internalorders.PlaceOrderInput{
			BuyerID:         buyerID,
			Items:           items,
			ShippingAddress: payload.ShippingAddress,
			Notes:           payload.Notes,
			PaymentMethod:   method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderDetail returns one order for the owning buyer or an admin.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		role, _ := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))

		order, err := svc.GetOrder(r.Context(), orderID, userID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders pages through the buyer's own orders, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListBuyerOrders(r.Context(), buyerID, limit, cursor, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CancelOrder cancels a buyer-owned order that has not shipped.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var payload cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.CancelOrder(r.Context(), internalorders.CancelOrderInput{
			OrderID:     orderID,
			ActorUserID: userID,
			Reason:      payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// UpdateOrderStatus moves an order forward through its fulfilment states.
// Sellers may only advance orders that carry their own items.
func UpdateOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var sellerID *uuid.UUID
		if raw := middleware.SellerIDFromContext(r.Context()); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller id"))
				return
			}
			sellerID = &parsed
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID:        orderID,
			TargetStatus:   target,
			TrackingNumber: payload.TrackingNumber,
			ActorUserID:    userID,
			ActorSellerID:  sellerID,
			ActorRole:      role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func buildOrderFilters(r *http.Request) (internalorders.OrderFilters, error) {
	var filters internalorders.OrderFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_from")
		}
		filters.DateFrom = &t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date_to")
		}
		filters.DateTo = &t
	}

	return filters, nil
}
