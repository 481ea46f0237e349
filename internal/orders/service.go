package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/internal/catalog"
	"github.com/avilaluz/mercadito-backend/internal/effects"
	"github.com/avilaluz/mercadito-backend/internal/inventory"
	"github.com/avilaluz/mercadito-backend/internal/ledger"
	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/metrics"
	"github.com/avilaluz/mercadito-backend/pkg/outbox"
	"github.com/avilaluz/mercadito-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order transaction coordinator: it owns the atomic creation
// of an Order, its OrderItems, per-seller FinancialRecords, and the Payment
// row, plus cancellation and status transitions.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	PlaceOrderFromCart(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, actorUserID uuid.UUID, role enums.ActorRole) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor, filters OrderFilters) (*OrderList, error)
}

// ServiceParams collects the coordinator's dependencies.
type ServiceParams struct {
	Repo      Repository
	Catalog   catalog.Repository
	Inventory inventory.Guard
	Ledger    ledger.Service
	Tx        txRunner
	Outbox    outbox.Emitter
	Effects   effects.Dispatcher
	Fees      config.FeesConfig
	Checkout  config.CheckoutConfig
	Metrics   *metrics.PaymentMetrics
}

type service struct {
	repo      Repository
	catalog   catalog.Repository
	inventory inventory.Guard
	ledger    ledger.Service
	tx        txRunner
	outbox    outbox.Emitter
	effects   effects.Dispatcher
	fees      config.FeesConfig
	checkout  config.CheckoutConfig
	metrics   *metrics.PaymentMetrics
}

// NewService builds the order coordinator, validating required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
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
	if params.Checkout.Deadline <= 0 {
		params.Checkout.Deadline = 8 * time.Second
	}
	return &service{
		repo:      params.Repo,
		catalog:   params.Catalog,
		inventory: params.Inventory,
		ledger:    params.Ledger,
		tx:        params.Tx,
		outbox:    params.Outbox,
		effects:   params.Effects,
		fees:      params.Fees,
		checkout:  params.Checkout,
		metrics:   params.Metrics,
	}, nil
}

// PlaceOrder creates the order and every dependent row in one transaction.
// Any failure at any step aborts the whole unit of work; no stock decrement
// or ledger entry survives a partial failure.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := s.validatePlaceOrder(input); err != nil {
		return nil, err
	}

	buyer, err := s.loadBuyer(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}

	lines, subtotal, err := s.priceLines(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	shipping := ComputeShippingCents(subtotal, s.fees)
	tax := ComputeTaxCents(subtotal, s.fees)
	total := subtotal + shipping + tax

	order := &models.Order{
		BuyerID:           buyer.ID,
		Status:            enums.OrderStatusPending,
		PaymentMethod:     input.PaymentMethod,
		PaymentStatus:     enums.PaymentStatusPending,
		SubtotalCents:     subtotal,
		ShippingCostCents: shipping,
		TaxCents:          tax,
		TotalCents:        total,
		Currency:          enums.CurrencyUSD,
		ShippingAddress:   input.ShippingAddress.Normalized(),
		Notes:             input.Notes,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(lines))
		reservations := make([]inventory.ReservationRequest, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.OrderItem{
				OrderID:                order.ID,
				ProductID:              line.product.ID,
				SellerID:               line.product.SellerID,
				NameSnapshot:           line.product.Name,
				DescriptionSnapshot:    line.product.Description,
				CategorySnapshot:       line.product.Category,
				UnitPriceCentsSnapshot: line.product.PriceCents,
				Qty:                    line.qty,
				SubtotalCents:          line.subtotalCents,
			})
			reservations = append(reservations, inventory.ReservationRequest{
				ProductID: line.product.ID,
				Qty:       line.qty,
			})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		if _, err := s.ledger.DeriveRecordsForItems(ctx, tx, items, input.PaymentMethod); err != nil {
			return err
		}

		if err := s.inventory.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		paymentStatus := enums.PaymentStatusPending
		provider := ""
		if input.PaymentMethod.RequiresProvider() {
			paymentStatus = enums.PaymentStatusProcessing
			provider = "stripe"
		}
		payment := &models.Payment{
			OrderID:     order.ID,
			Provider:    provider,
			AmountCents: total,
			Currency:    order.Currency,
			Status:      paymentStatus,
			Method:      input.PaymentMethod,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		order.Payment = payment

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyer.ID, Role: enums.ActorRoleBuyer.String()},
			Data: outbox.OrderCreatedPayload{
				OrderID:    order.ID,
				BuyerID:    buyer.ID,
				TotalCents: total,
				Currency:   order.Currency.String(),
				ItemCount:  len(items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.effects.Dispatch(ctx, effects.Event{
		Type:    enums.NotificationOrderCreated,
		UserID:  buyer.ID,
		OrderID: order.ID,
		Title:   "Order received",
		Body:    fmt.Sprintf("Your order for %d item(s) totaling $%.2f was received.", len(order.Items), float64(total)/100),
		EmailTo: buyer.Email,
	})

	return order, nil
}

// PlaceOrderFromCart bounds PlaceOrder with a wall-clock deadline. The
// deadline wrapper does not abort the underlying transaction: if it fires
// after commit the order exists and the caller must re-query, not resubmit.
func (s *service) PlaceOrderFromCart(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, s.checkout.Deadline)
	defer cancel()

	order, err := s.PlaceOrder(deadlineCtx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || deadlineCtx.Err() == context.DeadlineExceeded {
			s.metrics.IncCheckoutTimeout()
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "order placement timed out")
		}
		return nil, err
	}
	return order, nil
}

// CancelOrder is permitted only for the owning buyer and only before the
// order ships. It releases exactly the stock this order reserved and cancels
// exactly its own ledger records, all in one transaction.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if found.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		if !found.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be cancelled", found.Status))
		}

		items, err := repo.FindOrderItems(ctx, found.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		for _, item := range items {
			if err := s.inventory.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}

		if _, err := s.ledger.CancelForOrder(ctx, tx, found.ID); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if found.PaymentStatus == enums.PaymentStatusPending || found.PaymentStatus == enums.PaymentStatusProcessing {
			updates["payment_status"] = enums.PaymentStatusCancelled
			found.PaymentStatus = enums.PaymentStatusCancelled
		}
		if err := repo.UpdateOrder(ctx, found.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if err := repo.CancelPayment(ctx, found.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment")
		}

		found.Status = enums.OrderStatusCancelled
		found.CancelledAt = &now
		found.Items = items
		order = found

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   found.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.ActorRoleBuyer.String()},
			Data: outbox.OrderCancelledPayload{
				OrderID:     found.ID,
				BuyerID:     found.BuyerID,
				CancelledAt: now,
				Reason:      input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.effects.Dispatch(ctx, effects.Event{
		Type:    enums.NotificationOrderCancelled,
		UserID:  order.BuyerID,
		OrderID: order.ID,
		Title:   "Order cancelled",
		Body:    "Your order was cancelled and any reserved stock was released.",
	})

	return order, nil
}

// UpdateStatus moves an order forward through its lifecycle. Restricted to
// the seller-of-record or an admin. Reaching DELIVERED clears the order's
// ledger records in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.TargetStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.TargetStatus))
	}
	if input.TargetStatus == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation goes through the cancel operation")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleAdmin && input.ActorRole != enums.ActorRoleSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers or admins can update order status")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		items, err := repo.FindOrderItems(ctx, found.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if input.ActorRole == enums.ActorRoleSeller {
			if input.ActorSellerID == nil || !orderHasSeller(items, *input.ActorSellerID) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order has no items for this seller")
			}
		}

		if found.Status == input.TargetStatus {
			found.Items = items
			order = found
			return nil
		}
		if !found.Status.CanTransitionTo(input.TargetStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition order from %s to %s", found.Status, input.TargetStatus))
		}

		now := time.Now()
		updates := map[string]any{"status": input.TargetStatus}
		switch input.TargetStatus {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now
			found.ConfirmedAt = &now
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			found.ShippedAt = &now
			if input.TrackingNumber != nil {
				updates["tracking_number"] = *input.TrackingNumber
				found.TrackingNumber = input.TrackingNumber
			}
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			found.DeliveredAt = &now
		}

		if err := repo.UpdateOrder(ctx, found.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		found.Status = input.TargetStatus
		found.Items = items
		order = found

		if input.TargetStatus != enums.OrderStatusDelivered {
			return nil
		}

		if _, err := s.ledger.ClearForOrder(ctx, tx, found.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   found.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorSellerID, input.ActorRole),
			Data: outbox.OrderDeliveredPayload{
				OrderID:     found.ID,
				BuyerID:     found.BuyerID,
				DeliveredAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if order.Status == enums.OrderStatusDelivered {
		s.effects.Dispatch(ctx, effects.Event{
			Type:    enums.NotificationOrderDelivered,
			UserID:  order.BuyerID,
			OrderID: order.ID,
			Title:   "Order delivered",
			Body:    "Your order was delivered. Seller earnings are now clearing.",
		})
	}

	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID, actorUserID uuid.UUID, role enums.ActorRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if role != enums.ActorRoleAdmin && order.BuyerID != actorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	return order, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor, filters OrderFilters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, limit, cursor, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

type pricedLine struct {
	product       models.Product
	qty           int
	subtotalCents int64
}

func (s *service) validatePlaceOrder(input PlaceOrderInput) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if seen[item.ProductID] {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("duplicate product %s in cart", item.ProductID))
		}
		seen[item.ProductID] = true
	}
	return nil
}

func (s *service) loadBuyer(ctx context.Context, buyerID uuid.UUID) (*models.User, error) {
	buyer, err := s.catalog.FindUser(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	if !buyer.Active {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyer account is inactive")
	}
	return buyer, nil
}

// priceLines loads the current catalog rows and prices every line from them.
// Client-supplied prices are never trusted. Every line must pass or the
// whole request is rejected.
func (s *service) priceLines(ctx context.Context, items []OrderLineInput) ([]pricedLine, int64, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	sellerIDs := make([]uuid.UUID, 0, len(products))
	seenSellers := make(map[uuid.UUID]bool)
	for _, product := range products {
		if !seenSellers[product.SellerID] {
			seenSellers[product.SellerID] = true
			sellerIDs = append(sellerIDs, product.SellerID)
		}
	}
	sellers := make(map[uuid.UUID]models.Seller, len(sellerIDs))
	for _, sellerID := range sellerIDs {
		seller, err := s.catalog.FindSeller(ctx, sellerID)
		if err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}
		sellers[sellerID] = *seller
	}

	lines := make([]pricedLine, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", item.ProductID))
		}
		if !product.Active {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q is unavailable", product.Name))
		}
		seller := sellers[product.SellerID]
		if !seller.Verified || !seller.Active {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("seller for product %q is not verified", product.Name))
		}
		if product.StockQty < item.Qty {
			return nil, 0, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for product %q", product.Name)).
				WithDetails(map[string]any{
					"product_id":    product.ID.String(),
					"requested_qty": item.Qty,
					"available_qty": product.StockQty,
				})
		}

		lineSubtotal := product.PriceCents * int64(item.Qty)
		subtotal += lineSubtotal
		lines = append(lines, pricedLine{
			product:       product,
			qty:           item.Qty,
			subtotalCents: lineSubtotal,
		})
	}
	return lines, subtotal, nil
}

func orderHasSeller(items []models.OrderItem, sellerID uuid.UUID) bool {
	for _, item := range items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

func buildActor(userID uuid.UUID, sellerID *uuid.UUID, role enums.ActorRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:   userID,
		SellerID: sellerID,
		Role:     role.String(),
	}
}
