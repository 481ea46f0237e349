package orders

import (
	"context"
	"testing"
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
	"github.com/avilaluz/mercadito-backend/pkg/outbox"
	"github.com/avilaluz/mercadito-backend/pkg/pagination"
	"github.com/avilaluz/mercadito-backend/pkg/types"
)

type stubOrdersRepo struct {
	order          *models.Order
	items          []models.OrderItem
	createdOrder   *models.Order
	createdItems   []models.OrderItem
	createdPayment *models.Payment
	orderUpdates   map[string]any
	updateCalls    int

	cancelPaymentOrders []uuid.UUID

	findOrderForUpdate func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	s.createdItems = items
	return nil
}

func (s *stubOrdersRepo) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.createdPayment = payment
	return payment, nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.findOrderForUpdate != nil {
		return s.findOrderForUpdate(ctx, orderID)
	}
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return s.items, nil
}

func (s *stubOrdersRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor, filters OrderFilters) (*OrderList, error) {
	return &OrderList{}, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.orderUpdates = updates
	s.updateCalls++
	return nil
}

func (s *stubOrdersRepo) CancelPayment(ctx context.Context, orderID uuid.UUID, cancelledAt time.Time) error {
	s.cancelPaymentOrders = append(s.cancelPaymentOrders, orderID)
	return nil
}

type stubCatalogRepo struct {
	users    map[uuid.UUID]*models.User
	products map[uuid.UUID]models.Product
	sellers  map[uuid.UUID]*models.Seller
}

func (s *stubCatalogRepo) WithTx(tx *gorm.DB) catalog.Repository { return s }

func (s *stubCatalogRepo) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &product, nil
}

func (s *stubCatalogRepo) FindProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	out := make([]models.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

func (s *stubCatalogRepo) FindSeller(ctx context.Context, sellerID uuid.UUID) (*models.Seller, error) {
	seller, ok := s.sellers[sellerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return seller, nil
}

func (s *stubCatalogRepo) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubInventoryGuard struct {
	reserved   []inventory.ReservationRequest
	released   map[uuid.UUID]int
	reserveErr error
}

func (s *stubInventoryGuard) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) error {
	if s.reserveErr != nil {
		return s.reserveErr
	}
	s.reserved = append(s.reserved, requests...)
	return nil
}

func (s *stubInventoryGuard) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if s.released == nil {
		s.released = make(map[uuid.UUID]int)
	}
	s.released[productID] += qty
	return nil
}

type stubLedgerService struct {
	derivedItems  []models.OrderItem
	clearedOrders []uuid.UUID
	cancelled     []uuid.UUID
}

func (s *stubLedgerService) DeriveRecordsForItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, method enums.PaymentMethod) ([]models.FinancialRecord, error) {
	s.derivedItems = items
	records := make([]models.FinancialRecord, 0, len(items))
	for _, item := range items {
		records = append(records, models.FinancialRecord{
			ID:          uuid.New(),
			SellerID:    item.SellerID,
			OrderID:     item.OrderID,
			OrderItemID: item.ID,
			AmountCents: item.SubtotalCents,
			Status:      enums.FinancialRecordStatusPending,
		})
	}
	return records, nil
}

func (s *stubLedgerService) ClearForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	s.clearedOrders = append(s.clearedOrders, orderID)
	return 1, nil
}

func (s *stubLedgerService) CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	s.cancelled = append(s.cancelled, orderID)
	return 1, nil
}

func (s *stubLedgerService) SellerSummary(ctx context.Context, sellerID uuid.UUID, from, to *time.Time) (*ledger.Summary, error) {
	panic("not implemented")
}

func (s *stubLedgerService) PlatformSummary(ctx context.Context, from, to *time.Time) (*ledger.Summary, error) {
	panic("not implemented")
}

type stubTxRunner struct {
	run func(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.run != nil {
		return s.run(ctx, fn)
	}
	return fn(&gorm.DB{})
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubDispatcher struct {
	events []effects.Event
}

func (s *stubDispatcher) Dispatch(ctx context.Context, events ...effects.Event) {
	s.events = append(s.events, events...)
}

func (s *stubDispatcher) Wait() {}

type orderFixture struct {
	repo      *stubOrdersRepo
	catalog   *stubCatalogRepo
	inventory *stubInventoryGuard
	ledger    *stubLedgerService
	tx        *stubTxRunner
	outbox    *stubEmitter
	effects   *stubDispatcher

	buyerID  uuid.UUID
	sellerID uuid.UUID
	productA uuid.UUID
	productB uuid.UUID
	service  Service
}

func testFees() config.FeesConfig {
	return config.FeesConfig{
		PlatformFeeRate:       0.05,
		CardProcessingFeeRate: 0.029,
		TaxRate:               0,
		FlatShippingCents:     6000,
		FreeShippingThreshold: 100000,
	}
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "123 Calle Ocho",
		City:       "Miami",
		State:      "FL",
		PostalCode: "33135",
	}
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	f := &orderFixture{
		repo:      &stubOrdersRepo{},
		inventory: &stubInventoryGuard{},
		ledger:    &stubLedgerService{},
		tx:        &stubTxRunner{},
		outbox:    &stubEmitter{},
		effects:   &stubDispatcher{},
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		productA:  uuid.New(),
		productB:  uuid.New(),
	}
	f.catalog = &stubCatalogRepo{
		users: map[uuid.UUID]*models.User{
			f.buyerID: {ID: f.buyerID, Email: "buyer@example.com", Name: "Buyer", Active: true},
		},
		sellers: map[uuid.UUID]*models.Seller{
			f.sellerID: {ID: f.sellerID, Name: "Finca Luz", Verified: true, Active: true},
		},
		products: map[uuid.UUID]models.Product{
			f.productA: {ID: f.productA, SellerID: f.sellerID, Name: "Guava Paste", PriceCents: 1000, StockQty: 10, Active: true},
			f.productB: {ID: f.productB, SellerID: f.sellerID, Name: "Cafe Molido", PriceCents: 2500, StockQty: 5, Active: true},
		},
	}

	svc, err := NewService(ServiceParams{
		Repo:      f.repo,
		Catalog:   f.catalog,
		Inventory: f.inventory,
		Ledger:    f.ledger,
		Tx:        f.tx,
		Outbox:    f.outbox,
		Effects:   f.effects,
		Fees:      testFees(),
		Checkout:  config.CheckoutConfig{Deadline: time.Second},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	f.service = svc
	return f
}

func placeInput(f *orderFixture) PlaceOrderInput {
	return PlaceOrderInput{
		BuyerID: f.buyerID,
		Items: []OrderLineInput{
			{ProductID: f.productA, Qty: 3},
			{ProductID: f.productB, Qty: 1},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCard,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error with code %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}

func TestPlaceOrderComputesTotals(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.service.PlaceOrder(context.Background(), placeInput(f))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if order.SubtotalCents != 5500 {
		t.Fatalf("expected subtotal 5500, got %d", order.SubtotalCents)
	}
	if order.ShippingCostCents != 6000 {
		t.Fatalf("expected flat shipping below threshold, got %d", order.ShippingCostCents)
	}
	if order.TaxCents != 0 {
		t.Fatalf("expected zero tax, got %d", order.TaxCents)
	}
	if order.TotalCents != order.SubtotalCents+order.ShippingCostCents+order.TaxCents {
		t.Fatalf("total %d does not equal subtotal+shipping+tax", order.TotalCents)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("new order must start pending, got %s", order.Status)
	}

	if len(f.repo.createdItems) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(f.repo.createdItems))
	}
	first := f.repo.createdItems[0]
	if first.NameSnapshot != "Guava Paste" || first.UnitPriceCentsSnapshot != 1000 || first.SubtotalCents != 3000 {
		t.Fatalf("item snapshot mismatch: %+v", first)
	}

	if len(f.ledger.derivedItems) != 2 {
		t.Fatalf("ledger derivation must cover every item, got %d", len(f.ledger.derivedItems))
	}
	if len(f.inventory.reserved) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(f.inventory.reserved))
	}
	if f.inventory.reserved[0].Qty != 3 || f.inventory.reserved[1].Qty != 1 {
		t.Fatalf("reservation quantities mismatch: %+v", f.inventory.reserved)
	}

	payment := f.repo.createdPayment
	if payment == nil {
		t.Fatalf("payment row must be created with the order")
	}
	if payment.AmountCents != order.TotalCents {
		t.Fatalf("payment amount %d must equal order total %d", payment.AmountCents, order.TotalCents)
	}
	if payment.Status != enums.PaymentStatusProcessing || payment.Provider != "stripe" {
		t.Fatalf("card payment should be processing via stripe, got %s/%s", payment.Status, payment.Provider)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order.created outbox event, got %+v", f.outbox.events)
	}
	if len(f.effects.events) != 1 || f.effects.events[0].Type != enums.NotificationOrderCreated {
		t.Fatalf("expected order created effect, got %+v", f.effects.events)
	}
}

func TestPlaceOrderFreeShippingAboveThreshold(t *testing.T) {
	f := newOrderFixture(t)
	product := f.catalog.products[f.productB]
	product.PriceCents = 50000
	product.StockQty = 10
	f.catalog.products[f.productB] = product

	input := placeInput(f)
	input.Items = []OrderLineInput{{ProductID: f.productB, Qty: 2}}

	order, err := f.service.PlaceOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.SubtotalCents != 100000 {
		t.Fatalf("expected subtotal 100000, got %d", order.SubtotalCents)
	}
	if order.ShippingCostCents != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", order.ShippingCostCents)
	}
}

func TestPlaceOrderCashOnDelivery(t *testing.T) {
	f := newOrderFixture(t)
	input := placeInput(f)
	input.PaymentMethod = enums.PaymentMethodCashOnDelivery

	_, err := f.service.PlaceOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	payment := f.repo.createdPayment
	if payment.Status != enums.PaymentStatusPending || payment.Provider != "" {
		t.Fatalf("cash order should have a pending providerless payment, got %s/%q", payment.Status, payment.Provider)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newOrderFixture(t)

	cases := []struct {
		name   string
		mutate func(*PlaceOrderInput)
		code   pkgerrors.Code
	}{
		{
			name:   "empty cart",
			mutate: func(in *PlaceOrderInput) { in.Items = nil },
			code:   pkgerrors.CodeValidation,
		},
		{
			name: "duplicate product",
			mutate: func(in *PlaceOrderInput) {
				in.Items = []OrderLineInput{
					{ProductID: f.productA, Qty: 1},
					{ProductID: f.productA, Qty: 2},
				}
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "non-positive quantity",
			mutate: func(in *PlaceOrderInput) {
				in.Items = []OrderLineInput{{ProductID: f.productA, Qty: 0}}
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name:   "missing buyer",
			mutate: func(in *PlaceOrderInput) { in.BuyerID = uuid.Nil },
			code:   pkgerrors.CodeUnauthorized,
		},
		{
			name:   "invalid payment method",
			mutate: func(in *PlaceOrderInput) { in.PaymentMethod = "barter" },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "missing address line",
			mutate: func(in *PlaceOrderInput) { in.ShippingAddress.Line1 = " " },
			code:   pkgerrors.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := placeInput(f)
			tc.mutate(&input)
			_, err := f.service.PlaceOrder(context.Background(), input)
			assertCode(t, err, tc.code)
		})
	}
}

func TestPlaceOrderRejectsInactiveProduct(t *testing.T) {
	f := newOrderFixture(t)
	product := f.catalog.products[f.productA]
	product.Active = false
	f.catalog.products[f.productA] = product

	_, err := f.service.PlaceOrder(context.Background(), placeInput(f))
	assertCode(t, err, pkgerrors.CodeValidation)
	if f.repo.createdOrder != nil {
		t.Fatalf("no order row may survive a rejected cart")
	}
}

func TestPlaceOrderRejectsUnverifiedSeller(t *testing.T) {
	f := newOrderFixture(t)
	f.catalog.sellers[f.sellerID].Verified = false

	_, err := f.service.PlaceOrder(context.Background(), placeInput(f))
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderRejectsInactiveBuyer(t *testing.T) {
	f := newOrderFixture(t)
	f.catalog.users[f.buyerID].Active = false

	_, err := f.service.PlaceOrder(context.Background(), placeInput(f))
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	input := placeInput(f)
	input.Items = []OrderLineInput{{ProductID: f.productB, Qty: 6}}

	_, err := f.service.PlaceOrder(context.Background(), input)
	assertCode(t, err, pkgerrors.CodeConflict)
	if len(f.inventory.reserved) != 0 {
		t.Fatalf("no reservation may happen for a rejected cart")
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newOrderFixture(t)
	input := placeInput(f)
	input.Items = []OrderLineInput{{ProductID: uuid.New(), Qty: 1}}

	_, err := f.service.PlaceOrder(context.Background(), input)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestPlaceOrderFromCartTimeout(t *testing.T) {
	f := newOrderFixture(t)
	f.tx.run = func(ctx context.Context, fn func(tx *gorm.DB) error) error {
		<-ctx.Done()
		return ctx.Err()
	}

	svc, err := NewService(ServiceParams{
		Repo:      f.repo,
		Catalog:   f.catalog,
		Inventory: f.inventory,
		Ledger:    f.ledger,
		Tx:        f.tx,
		Outbox:    f.outbox,
		Effects:   f.effects,
		Fees:      testFees(),
		Checkout:  config.CheckoutConfig{Deadline: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.PlaceOrderFromCart(context.Background(), placeInput(f))
	assertCode(t, err, pkgerrors.CodeTimeout)
}

func TestCancelOrderReleasesStockAndLedger(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{
		ID:            orderID,
		BuyerID:       f.buyerID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	f.repo.items = []models.OrderItem{
		{ID: uuid.New(), OrderID: orderID, ProductID: f.productA, SellerID: f.sellerID, Qty: 3},
		{ID: uuid.New(), OrderID: orderID, ProductID: f.productB, SellerID: f.sellerID, Qty: 1},
	}

	order, err := f.service.CancelOrder(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: f.buyerID,
		Reason:      "changed my mind",
	})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", order.Status)
	}
	if f.inventory.released[f.productA] != 3 || f.inventory.released[f.productB] != 1 {
		t.Fatalf("released stock must match the order's own reservations: %+v", f.inventory.released)
	}
	if len(f.ledger.cancelled) != 1 || f.ledger.cancelled[0] != orderID {
		t.Fatalf("ledger cancellation must target the cancelled order")
	}
	if f.repo.orderUpdates["payment_status"] != enums.PaymentStatusCancelled {
		t.Fatalf("pending payment must be cancelled with the order")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("expected order.cancelled outbox event")
	}
	if len(f.repo.cancelPaymentOrders) != 1 || f.repo.cancelPaymentOrders[0] != orderID {
		t.Fatalf("payment row must be cancelled with the order")
	}
}

func TestCancelOrderCancelsProcessingPayment(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{
		ID:            orderID,
		BuyerID:       f.buyerID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusProcessing,
	}

	order, err := f.service.CancelOrder(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: f.buyerID,
	})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	if f.repo.orderUpdates["payment_status"] != enums.PaymentStatusCancelled {
		t.Fatalf("in-flight card payment must be marked cancelled on the order")
	}
	if order.PaymentStatus != enums.PaymentStatusCancelled {
		t.Fatalf("returned order must reflect the cancelled payment")
	}
	if len(f.repo.cancelPaymentOrders) != 1 || f.repo.cancelPaymentOrders[0] != orderID {
		t.Fatalf("payment row must be cancelled in the same transaction")
	}
}

func TestCancelOrderForbiddenForOtherBuyer(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: uuid.New(), Status: enums.OrderStatusPending}

	_, err := f.service.CancelOrder(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: f.buyerID,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
	if len(f.inventory.released) != 0 {
		t.Fatalf("forbidden cancellation must not touch stock")
	}
}

func TestCancelOrderAfterShipmentRejected(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID, Status: enums.OrderStatusShipped}

	_, err := f.service.CancelOrder(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: f.buyerID,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.CancelOrder(context.Background(), CancelOrderInput{
		OrderID:     uuid.New(),
		ActorUserID: f.buyerID,
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID, Status: enums.OrderStatusShipped}
	f.repo.items = []models.OrderItem{{ID: uuid.New(), OrderID: orderID, SellerID: f.sellerID}}

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:      orderID,
		TargetStatus: enums.OrderStatusConfirmed,
		ActorUserID:  uuid.New(),
		ActorRole:    enums.ActorRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusDeliveredClearsLedger(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID, Status: enums.OrderStatusShipped}
	f.repo.items = []models.OrderItem{{ID: uuid.New(), OrderID: orderID, SellerID: f.sellerID}}

	order, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:       orderID,
		TargetStatus:  enums.OrderStatusDelivered,
		ActorUserID:   uuid.New(),
		ActorSellerID: &f.sellerID,
		ActorRole:     enums.ActorRoleSeller,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}
	if len(f.ledger.clearedOrders) != 1 || f.ledger.clearedOrders[0] != orderID {
		t.Fatalf("delivery must clear the order's ledger records in the same transaction")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderDelivered {
		t.Fatalf("expected order.delivered outbox event")
	}
	if len(f.effects.events) != 1 || f.effects.events[0].Type != enums.NotificationOrderDelivered {
		t.Fatalf("expected delivered effect, got %+v", f.effects.events)
	}
}

func TestUpdateStatusSellerWithoutItemsForbidden(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	otherSeller := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID, Status: enums.OrderStatusConfirmed}
	f.repo.items = []models.OrderItem{{ID: uuid.New(), OrderID: orderID, SellerID: f.sellerID}}

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:       orderID,
		TargetStatus:  enums.OrderStatusShipped,
		ActorUserID:   uuid.New(),
		ActorSellerID: &otherSeller,
		ActorRole:     enums.ActorRoleSeller,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestUpdateStatusSameStatusNoOp(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID, Status: enums.OrderStatusConfirmed}
	f.repo.items = []models.OrderItem{{ID: uuid.New(), OrderID: orderID, SellerID: f.sellerID}}

	order, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:      orderID,
		TargetStatus: enums.OrderStatusConfirmed,
		ActorUserID:  uuid.New(),
		ActorRole:    enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("same-status update must be a no-op: %v", err)
	}
	if f.repo.updateCalls != 0 {
		t.Fatalf("no-op transition must not write the order row")
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("status must be unchanged")
	}
}

func TestUpdateStatusCancellationRedirected(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:      uuid.New(),
		TargetStatus: enums.OrderStatusCancelled,
		ActorUserID:  uuid.New(),
		ActorRole:    enums.ActorRoleAdmin,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateStatusBuyerForbidden(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:      uuid.New(),
		TargetStatus: enums.OrderStatusShipped,
		ActorUserID:  f.buyerID,
		ActorRole:    enums.ActorRoleBuyer,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestGetOrderOwnershipCheck(t *testing.T) {
	f := newOrderFixture(t)
	orderID := uuid.New()
	f.repo.order = &models.Order{ID: orderID, BuyerID: f.buyerID}

	if _, err := f.service.GetOrder(context.Background(), orderID, f.buyerID, enums.ActorRoleBuyer); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	_, err := f.service.GetOrder(context.Background(), orderID, uuid.New(), enums.ActorRoleBuyer)
	assertCode(t, err, pkgerrors.CodeForbidden)
	if _, err := f.service.GetOrder(context.Background(), orderID, uuid.New(), enums.ActorRoleAdmin); err != nil {
		t.Fatalf("admin lookup failed: %v", err)
	}
}
