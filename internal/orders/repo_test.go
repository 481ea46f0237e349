package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/pagination"
	"github.com/avilaluz/mercadito-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  shipping_cost_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  shipping_address TEXT,
  notes TEXT,
  tracking_number TEXT,
  invoice_number TEXT,
  confirmed_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  name_snapshot TEXT NOT NULL,
  description_snapshot TEXT NOT NULL DEFAULT '',
  category_snapshot TEXT NOT NULL DEFAULT '',
  unit_price_cents_snapshot INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  provider TEXT NOT NULL DEFAULT '',
  provider_intent_id TEXT,
  provider_charge_id TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'pending',
  method TEXT NOT NULL,
  failure_reason TEXT,
  completed_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{orders, orderItems, payments} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func buildTestOrder(t *testing.T, db *gorm.DB, buyerID uuid.UUID, createdAt time.Time, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        status,
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 5500,
		TotalCents:    11500,
		Currency:      enums.CurrencyUSD,
		ShippingAddress: types.Address{
			Line1:      "123 Calle Ocho",
			City:       "Miami",
			State:      "FL",
			PostalCode: "33135",
			Country:    "US",
		},
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Omit("Items", "Payment").Create(order).Error)
	return order
}

func TestCreateAndFindOrderPreloadsChildren(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 3000,
		TotalCents:    9000,
		Currency:      enums.CurrencyUSD,
	}
	_, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	items := []models.OrderItem{
		{
			ID:                     uuid.New(),
			OrderID:                order.ID,
			ProductID:              uuid.New(),
			SellerID:               uuid.New(),
			NameSnapshot:           "Guava Paste",
			UnitPriceCentsSnapshot: 1000,
			Qty:                    3,
			SubtotalCents:          3000,
		},
	}
	require.NoError(t, repo.CreateOrderItems(ctx, items))

	payment := &models.Payment{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Provider:    "stripe",
		AmountCents: 9000,
		Currency:    enums.CurrencyUSD,
		Status:      enums.PaymentStatusProcessing,
		Method:      enums.PaymentMethodCard,
	}
	_, err = repo.CreatePayment(ctx, payment)
	require.NoError(t, err)

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Guava Paste", found.Items[0].NameSnapshot)
	require.NotNil(t, found.Payment)
	assert.Equal(t, int64(9000), found.Payment.AmountCents)
	assert.Equal(t, enums.PaymentStatusProcessing, found.Payment.Status)
}

func TestListBuyerOrdersKeysetPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := make([]*models.Order, 0, 5)
	for i := 0; i < 5; i++ {
		created = append(created, buildTestOrder(t, db, buyerID, base.Add(time.Duration(i)*time.Hour), enums.OrderStatusPending))
	}
	// Another buyer's order must never surface in this list.
	buildTestOrder(t, db, uuid.New(), base.Add(10*time.Hour), enums.OrderStatusPending)

	page1, err := repo.ListBuyerOrders(ctx, buyerID, 2, nil, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 2)
	assert.Equal(t, created[4].ID, page1.Orders[0].ID)
	assert.Equal(t, created[3].ID, page1.Orders[1].ID)
	require.NotEmpty(t, page1.NextCursor)

	cursor, err := pagination.ParseCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListBuyerOrders(ctx, buyerID, 2, cursor, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 2)
	assert.Equal(t, created[2].ID, page2.Orders[0].ID)
	assert.Equal(t, created[1].ID, page2.Orders[1].ID)
	require.NotEmpty(t, page2.NextCursor)

	cursor2, err := pagination.ParseCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListBuyerOrders(ctx, buyerID, 2, cursor2, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, page3.Orders, 1)
	assert.Equal(t, created[0].ID, page3.Orders[0].ID)
	assert.Empty(t, page3.NextCursor)
}

func TestListBuyerOrdersFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	pending := buildTestOrder(t, db, buyerID, base, enums.OrderStatusPending)
	delivered := buildTestOrder(t, db, buyerID, base.Add(24*time.Hour), enums.OrderStatusDelivered)

	status := enums.OrderStatusDelivered
	byStatus, err := repo.ListBuyerOrders(ctx, buyerID, 10, nil, OrderFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, byStatus.Orders, 1)
	assert.Equal(t, delivered.ID, byStatus.Orders[0].ID)

	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)
	byDate, err := repo.ListBuyerOrders(ctx, buyerID, 10, nil, OrderFilters{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Len(t, byDate.Orders, 1)
	assert.Equal(t, pending.ID, byDate.Orders[0].ID)
}

func TestUpdateOrderWritesOnlyNamedColumns(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := buildTestOrder(t, db, uuid.New(), time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC), enums.OrderStatusPending)

	now := time.Now().UTC()
	require.NoError(t, repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":       enums.OrderStatusConfirmed,
		"confirmed_at": now,
	}))

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, found.Status)
	require.NotNil(t, found.ConfirmedAt)
	assert.Equal(t, int64(11500), found.TotalCents)
}

func TestCancelPaymentOnlyTouchesInFlightRows(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	processing := buildTestOrder(t, db, uuid.New(), time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC), enums.OrderStatusPending)
	completed := buildTestOrder(t, db, uuid.New(), time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC), enums.OrderStatusConfirmed)

	for _, p := range []*models.Payment{
		{
			ID:          uuid.New(),
			OrderID:     processing.ID,
			Provider:    "stripe",
			AmountCents: 11500,
			Currency:    enums.CurrencyUSD,
			Status:      enums.PaymentStatusProcessing,
			Method:      enums.PaymentMethodCard,
		},
		{
			ID:          uuid.New(),
			OrderID:     completed.ID,
			Provider:    "stripe",
			AmountCents: 11500,
			Currency:    enums.CurrencyUSD,
			Status:      enums.PaymentStatusCompleted,
			Method:      enums.PaymentMethodCard,
		},
	} {
		_, err := repo.CreatePayment(ctx, p)
		require.NoError(t, err)
	}

	require.NoError(t, repo.CancelPayment(ctx, processing.ID, time.Now().UTC()))
	require.NoError(t, repo.CancelPayment(ctx, completed.ID, time.Now().UTC()))

	cancelled, err := repo.FindOrder(ctx, processing.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.Payment)
	assert.Equal(t, enums.PaymentStatusCancelled, cancelled.Payment.Status)

	untouched, err := repo.FindOrder(ctx, completed.ID)
	require.NoError(t, err)
	require.NotNil(t, untouched.Payment)
	assert.Equal(t, enums.PaymentStatusCompleted, untouched.Payment.Status)
}
