package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  stock_qty INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		SellerID:   uuid.New(),
		Name:       "Cafecito Beans",
		PriceCents: 1200,
		StockQty:   stock,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func stockOf(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()

	var found models.Product
	require.NoError(t, db.First(&found, "id = ?", productID.String()).Error)
	return found.StockQty
}

func TestReserveDecrementsStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	err := g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, db, product.ID))
}

func TestReserveRejectsOversellAndLeavesStockUntouched(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	require.NoError(t, g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 3}}))

	err := g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 3}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, 2, stockOf(t, db, product.ID))
}

func TestReserveExactRemainingStockSucceeds(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 4)

	require.NoError(t, g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 4}}))
	assert.Equal(t, 0, stockOf(t, db, product.ID))

	err := g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestReserveUnknownProductIsConflict(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	err := g.Reserve(ctx, db, []ReservationRequest{{ProductID: uuid.New(), Qty: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestReserveValidatesRequests(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	cases := []struct {
		name string
		req  ReservationRequest
	}{
		{name: "missing product id", req: ReservationRequest{Qty: 1}},
		{name: "zero quantity", req: ReservationRequest{ProductID: product.ID, Qty: 0}},
		{name: "negative quantity", req: ReservationRequest{ProductID: product.ID, Qty: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Reserve(ctx, db, []ReservationRequest{tc.req})
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, 5, stockOf(t, db, product.ID))
		})
	}
}

func TestReleaseRestoresExactQuantity(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	require.NoError(t, g.Reserve(ctx, db, []ReservationRequest{{ProductID: product.ID, Qty: 3}}))
	require.Equal(t, 2, stockOf(t, db, product.ID))

	require.NoError(t, g.Release(ctx, db, product.ID, 3))
	assert.Equal(t, 5, stockOf(t, db, product.ID))
}

func TestReleaseIgnoresNonPositiveQuantity(t *testing.T) {
	db := setupInventoryTestDB(t)
	g := NewGuard()
	ctx := context.Background()

	product := seedProduct(t, db, 5)

	require.NoError(t, g.Release(ctx, db, product.ID, 0))
	require.NoError(t, g.Release(ctx, db, product.ID, -1))
	assert.Equal(t, 5, stockOf(t, db, product.ID))
}

func TestGuardRequiresTransaction(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	err := g.Reserve(ctx, nil, []ReservationRequest{{ProductID: uuid.New(), Qty: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	err = g.Release(ctx, nil, uuid.New(), 1)
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
