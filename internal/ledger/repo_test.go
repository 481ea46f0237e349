package ledger

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
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS financial_records (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  order_item_id TEXT NOT NULL UNIQUE,
  amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  processing_fee_cents INTEGER NOT NULL DEFAULT 0,
  net_amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payout_id TEXT,
  payout_method TEXT,
  cleared_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func buildTestRecord(t *testing.T, db *gorm.DB, sellerID, orderID uuid.UUID, status enums.FinancialRecordStatus, netCents int64, createdAt time.Time) models.FinancialRecord {
	t.Helper()

	record := models.FinancialRecord{
		ID:             uuid.New(),
		SellerID:       sellerID,
		OrderID:        orderID,
		OrderItemID:    uuid.New(),
		AmountCents:    netCents + 500,
		NetAmountCents: netCents,
		Status:         status,
		CreatedAt:      createdAt,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func TestUpdateStatusByOrderHonorsFromFilter(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	orderID := uuid.New()
	now := time.Now().UTC()
	pending := buildTestRecord(t, db, sellerID, orderID, enums.FinancialRecordStatusPending, 1000, now)
	paid := buildTestRecord(t, db, sellerID, orderID, enums.FinancialRecordStatusPaid, 2000, now)

	updated, err := repo.UpdateStatusByOrder(ctx, orderID,
		[]enums.FinancialRecordStatus{enums.FinancialRecordStatusPending},
		map[string]any{"status": enums.FinancialRecordStatusCleared, "cleared_at": now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	var got models.FinancialRecord
	require.NoError(t, db.First(&got, "id = ?", pending.ID).Error)
	assert.Equal(t, enums.FinancialRecordStatusCleared, got.Status)
	require.NotNil(t, got.ClearedAt)

	got = models.FinancialRecord{}
	require.NoError(t, db.First(&got, "id = ?", paid.ID).Error)
	assert.Equal(t, enums.FinancialRecordStatusPaid, got.Status)
}

func TestUpdateRecordsStampsPayoutFields(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	now := time.Now().UTC()
	a := buildTestRecord(t, db, sellerID, uuid.New(), enums.FinancialRecordStatusCleared, 4500, now)
	b := buildTestRecord(t, db, sellerID, uuid.New(), enums.FinancialRecordStatusCleared, 2250, now)

	payoutID := uuid.New()
	updated, err := repo.UpdateRecords(ctx, []uuid.UUID{a.ID, b.ID}, map[string]any{
		"status":        enums.FinancialRecordStatusPaid,
		"payout_id":     payoutID,
		"payout_method": enums.PayoutMethodBankTransfer,
		"paid_at":       now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	var got models.FinancialRecord
	require.NoError(t, db.First(&got, "id = ?", a.ID).Error)
	assert.Equal(t, enums.FinancialRecordStatusPaid, got.Status)
	require.NotNil(t, got.PayoutID)
	assert.Equal(t, payoutID, *got.PayoutID)
	require.NotNil(t, got.PayoutMethod)
	assert.Equal(t, enums.PayoutMethodBankTransfer, *got.PayoutMethod)
	require.NotNil(t, got.PaidAt)
}

func TestUpdateRecordsEmptyInputIsNoOp(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	updated, err := repo.UpdateRecords(context.Background(), nil, map[string]any{"status": enums.FinancialRecordStatusPaid})
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestFindByOrderIDOrdersByCreation(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	second := buildTestRecord(t, db, uuid.New(), orderID, enums.FinancialRecordStatusPending, 2000, base.Add(time.Minute))
	first := buildTestRecord(t, db, uuid.New(), orderID, enums.FinancialRecordStatusPending, 1000, base)
	buildTestRecord(t, db, uuid.New(), uuid.New(), enums.FinancialRecordStatusPending, 9999, base)

	records, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
}

func TestSummarizeByStatusGroupsAndFilters(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sellerID := uuid.New()
	otherSeller := uuid.New()
	base := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	buildTestRecord(t, db, sellerID, uuid.New(), enums.FinancialRecordStatusPending, 1000, base)
	buildTestRecord(t, db, sellerID, uuid.New(), enums.FinancialRecordStatusPending, 2000, base.Add(time.Hour))
	buildTestRecord(t, db, sellerID, uuid.New(), enums.FinancialRecordStatusCleared, 4000, base.Add(2*time.Hour))
	buildTestRecord(t, db, otherSeller, uuid.New(), enums.FinancialRecordStatusPending, 8000, base)

	totals, err := repo.SummarizeByStatus(ctx, SummaryFilters{SellerID: &sellerID})
	require.NoError(t, err)

	byStatus := make(map[enums.FinancialRecordStatus]StatusTotal, len(totals))
	for _, total := range totals {
		byStatus[total.Status] = total
	}
	require.Contains(t, byStatus, enums.FinancialRecordStatusPending)
	assert.Equal(t, int64(2), byStatus[enums.FinancialRecordStatusPending].RecordCount)
	assert.Equal(t, int64(3000), byStatus[enums.FinancialRecordStatusPending].NetAmountCents)
	require.Contains(t, byStatus, enums.FinancialRecordStatusCleared)
	assert.Equal(t, int64(4000), byStatus[enums.FinancialRecordStatusCleared].NetAmountCents)

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	windowed, err := repo.SummarizeByStatus(ctx, SummaryFilters{SellerID: &sellerID, DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, int64(2000), windowed[0].NetAmountCents)
}
