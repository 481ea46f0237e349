package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

type stubLedgerRepo struct {
	created []models.FinancialRecord
	totals  []StatusTotal

	updateStatusOrderID uuid.UUID
	updateStatusFrom    []enums.FinancialRecordStatus
	updateStatusUpdates map[string]any
	updateStatusRows    int64
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedgerRepo) CreateRecords(ctx context.Context, records []models.FinancialRecord) error {
	s.created = append(s.created, records...)
	return nil
}

func (s *stubLedgerRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinancialRecord, error) {
	panic("not implemented")
}

func (s *stubLedgerRepo) FindByIDsForUpdate(ctx context.Context, recordIDs []uuid.UUID) ([]models.FinancialRecord, error) {
	panic("not implemented")
}

func (s *stubLedgerRepo) UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, from []enums.FinancialRecordStatus, updates map[string]any) (int64, error) {
	s.updateStatusOrderID = orderID
	s.updateStatusFrom = from
	s.updateStatusUpdates = updates
	return s.updateStatusRows, nil
}

func (s *stubLedgerRepo) UpdateRecords(ctx context.Context, recordIDs []uuid.UUID, updates map[string]any) (int64, error) {
	panic("not implemented")
}

func (s *stubLedgerRepo) SummarizeByStatus(ctx context.Context, filters SummaryFilters) ([]StatusTotal, error) {
	return s.totals, nil
}

func newLedgerFixture(t *testing.T) (*stubLedgerRepo, Service) {
	t.Helper()

	repo := &stubLedgerRepo{}
	svc, err := NewService(repo, config.FeesConfig{
		PlatformFeeRate:       0.05,
		CardProcessingFeeRate: 0.029,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return repo, svc
}

func TestDeriveRecordsForItemsOnePerItem(t *testing.T) {
	repo, svc := newLedgerFixture(t)
	orderID := uuid.New()
	items := []models.OrderItem{
		{ID: uuid.New(), OrderID: orderID, SellerID: uuid.New(), SubtotalCents: 3000},
		{ID: uuid.New(), OrderID: orderID, SellerID: uuid.New(), SubtotalCents: 2500},
	}

	records, err := svc.DeriveRecordsForItems(context.Background(), &gorm.DB{}, items, enums.PaymentMethodCard)
	if err != nil {
		t.Fatalf("derive records: %v", err)
	}
	if len(records) != len(items) {
		t.Fatalf("expected one record per item, got %d", len(records))
	}
	if len(repo.created) != len(items) {
		t.Fatalf("records must be persisted in the caller's transaction, got %d", len(repo.created))
	}
	for i, record := range records {
		if record.OrderItemID != items[i].ID {
			t.Fatalf("record %d must reference its item", i)
		}
	}
}

func TestDeriveRecordsForItemsRequiresTransaction(t *testing.T) {
	_, svc := newLedgerFixture(t)

	_, err := svc.DeriveRecordsForItems(context.Background(), nil, []models.OrderItem{{ID: uuid.New()}}, enums.PaymentMethodCard)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error without a transaction, got %v", err)
	}
}

func TestDeriveRecordsForItemsRejectsEmpty(t *testing.T) {
	_, svc := newLedgerFixture(t)

	_, err := svc.DeriveRecordsForItems(context.Background(), &gorm.DB{}, nil, enums.PaymentMethodCard)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}
}

func TestClearForOrderOnlyTouchesPending(t *testing.T) {
	repo, svc := newLedgerFixture(t)
	repo.updateStatusRows = 2
	orderID := uuid.New()

	cleared, err := svc.ClearForOrder(context.Background(), &gorm.DB{}, orderID)
	if err != nil {
		t.Fatalf("clear for order: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared rows, got %d", cleared)
	}
	if repo.updateStatusOrderID != orderID {
		t.Fatalf("wrong order targeted")
	}
	if len(repo.updateStatusFrom) != 1 || repo.updateStatusFrom[0] != enums.FinancialRecordStatusPending {
		t.Fatalf("clearing must only transition pending rows, got %v", repo.updateStatusFrom)
	}
	if repo.updateStatusUpdates["status"] != enums.FinancialRecordStatusCleared {
		t.Fatalf("expected cleared target status, got %v", repo.updateStatusUpdates["status"])
	}
	if _, ok := repo.updateStatusUpdates["cleared_at"]; !ok {
		t.Fatalf("clearing must stamp cleared_at")
	}
}

func TestCancelForOrderSparesPaidRecords(t *testing.T) {
	repo, svc := newLedgerFixture(t)
	orderID := uuid.New()

	if _, err := svc.CancelForOrder(context.Background(), &gorm.DB{}, orderID); err != nil {
		t.Fatalf("cancel for order: %v", err)
	}
	if len(repo.updateStatusFrom) != 2 {
		t.Fatalf("cancellation targets pending and cleared rows only, got %v", repo.updateStatusFrom)
	}
	for _, status := range repo.updateStatusFrom {
		if status == enums.FinancialRecordStatusPaid {
			t.Fatalf("paid records must never be cancelled")
		}
	}
}

func TestSellerSummaryMapsStatusBuckets(t *testing.T) {
	repo, svc := newLedgerFixture(t)
	repo.totals = []StatusTotal{
		{Status: enums.FinancialRecordStatusPending, RecordCount: 3, AmountCents: 9000, NetAmountCents: 8100},
		{Status: enums.FinancialRecordStatusCleared, RecordCount: 2, AmountCents: 5000, NetAmountCents: 4500},
		{Status: enums.FinancialRecordStatusPaid, RecordCount: 1, AmountCents: 2000, NetAmountCents: 1800},
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	summary, err := svc.SellerSummary(context.Background(), uuid.New(), &from, nil)
	if err != nil {
		t.Fatalf("seller summary: %v", err)
	}
	if summary.PendingCents != 8100 || summary.ClearedCents != 4500 || summary.PaidCents != 1800 {
		t.Fatalf("bucket mapping mismatch: %+v", summary)
	}
	if summary.AvailableCents != summary.ClearedCents {
		t.Fatalf("available balance must be the cleared net total")
	}
	if summary.SellerID == nil {
		t.Fatalf("seller summary must echo the seller id")
	}
}

func TestSellerSummaryRequiresSellerID(t *testing.T) {
	_, svc := newLedgerFixture(t)

	_, err := svc.SellerSummary(context.Background(), uuid.Nil, nil, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
