package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

// Service owns the FinancialRecord lifecycle: derivation at order time,
// clearing on delivery, cancellation, and read-side summaries. Payout
// disbursement lives in internal/payouts and goes through the same
// repository so the state machine stays in one place.
type Service interface {
	DeriveRecordsForItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, method enums.PaymentMethod) ([]models.FinancialRecord, error)
	ClearForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	SellerSummary(ctx context.Context, sellerID uuid.UUID, from, to *time.Time) (*Summary, error)
	PlatformSummary(ctx context.Context, from, to *time.Time) (*Summary, error)
}

// Summary is the aggregated view of a seller's (or the platform's) ledger.
type Summary struct {
	SellerID       *uuid.UUID    `json:"seller_id,omitempty"`
	ByStatus       []StatusTotal `json:"by_status"`
	PendingCents   int64         `json:"pending_net_cents"`
	ClearedCents   int64         `json:"cleared_net_cents"`
	PaidCents      int64         `json:"paid_net_cents"`
	AvailableCents int64         `json:"available_net_cents"`
}

type service struct {
	repo Repository
	fees config.FeesConfig
}

// NewService wires a ledger service with the provided repository and fee
// configuration.
func NewService(repo Repository, fees config.FeesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, fees: fees}, nil
}

// DeriveRecordsForItems derives and persists one record per item inside the
// caller's transaction. Exactly one record per order item; the unique index
// on order_item_id backs this invariant.
func (s *service) DeriveRecordsForItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, method enums.PaymentMethod) ([]models.FinancialRecord, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required to derive ledger records")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no order items to derive records for")
	}

	records := make([]models.FinancialRecord, 0, len(items))
	for _, item := range items {
		record, err := DeriveRecord(item, s.fees, method)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := s.repo.WithTx(tx).CreateRecords(ctx, records); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ledger records")
	}
	return records, nil
}

// ClearForOrder transitions the order's PENDING records to CLEARED. Records
// already PAID or CANCELLED are untouched; the status guard in the UPDATE
// enforces the state machine without a read-then-write race.
func (s *service) ClearForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required to clear ledger records")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	now := time.Now()
	cleared, err := s.repo.WithTx(tx).UpdateStatusByOrder(ctx, orderID,
		[]enums.FinancialRecordStatus{enums.FinancialRecordStatusPending},
		map[string]any{
			"status":     enums.FinancialRecordStatusCleared,
			"cleared_at": now,
		})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear ledger records")
	}
	return cleared, nil
}

// CancelForOrder transitions the order's PENDING and CLEARED records to
// CANCELLED. PAID records are never cancelled.
func (s *service) CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required to cancel ledger records")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	cancelled, err := s.repo.WithTx(tx).UpdateStatusByOrder(ctx, orderID,
		[]enums.FinancialRecordStatus{
			enums.FinancialRecordStatusPending,
			enums.FinancialRecordStatusCleared,
		},
		map[string]any{
			"status": enums.FinancialRecordStatusCancelled,
		})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel ledger records")
	}
	return cancelled, nil
}

func (s *service) SellerSummary(ctx context.Context, sellerID uuid.UUID, from, to *time.Time) (*Summary, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	summary, err := s.summarize(ctx, SummaryFilters{SellerID: &sellerID, DateFrom: from, DateTo: to})
	if err != nil {
		return nil, err
	}
	summary.SellerID = &sellerID
	return summary, nil
}

func (s *service) PlatformSummary(ctx context.Context, from, to *time.Time) (*Summary, error) {
	return s.summarize(ctx, SummaryFilters{DateFrom: from, DateTo: to})
}

func (s *service) summarize(ctx context.Context, filters SummaryFilters) (*Summary, error) {
	totals, err := s.repo.SummarizeByStatus(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize ledger")
	}

	summary := &Summary{ByStatus: totals}
	for _, total := range totals {
		switch total.Status {
		case enums.FinancialRecordStatusPending:
			summary.PendingCents = total.NetAmountCents
		case enums.FinancialRecordStatusCleared:
			summary.ClearedCents = total.NetAmountCents
		case enums.FinancialRecordStatusPaid:
			summary.PaidCents = total.NetAmountCents
		}
	}
	summary.AvailableCents = summary.ClearedCents
	return summary, nil
}
