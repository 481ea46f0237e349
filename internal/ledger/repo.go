package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
)

// StatusTotal is one aggregation bucket of a financial summary.
type StatusTotal struct {
	Status         enums.FinancialRecordStatus `json:"status"`
	RecordCount    int64                       `json:"record_count"`
	AmountCents    int64                       `json:"amount_cents"`
	NetAmountCents int64                       `json:"net_amount_cents"`
}

// SummaryFilters bound a financial summary query.
type SummaryFilters struct {
	SellerID *uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
}

// Repository manages persistence for financial records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRecords(ctx context.Context, records []models.FinancialRecord) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinancialRecord, error)
	FindByIDsForUpdate(ctx context.Context, recordIDs []uuid.UUID) ([]models.FinancialRecord, error)
	UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, from []enums.FinancialRecordStatus, updates map[string]any) (int64, error)
	UpdateRecords(ctx context.Context, recordIDs []uuid.UUID, updates map[string]any) (int64, error)
	SummarizeByStatus(ctx context.Context, filters SummaryFilters) ([]StatusTotal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRecords(ctx context.Context, records []models.FinancialRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinancialRecord, error) {
	var records []models.FinancialRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindByIDsForUpdate locks the named rows for the duration of the enclosing
// transaction so concurrent payout batches serialize on them.
func (r *repository) FindByIDsForUpdate(ctx context.Context, recordIDs []uuid.UUID) ([]models.FinancialRecord, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}
	var records []models.FinancialRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", recordIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, from []enums.FinancialRecordStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Where("order_id = ? AND status IN ?", orderID, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateRecords(ctx context.Context, recordIDs []uuid.UUID, updates map[string]any) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Where("id IN ?", recordIDs).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// SummarizeByStatus aggregates directly over persisted rows. Payout
// eligibility depends on exact current status, so no caching layer sits in
// front of this query.
func (r *repository) SummarizeByStatus(ctx context.Context, filters SummaryFilters) ([]StatusTotal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Select("status, COUNT(*) AS record_count, COALESCE(SUM(amount_cents), 0) AS amount_cents, COALESCE(SUM(net_amount_cents), 0) AS net_amount_cents").
		Group("status")

	if filters.SellerID != nil {
		query = query.Where("seller_id = ?", *filters.SellerID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at < ?", *filters.DateTo)
	}

	var totals []StatusTotal
	if err := query.Find(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
