package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/internal/ledger"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
	"github.com/avilaluz/mercadito-backend/pkg/metrics"
	"github.com/avilaluz/mercadito-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProcessPayoutInput names the records an admin wants to disburse together.
type ProcessPayoutInput struct {
	SellerID    uuid.UUID
	RecordIDs   []uuid.UUID
	Method      enums.PayoutMethod
	Reference   *string
	ActorUserID uuid.UUID
}

// PayoutResult reports what one batch actually disbursed.
type PayoutResult struct {
	PayoutID       uuid.UUID         `json:"payout_id"`
	SellerID       uuid.UUID         `json:"seller_id"`
	RecordCount    int               `json:"record_count"`
	NetAmountCents int64             `json:"net_amount_cents"`
	Method         enums.PayoutMethod `json:"method"`
	Reference      *string           `json:"reference,omitempty"`
	PaidAt         time.Time         `json:"paid_at"`
}

// Service is the payout batcher: it marks a caller-specified set of CLEARED
// ledger entries PAID as one unit.
type Service interface {
	ProcessPayout(ctx context.Context, input ProcessPayoutInput) (*PayoutResult, error)
}

type service struct {
	ledger  ledger.Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.PayoutMetrics
}

// NewService builds the payout batcher, validating required dependencies.
func NewService(ledgerRepo ledger.Repository, tx txRunner, emitter outbox.Emitter, payoutMetrics *metrics.PayoutMetrics) (Service, error) {
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		ledger:  ledgerRepo,
		tx:      tx,
		outbox:  emitter,
		metrics: payoutMetrics,
	}, nil
}

// ProcessPayout validates the whole batch before touching any row: every
// record must exist, belong to the seller, and be CLEARED. A single bad
// record rejects the batch wholesale; a re-submitted PAID id is an error,
// never a silent skip. The row locks taken by the lookup serialize
// concurrent batches against the same records.
func (s *service) ProcessPayout(ctx context.Context, input ProcessPayoutInput) (*PayoutResult, error) {
	started := time.Now()

	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if len(input.RecordIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record ids required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payout method %q", input.Method))
	}
	seen := make(map[uuid.UUID]bool, len(input.RecordIDs))
	for _, id := range input.RecordIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id required")
		}
		if seen[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate record id %s", id))
		}
		seen[id] = true
	}

	result := &PayoutResult{
		PayoutID:  uuid.New(),
		SellerID:  input.SellerID,
		Method:    input.Method,
		Reference: input.Reference,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledger.WithTx(tx)

		records, err := repo.FindByIDsForUpdate(ctx, input.RecordIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger records")
		}
		if len(records) != len(input.RecordIDs) {
			s.metrics.IncRejected(input.Method.String(), "missing_record")
			return pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("%d of %d records not found", len(input.RecordIDs)-len(records), len(input.RecordIDs)))
		}

		var totalNet int64
		for _, record := range records {
			if record.SellerID != input.SellerID {
				s.metrics.IncRejected(input.Method.String(), "wrong_seller")
				return pkgerrors.New(pkgerrors.CodeForbidden,
					fmt.Sprintf("record %s does not belong to seller", record.ID))
			}
			if record.Status != enums.FinancialRecordStatusCleared {
				s.metrics.IncRejected(input.Method.String(), "not_cleared")
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("record %s is %s, payout requires cleared", record.ID, record.Status))
			}
			totalNet += record.NetAmountCents
		}

		now := time.Now()
		updated, err := repo.UpdateRecords(ctx, input.RecordIDs, map[string]any{
			"status":        enums.FinancialRecordStatusPaid,
			"payout_id":     result.PayoutID,
			"payout_method": input.Method,
			"paid_at":       now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark records paid")
		}
		if updated != int64(len(input.RecordIDs)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout batch raced a concurrent update")
		}

		result.RecordCount = len(records)
		result.NetAmountCents = totalNet
		result.PaidAt = now

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutProcessed,
			AggregateType: enums.AggregatePayout,
			AggregateID:   result.PayoutID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.ActorRoleAdmin.String()},
			Data: outbox.PayoutProcessedPayload{
				PayoutID:       result.PayoutID,
				SellerID:       input.SellerID,
				RecordCount:    len(records),
				NetAmountCents: totalNet,
				Method:         input.Method.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncApplied(input.Method.String())
	s.metrics.ObserveBatch(input.Method.String(), time.Since(started))
	return result, nil
}
