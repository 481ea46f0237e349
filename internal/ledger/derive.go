package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

// DeriveRecord computes the seller ledger entry for one order item. Pure
// function: amount is the item subtotal, platform fee comes from the single
// configured rate, processing fee applies only to provider-backed payment
// methods. Fees round half-up to whole cents.
func DeriveRecord(item models.OrderItem, fees config.FeesConfig, method enums.PaymentMethod) (*models.FinancialRecord, error) {
	if item.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	if item.SubtotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item subtotal cannot be negative")
	}

	amount := decimal.NewFromInt(item.SubtotalCents)
	platformFee := amount.
		Mul(decimal.NewFromFloat(fees.PlatformFeeRate)).
		Round(0)

	processingFee := decimal.Zero
	if method.RequiresProvider() {
		processingFee = amount.
			Mul(decimal.NewFromFloat(fees.CardProcessingFeeRate)).
			Round(0)
	}

	net := amount.Sub(platformFee).Sub(processingFee)

	return &models.FinancialRecord{
		SellerID:           item.SellerID,
		OrderID:            item.OrderID,
		OrderItemID:        item.ID,
		AmountCents:        amount.IntPart(),
		PlatformFeeCents:   platformFee.IntPart(),
		ProcessingFeeCents: processingFee.IntPart(),
		NetAmountCents:     net.IntPart(),
		Status:             enums.FinancialRecordStatusPending,
	}, nil
}
