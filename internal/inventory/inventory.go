package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/avilaluz/mercadito-backend/pkg/errors"
)

// ReservationRequest names one product line to reserve.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Guard performs the atomic stock mutations for order placement and
// cancellation. Both operations require the surrounding order transaction so
// a failed order never leaks a stock decrement.
type Guard interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type guard struct{}

// NewGuard returns the default conditional-update inventory guard.
func NewGuard() Guard {
	return guard{}
}

// Reserve decrements stock for every requested line. The decrement is a
// single conditional UPDATE per line; zero rows affected means the stock
// check failed and the whole reservation is rejected.
func (guard) Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		res := tx.WithContext(ctx).Exec(`
			UPDATE products
			SET stock_qty = stock_qty - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock_qty >= ?
		`, req.Qty, req.ProductID, req.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for product %s", req.ProductID)).
				WithDetails(map[string]any{
					"product_id":    req.ProductID.String(),
					"requested_qty": req.Qty,
				})
		}
	}
	return nil
}

// Release restores stock previously reserved by an order line.
func (guard) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_qty = stock_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}
