package orders

import (
	"github.com/shopspring/decimal"

	"github.com/avilaluz/mercadito-backend/pkg/config"
)

// ComputeShippingCents applies the flat shipping fee below the free-shipping
// threshold. Pure function of the subtotal.
func ComputeShippingCents(subtotalCents int64, fees config.FeesConfig) int64 {
	if subtotalCents >= fees.FreeShippingThreshold {
		return 0
	}
	return fees.FlatShippingCents
}

// ComputeTaxCents applies the configured tax rate, clamped to [0,1], rounded
// half-up to whole cents. Pure function of the subtotal.
func ComputeTaxCents(subtotalCents int64, fees config.FeesConfig) int64 {
	rate := fees.TaxRateClamped()
	if rate == 0 {
		return 0
	}
	return decimal.NewFromInt(subtotalCents).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}
