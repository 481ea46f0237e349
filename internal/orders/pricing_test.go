package orders

import (
	"testing"

	"github.com/avilaluz/mercadito-backend/pkg/config"
)

func TestComputeShippingCents(t *testing.T) {
	fees := config.FeesConfig{FlatShippingCents: 6000, FreeShippingThreshold: 100000}

	cases := []struct {
		name     string
		subtotal int64
		want     int64
	}{
		{"below threshold", 5500, 6000},
		{"one cent below", 99999, 6000},
		{"exactly at threshold", 100000, 0},
		{"above threshold", 250000, 0},
		{"zero subtotal", 0, 6000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeShippingCents(tc.subtotal, fees); got != tc.want {
				t.Fatalf("shipping for %d: got %d, want %d", tc.subtotal, got, tc.want)
			}
		})
	}
}

func TestComputeTaxCents(t *testing.T) {
	cases := []struct {
		name     string
		rate     float64
		subtotal int64
		want     int64
	}{
		{"zero rate", 0, 5500, 0},
		{"seven percent", 0.07, 10000, 700},
		{"rounds half up", 0.07, 50, 4},
		{"negative rate clamped", -0.5, 10000, 0},
		{"rate above one clamped", 1.5, 10000, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fees := config.FeesConfig{TaxRate: tc.rate}
			if got := ComputeTaxCents(tc.subtotal, fees); got != tc.want {
				t.Fatalf("tax for %d at %v: got %d, want %d", tc.subtotal, tc.rate, got, tc.want)
			}
		})
	}
}
