package enums

// Currency is the ISO currency code attached to money rows. The platform
// settles in USD only; the column exists so provider payloads round-trip.
type Currency string

const (
	CurrencyUSD Currency = "USD"
)

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}
