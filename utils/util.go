package utils

// Min returns the smaller of two fixed-point amounts.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// ConvertQuoteToBase converts a quote-currency volume to base currency at the
// given quote-per-unit price, flooring the result. Both are fixed-point with
// 8 implied decimals. Computed as quotient and remainder separately so the
// intermediate value cannot overflow for realistic volumes.
func ConvertQuoteToBase(volume, price int64) int64 {
	if price <= 0 {
		return 0
	}
	q := volume / price
	r := volume % price
	return q*100000000 + r*100000000/price
}
