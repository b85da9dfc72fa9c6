package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-core-service/staticerr"
)

func TestConvertQuoteToBase(t *testing.T) {
	// 250,000 quote units at 138 quote per base
	assert.Equal(t, int64(1811), ConvertQuoteToBase(250_000, 13_800_000_000))

	// exact division
	assert.Equal(t, int64(100_000_000), ConvertQuoteToBase(10_000_000_000, 10_000_000_000))

	// floors, never rounds up
	assert.Equal(t, int64(33_333_333), ConvertQuoteToBase(1_000_000_000, 3_000_000_000))

	// volume far above the price must not overflow
	assert.Equal(t, int64(10_000_000_000_000), ConvertQuoteToBase(9_000_000_000_000_000, 90_000_000_000))

	assert.Equal(t, int64(0), ConvertQuoteToBase(100, 0))
	assert.Equal(t, int64(0), ConvertQuoteToBase(100, -5))
}

func TestMin(t *testing.T) {
	assert.Equal(t, int64(1), Min(1, 2))
	assert.Equal(t, int64(1), Min(2, 1))
	assert.Equal(t, int64(-3), Min(-3, 0))
}

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair("BTC-LTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "LTC", quote)

	for _, bad := range []string{"", "BTC", "BTC-", "-LTC", "BTC-LTC-DOGE"} {
		_, _, err = SplitPair(bad)
		assert.ErrorIs(t, err, staticerr.ErrorUnknownPair, bad)
	}
}
