package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementStatusAdvance(t *testing.T) {
	cases := []struct {
		name    string
		from    SettlementStatus
		target  SettlementStatus
		want    SettlementStatus
		allowed bool
	}{
		{"none to valid", SettledNone, SettledValid, SettledValid, true},
		{"valid to pending", SettledValid, SettledPending, SettledPending, true},
		{"pending to complete", SettledPending, SettledComplete, SettledComplete, true},
		{"same state is a no-op", SettledValid, SettledValid, SettledValid, true},
		{"skipping a state", SettledNone, SettledPending, SettledNone, false},
		{"none straight to complete", SettledNone, SettledComplete, SettledNone, false},
		{"backward", SettledPending, SettledValid, SettledPending, false},
		{"error override from none", SettledNone, SettledError, SettledError, true},
		{"error override from valid", SettledValid, SettledError, SettledError, true},
		{"error override from pending", SettledPending, SettledError, SettledError, true},
		{"complete cannot error", SettledComplete, SettledError, SettledComplete, false},
		{"error is terminal", SettledError, SettledValid, SettledError, false},
		{"error stays on pending request", SettledError, SettledPending, SettledError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.from.Advance(tc.target)
			assert.Equal(t, tc.allowed, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAdvanceLegMutatesOnlyTheRequestedLeg(t *testing.T) {
	tradeInfo := TradeModel{}

	assert.True(t, tradeInfo.AdvanceLeg(LegBuyIn, SettledValid))
	assert.Equal(t, SettledValid, tradeInfo.BuySettledIn)
	assert.Equal(t, SettledNone, tradeInfo.BuySettledOut)
	assert.Equal(t, SettledNone, tradeInfo.SellSettledIn)
	assert.Equal(t, SettledNone, tradeInfo.SellSettledOut)

	assert.False(t, tradeInfo.AdvanceLeg(LegBuyIn, SettledComplete))
	assert.Equal(t, SettledValid, tradeInfo.BuySettledIn)
}

func TestClearLegErrorOnlyFromError(t *testing.T) {
	tradeInfo := TradeModel{SellSettledOut: SettledError}

	assert.False(t, tradeInfo.ClearLegError(LegBuyIn))
	assert.True(t, tradeInfo.ClearLegError(LegSellOut))
	assert.Equal(t, SettledNone, tradeInfo.SellSettledOut)
}

func TestAnyLegInError(t *testing.T) {
	assert.False(t, TradeModel{}.AnyLegInError())
	assert.True(t, TradeModel{BuySettledOut: SettledError}.AnyLegInError())
}

func TestTradeLegSide(t *testing.T) {
	assert.Equal(t, SideBuy, LegBuyIn.Side())
	assert.Equal(t, SideBuy, LegBuyOut.Side())
	assert.Equal(t, SideSell, LegSellIn.Side())
	assert.Equal(t, SideSell, LegSellOut.Side())
}
