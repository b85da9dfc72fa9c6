package models

// TradeModel is the immutable record of a match between exactly one buy and
// one sell order. Price and volume are in quote currency, base volume in base
// currency, all fixed-point with 8 implied decimals. Only the four settlement
// flags ever change after creation.
type TradeModel struct {
	Id            int64  `json:"id"`
	BuyOrderId    string `json:"buy_order_id"`
	SellOrderId   string `json:"sell_order_id"`
	BuyWalletId   string `json:"buy_wallet_id"`
	SellWalletId  string `json:"sell_wallet_id"`
	BuyAccountId  string `json:"buy_account_id"`
	SellAccountId string `json:"sell_account_id"`
	Cryptopair    string `json:"cryptopair"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	Price         int64  `json:"price"`
	Volume        int64  `json:"volume"`
	BaseVolume    int64  `json:"base_volume"`
	BuyFee        int64  `json:"buy_fee"`
	SellFee       int64  `json:"sell_fee"`

	BuySettledIn   SettlementStatus `json:"buy_settled_in"`
	BuySettledOut  SettlementStatus `json:"buy_settled_out"`
	SellSettledIn  SettlementStatus `json:"sell_settled_in"`
	SellSettledOut SettlementStatus `json:"sell_settled_out"`

	Created  int64 `json:"created"`
	Modified int64 `json:"modified"`
}

func (t TradeModel) LegStatus(leg TradeLeg) SettlementStatus {
	switch leg {
	case LegBuyIn:
		return t.BuySettledIn
	case LegBuyOut:
		return t.BuySettledOut
	case LegSellIn:
		return t.SellSettledIn
	case LegSellOut:
		return t.SellSettledOut
	default:
		return SettledNone
	}
}

func (t *TradeModel) setLegStatus(leg TradeLeg, status SettlementStatus) {
	switch leg {
	case LegBuyIn:
		t.BuySettledIn = status
	case LegBuyOut:
		t.BuySettledOut = status
	case LegSellIn:
		t.SellSettledIn = status
	case LegSellOut:
		t.SellSettledOut = status
	}
}

// AdvanceLeg requests a forward transition of one settlement leg and reports
// whether it was legal. Illegal transitions leave the trade untouched.
func (t *TradeModel) AdvanceLeg(leg TradeLeg, target SettlementStatus) bool {
	next, ok := t.LegStatus(leg).Advance(target)
	if !ok {
		return false
	}
	t.setLegStatus(leg, next)
	return true
}

// ClearLegError is the operator override that returns an errored leg to the
// unsettled state so the next batch retries it. It refuses anything else.
func (t *TradeModel) ClearLegError(leg TradeLeg) bool {
	if t.LegStatus(leg) != SettledError {
		return false
	}
	t.setLegStatus(leg, SettledNone)
	return true
}

// AnyLegInError reports whether any of the four legs needs operator review.
func (t TradeModel) AnyLegInError() bool {
	return t.BuySettledIn == SettledError ||
		t.BuySettledOut == SettledError ||
		t.SellSettledIn == SettledError ||
		t.SellSettledOut == SettledError
}

// OrderIdForLeg is the order the leg belongs to. The receiving wallet of an
// "in" leg holds the other currency of the pair and is resolved through the
// wallet directory, not stored here.
func (t TradeModel) OrderIdForLeg(leg TradeLeg) string {
	if leg.Side() == SideBuy {
		return t.BuyOrderId
	}
	return t.SellOrderId
}

// TradeEvent is the fire-and-forget notification payload published when a
// trade is created, mirroring both denominations of the fill.
type TradeEvent struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	TradeId   int64           `json:"trade_id"`
	Base      TradeEventLeg   `json:"base"`
	Quote     TradeEventQuote `json:"quote"`
	Timestamp int64           `json:"timestamp"`
}

type TradeEventLeg struct {
	Symbol string `json:"symbol"`
	Volume int64  `json:"volume"`
}

type TradeEventQuote struct {
	Symbol string `json:"symbol"`
	Price  int64  `json:"price"`
	Volume int64  `json:"volume"`
}
