package models

// OrderModel is an offer to trade a cryptopair. Volume, original volume,
// limit price and fee are always denominated in the quote currency, as
// integer fixed-point with 8 implied decimals. A limit price of 0 marks a
// market order.
type OrderModel struct {
	OrderId        string `json:"order_id"`
	WalletId       string `json:"wallet_id"`
	AccountId      string `json:"account_id"`
	Cryptopair     string `json:"cryptopair"`
	BaseCurrency   string `json:"base_currency"`
	QuoteCurrency  string `json:"quote_currency"`
	Side           Side   `json:"side"`
	LimitPrice     int64  `json:"limit_price"`
	Volume         int64  `json:"volume"`
	OriginalVolume int64  `json:"original_volume"`
	Fee            int64  `json:"fee"`
	TimeInForce    int64  `json:"time_in_force,omitempty"`
	Open           bool   `json:"open"`
	Canceled       bool   `json:"canceled"`
	Filled         int64  `json:"filled"`
	Created        int64  `json:"created"`
	Modified       int64  `json:"modified"`
}

// Market reports whether the order carries no limit price and therefore
// matches at the counterparty's or last-trade price.
func (o OrderModel) Market() bool {
	return o.LimitPrice == 0
}

// Expired reports whether the order's time in force has elapsed at the given
// instant. Orders without a time in force are good until canceled.
func (o OrderModel) Expired(nowMillis int64) bool {
	return o.TimeInForce > 0 && o.TimeInForce <= nowMillis
}

// DisposedCurrency is the currency an open order removes from its wallet:
// quote for buys, base for sells.
func (o OrderModel) DisposedCurrency() string {
	if o.Side == SideBuy {
		return o.QuoteCurrency
	}
	return o.BaseCurrency
}

// OrderEvent is the fire-and-forget notification payload published when an
// order changes state.
type OrderEvent struct {
	Type       string `json:"type"`
	OrderId    string `json:"order_id"`
	Cryptopair string `json:"cryptopair"`
	Side       Side   `json:"side"`
	LimitPrice int64  `json:"limit_price"`
	Volume     int64  `json:"volume"`
	Open       bool   `json:"open"`
	Canceled   bool   `json:"canceled"`
	Timestamp  int64  `json:"timestamp"`
}
