package models

// LedgerEntry is the settlement engine's working record of one side of an
// unsettled trade leg: a negative volume debits the wallet, a positive volume
// credits it net of fee. The fee accrues to the exchange pseudo-wallet.
type LedgerEntry struct {
	Currency string
	WalletId string
	TradeId  int64
	Leg      TradeLeg
	Volume   int64
	Fee      int64
}

// Debit reports whether the entry moves money out of the wallet.
func (e LedgerEntry) Debit() bool {
	return e.Volume < 0
}
