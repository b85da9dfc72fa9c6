package service

// FeePolicy prices the exchange's cut of a fill. Volume is always the traded
// quote-currency volume of the single trade, not the order's full size.
type FeePolicy interface {
	TradeFee(accountId string, volume int64) int64
}

// FlatFeePolicy charges a fixed number of basis points of traded quote
// volume, rounded down.
type FlatFeePolicy struct {
	BasisPoints int64
}

func (p FlatFeePolicy) TradeFee(accountId string, volume int64) int64 {
	return volume * p.BasisPoints / 10000
}
