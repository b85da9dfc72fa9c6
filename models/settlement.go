package models

// SettlementStatus tracks one leg of a trade on its way to the blockchain.
// Legs only move forward: NONE -> VALID -> PENDING -> COMPLETE. ERROR can
// override any non-complete state and is terminal until an operator clears it.
type SettlementStatus int

const (
	SettledNone SettlementStatus = iota
	SettledValid
	SettledError
	SettledPending
	SettledComplete
)

var settlementRank = map[SettlementStatus]int{
	SettledNone:     0,
	SettledValid:    1,
	SettledPending:  2,
	SettledComplete: 3,
}

func (s SettlementStatus) String() string {
	switch s {
	case SettledNone:
		return "none"
	case SettledValid:
		return "valid"
	case SettledError:
		return "error"
	case SettledPending:
		return "pending"
	case SettledComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Advance returns the state after requesting a transition to target, and
// whether the transition is legal. Re-requesting the current state is a
// legal no-op, so settlement batches can be re-run safely.
func (s SettlementStatus) Advance(target SettlementStatus) (SettlementStatus, bool) {
	if target == SettledError {
		if s == SettledComplete {
			return s, false
		}
		return SettledError, true
	}

	if s == SettledError {
		return s, false
	}

	current, ok := settlementRank[s]
	if !ok {
		return s, false
	}
	next, ok := settlementRank[target]
	if !ok {
		return s, false
	}

	if next == current {
		return s, true
	}
	if next == current+1 {
		return target, true
	}
	return s, false
}

// TradeLeg names one of the four independent settlement obligations of a
// trade: each of the buy and sell orders moves money out of one wallet and
// into another.
type TradeLeg int

const (
	LegBuyIn TradeLeg = iota + 1
	LegBuyOut
	LegSellIn
	LegSellOut
)

func (l TradeLeg) String() string {
	switch l {
	case LegBuyIn:
		return "buy_settled_in"
	case LegBuyOut:
		return "buy_settled_out"
	case LegSellIn:
		return "sell_settled_in"
	case LegSellOut:
		return "sell_settled_out"
	default:
		return "unknown"
	}
}

// Side reports which order of the trade the leg belongs to.
func (l TradeLeg) Side() Side {
	if l == LegBuyIn || l == LegBuyOut {
		return SideBuy
	}
	return SideSell
}
