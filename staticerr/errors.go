package staticerr

import "errors"

var (
	ErrorRabbitConnectionFail = errors.New("RabbitUnavailable")
	ErrorResourceIsLocked     = errors.New("ResourceIsLocked")
	ErrorSettlementRunning    = errors.New("SettlementAlreadyRunning")

	ErrorInvalidSide        = errors.New("InvalidSide")
	ErrorUnknownPair        = errors.New("UnknownCryptopair")
	ErrorInvalidVolume      = errors.New("InvalidVolume")
	ErrorInvalidLimitPrice  = errors.New("InvalidLimitPrice")
	ErrorInvalidTimeInForce = errors.New("InvalidTimeInForce")
	ErrorInvalidOrderId     = errors.New("InvalidOrderId")

	ErrorInsufficientFunds = errors.New("InsufficientFunds")
	ErrorWalletNotFound    = errors.New("WalletNotFound")
	ErrorOrderNotFound     = errors.New("OrderNotFound")
	ErrorTradeNotFound     = errors.New("TradeNotFound")
	ErrorNotOrderOwner     = errors.New("NotOrderOwner")
	ErrorOrderNotOpen      = errors.New("OrderNotOpen")
	ErrorOrderExpired      = errors.New("OrderExpired")

	ErrorSelfTrade        = errors.New("SelfTradeRejected")
	ErrorUnpriceableMatch = errors.New("UnpriceableMatch")
	ErrorStockBookIsEmpty = errors.New("StockBookIsEmpty")

	ErrorSettlementAborted = errors.New("SettlementAborted")
	ErrorUnbalancedLedger  = errors.New("UnbalancedLedger")
	ErrorChainUnavailable  = errors.New("ChainUnavailable")
)
