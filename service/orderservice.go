package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"exchange-core-service/audit"
	"exchange-core-service/config"
	"exchange-core-service/models"
	"exchange-core-service/staticerr"
	"exchange-core-service/storage"
	"exchange-core-service/utils"
)

type iOrderStorage interface {
	AddOrder(ctx context.Context, orderInfo models.OrderModel) error
	GetOrder(ctx context.Context, id string) (*models.OrderModel, error)
	UpdateOrder(ctx context.Context, orderInfo models.OrderModel) error
	MatchCandidates(ctx context.Context, cryptopair string, side models.Side, filter storage.CandidateFilter) ([]models.OrderModel, error)
	OpenLimitOrders(ctx context.Context, cryptopair string, side models.Side) ([]models.OrderModel, error)
	OpenOrdersByWallet(ctx context.Context, walletId string) ([]models.OrderModel, error)
	ExpiredOpenOrders(ctx context.Context, nowMillis int64) ([]models.OrderModel, error)
	OrdersByAccount(ctx context.Context, accountId string, filter storage.OrderFilter) ([]models.OrderModel, error)
}

type iTradeStorage interface {
	AddTradeWithOrders(ctx context.Context, tradeInfo models.TradeModel, orders ...models.OrderModel) (*models.TradeModel, error)
	GetTrade(ctx context.Context, id int64) (*models.TradeModel, error)
	UpdateTrade(ctx context.Context, tradeInfo models.TradeModel) error
	LastTrades(ctx context.Context, cryptopair string, limit int64) ([]models.TradeModel, error)
	TradesSince(ctx context.Context, cryptopair string, sinceId int64, limit int) ([]models.TradeModel, error)
	TradesInWindow(ctx context.Context, cryptopair string, fromMillis, toMillis int64) ([]models.TradeModel, error)
	TradesByLegState(ctx context.Context, leg models.TradeLeg, states ...models.SettlementStatus) ([]models.TradeModel, error)
	SettlementLegTrades(ctx context.Context, leg models.TradeLeg, currency string) ([]models.TradeModel, error)
}

type iLockStorage interface {
	TryLockPair(ctx context.Context, cryptopair string, token string) error
	UnlockPair(ctx context.Context, cryptopair string, token string) error
	TryLockAccount(ctx context.Context, accountId string, token string) error
	UnlockAccount(ctx context.Context, accountId string, token string) error
	TryLockSettlement(ctx context.Context, token string) error
	UnlockSettlement(ctx context.Context, token string) error
}

// PlaceOrderRequest carries the already-authenticated order parameters. The
// paying wallet is resolved from the account and the disposed currency.
type PlaceOrderRequest struct {
	AccountId   string
	Cryptopair  string
	Side        string
	LimitPrice  int64
	Volume      int64
	TimeInForce int64
}

// CancelOutcome reports what cancellation did, including the no-op cases.
type CancelOutcome struct {
	Order  models.OrderModel
	Status string
}

const (
	CancelStatusCanceled        = "canceled"
	CancelStatusAlreadyCanceled = "already_canceled"
	CancelStatusAlreadyFilled   = "already_filled"
)

type OrderService struct {
	orders   iOrderStorage
	trades   iTradeStorage
	locks    iLockStorage
	wallets  WalletDirectory
	matcher  *MatcherService
	balances *BalanceService
	fees     FeePolicy
	auditLog audit.Sink
	cfg      config.Config
}

func NewOrderService(orders iOrderStorage, trades iTradeStorage, locks iLockStorage, wallets WalletDirectory, matcher *MatcherService, balances *BalanceService, fees FeePolicy, auditLog audit.Sink, cfg config.Config) *OrderService {
	return &OrderService{
		orders:   orders,
		trades:   trades,
		locks:    locks,
		wallets:  wallets,
		matcher:  matcher,
		balances: balances,
		fees:     fees,
		auditLog: auditLog,
		cfg:      cfg,
	}
}

// PlaceOrder validates the request, checks the paying wallet can fund it,
// persists the order and runs matching. Locks are taken pair first, then
// account, so every placement acquires them in the same order.
func (o *OrderService) PlaceOrder(ctx context.Context, request PlaceOrderRequest) (*models.OrderModel, []models.TradeModel, error) {
	orderInfo, err := o.buildOrder(request)

	if err != nil {
		return nil, nil, err
	}

	wallet, err := o.wallets.WalletFor(ctx, request.AccountId, orderInfo.DisposedCurrency())

	if err != nil {
		return nil, nil, staticerr.ErrorWalletNotFound
	}

	orderInfo.WalletId = wallet.Id

	token := uuid.NewString()

	if err = o.locks.TryLockPair(ctx, orderInfo.Cryptopair, token); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := o.locks.UnlockPair(ctx, orderInfo.Cryptopair, token); err != nil {
			logrus.WithField("cryptopair", orderInfo.Cryptopair).Warningln("Unlock pair failed: ", err.Error())
		}
	}()

	if err = o.locks.TryLockAccount(ctx, request.AccountId, token); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := o.locks.UnlockAccount(ctx, request.AccountId, token); err != nil {
			logrus.WithField("accountId", request.AccountId).Warningln("Unlock account failed: ", err.Error())
		}
	}()

	required, err := o.requiredFunds(ctx, *orderInfo)

	if err != nil {
		return nil, nil, err
	}

	balance, err := o.balances.AvailableBalance(ctx, wallet.Id)

	if err != nil {
		return nil, nil, err
	}

	if balance.Trading < required {
		logrus.WithFields(logrus.Fields{
			"orderId":  orderInfo.OrderId,
			"walletId": wallet.Id}).Infoln("Insufficient trading balance, order rejected")
		return nil, nil, staticerr.ErrorInsufficientFunds
	}

	if err = o.orders.AddOrder(ctx, *orderInfo); err != nil {
		logrus.WithField("orderId", orderInfo.OrderId).Errorln("Order creation failed: ", err.Error())
		return nil, nil, err
	}

	o.auditLog.Append(ctx, token, "order", orderInfo.OrderId, "created", orderInfo.Cryptopair)
	logrus.WithField("orderId", orderInfo.OrderId).Infoln("Order created, run matching")

	trades, err := o.matcher.Match(ctx, orderInfo)

	if err != nil {
		return nil, nil, err
	}

	return orderInfo, trades, nil
}

func (o *OrderService) buildOrder(request PlaceOrderRequest) (*models.OrderModel, error) {
	pair, err := o.cfg.PairInfo(request.Cryptopair)

	if err != nil {
		return nil, err
	}

	side, err := models.ParseSide(request.Side)

	if err != nil {
		return nil, err
	}

	if request.Volume <= 0 {
		return nil, staticerr.ErrorInvalidVolume
	}

	if request.LimitPrice < 0 {
		return nil, staticerr.ErrorInvalidLimitPrice
	}

	now := time.Now().UTC().UnixMilli()

	if request.TimeInForce < 0 || (request.TimeInForce > 0 && request.TimeInForce <= now) {
		return nil, staticerr.ErrorInvalidTimeInForce
	}

	return &models.OrderModel{
		OrderId:        uuid.NewString(),
		AccountId:      request.AccountId,
		Cryptopair:     request.Cryptopair,
		BaseCurrency:   pair.Base,
		QuoteCurrency:  pair.Quote,
		Side:           side,
		LimitPrice:     request.LimitPrice,
		Volume:         request.Volume,
		OriginalVolume: request.Volume,
		Fee:            o.fees.TradeFee(request.AccountId, request.Volume),
		TimeInForce:    request.TimeInForce,
		Open:           true,
		Created:        now,
		Modified:       now,
	}, nil
}

// requiredFunds is the amount the paying wallet must cover: the quote volume
// for buys, the base equivalent for sells. A market sell prices against the
// last trade of the pair.
func (o *OrderService) requiredFunds(ctx context.Context, orderInfo models.OrderModel) (int64, error) {
	if orderInfo.Side == models.SideBuy {
		return orderInfo.Volume, nil
	}

	price := orderInfo.LimitPrice

	if price == 0 {
		last, err := o.trades.LastTrades(ctx, orderInfo.Cryptopair, 1)
		if err != nil {
			return 0, err
		}
		if len(last) == 0 {
			return 0, staticerr.ErrorUnpriceableMatch
		}
		price = last[0].Price
	}

	return utils.ConvertQuoteToBase(orderInfo.Volume, price), nil
}

// CancelOrder closes an open order on behalf of its owner. Repeated
// cancellation is a reported no-op, never an error.
func (o *OrderService) CancelOrder(ctx context.Context, orderId string, accountId string) (*CancelOutcome, error) {
	if _, err := uuid.Parse(orderId); err != nil {
		return nil, staticerr.ErrorInvalidOrderId
	}

	orderInfo, err := o.orders.GetOrder(ctx, orderId)

	if err != nil {
		return nil, err
	}

	if orderInfo.AccountId != accountId {
		return nil, staticerr.ErrorNotOrderOwner
	}

	token := uuid.NewString()

	if err = o.locks.TryLockPair(ctx, orderInfo.Cryptopair, token); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.locks.UnlockPair(ctx, orderInfo.Cryptopair, token); err != nil {
			logrus.WithField("cryptopair", orderInfo.Cryptopair).Warningln("Unlock pair failed: ", err.Error())
		}
	}()

	orderInfo, err = o.orders.GetOrder(ctx, orderId)

	if err != nil {
		return nil, err
	}

	if !orderInfo.Open {
		status := CancelStatusAlreadyFilled
		if orderInfo.Canceled {
			status = CancelStatusAlreadyCanceled
		}
		return &CancelOutcome{Order: *orderInfo, Status: status}, nil
	}

	orderInfo.Open = false
	orderInfo.Canceled = true

	if err = o.orders.UpdateOrder(ctx, *orderInfo); err != nil {
		return nil, err
	}

	o.auditLog.Append(ctx, token, "order", orderInfo.OrderId, "canceled", "")
	logrus.WithField("orderId", orderInfo.OrderId).Infoln("Order canceled")

	return &CancelOutcome{Order: *orderInfo, Status: CancelStatusCanceled}, nil
}

// OrderHistory lists an account's orders, newest first.
func (o *OrderService) OrderHistory(ctx context.Context, accountId string, filter storage.OrderFilter) ([]models.OrderModel, error) {
	return o.orders.OrdersByAccount(ctx, accountId, filter)
}

// TradeHistory lists the account's fills on one pair after the given trade
// id cursor, oldest first.
func (o *OrderService) TradeHistory(ctx context.Context, accountId string, cryptopair string, sinceId int64, limit int) ([]models.TradeModel, error) {
	if _, err := o.cfg.PairInfo(cryptopair); err != nil {
		return nil, err
	}

	trades, err := o.trades.TradesSince(ctx, cryptopair, sinceId, 0)

	if err != nil {
		return nil, err
	}

	own := trades[:0]
	for _, tradeInfo := range trades {
		if tradeInfo.BuyAccountId != accountId && tradeInfo.SellAccountId != accountId {
			continue
		}
		own = append(own, tradeInfo)
		if limit > 0 && len(own) == limit {
			break
		}
	}

	return own, nil
}
