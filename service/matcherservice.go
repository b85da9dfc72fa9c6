package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"exchange-core-service/audit"
	"exchange-core-service/models"
	"exchange-core-service/staticerr"
	"exchange-core-service/storage"
	"exchange-core-service/utils"
)

type MatcherService struct {
	orders   iOrderStorage
	trades   iTradeStorage
	fees     FeePolicy
	notifier Notifier
	auditLog audit.Sink
}

func NewMatcherService(orders iOrderStorage, trades iTradeStorage, fees FeePolicy, notifier Notifier, auditLog audit.Sink) *MatcherService {
	return &MatcherService{
		orders:   orders,
		trades:   trades,
		fees:     fees,
		notifier: notifier,
		auditLog: auditLog,
	}
}

// Match runs the incoming order against the opposite book under the caller's
// pair lock: first resting market orders oldest first, then limit orders.
// The two passes repeat until a full round produces no trade, so a market
// candidate skipped as unpriceable gets retried once a fill in the same run
// establishes a last-trade price. The incoming order is mutated and persisted
// as fills happen. Trades are returned oldest match first.
func (m *MatcherService) Match(ctx context.Context, incoming *models.OrderModel) ([]models.TradeModel, error) {
	var produced []models.TradeModel

	for incoming.Open && incoming.Volume > 0 {
		before := len(produced)

		var err error
		produced, err = m.marketPass(ctx, incoming, produced)

		if err != nil {
			return produced, err
		}

		if incoming.Open {
			produced, err = m.limitPass(ctx, incoming, produced)

			if err != nil {
				return produced, err
			}
		}

		if len(produced) == before {
			break
		}
	}

	return produced, nil
}

func (m *MatcherService) marketPass(ctx context.Context, incoming *models.OrderModel, produced []models.TradeModel) ([]models.TradeModel, error) {
	candidates, err := m.orders.MatchCandidates(ctx, incoming.Cryptopair, incoming.Side.Opposite(), storage.CandidateFilter{MarketOnly: true})

	if err != nil {
		return produced, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Created < candidates[j].Created })

	return m.runPass(ctx, incoming, candidates, produced)
}

func (m *MatcherService) limitPass(ctx context.Context, incoming *models.OrderModel, produced []models.TradeModel) ([]models.TradeModel, error) {
	candidates, err := m.orders.MatchCandidates(ctx, incoming.Cryptopair, incoming.Side.Opposite(), m.limitFilter(*incoming))

	if err != nil {
		return produced, err
	}

	sortLimitCandidates(candidates)

	return m.runPass(ctx, incoming, candidates, produced)
}

// limitFilter bounds the opposite book by the incoming limit price: a sell
// crosses bids at or above it, a buy crosses asks at or below it. A market
// order crosses the whole book.
func (m *MatcherService) limitFilter(incoming models.OrderModel) storage.CandidateFilter {
	filter := storage.CandidateFilter{MinPrice: 1}

	if incoming.Market() {
		return filter
	}

	if incoming.Side == models.SideSell {
		filter.MinPrice = incoming.LimitPrice
	} else {
		filter.MaxPrice = incoming.LimitPrice
	}

	return filter
}

// sortLimitCandidates orders candidates by limit price descending, creation
// ascending among ties. Both sides use the same ordering: the filter decides
// which prices are reachable, the sort decides who goes first.
func sortLimitCandidates(candidates []models.OrderModel) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LimitPrice != candidates[j].LimitPrice {
			return candidates[i].LimitPrice > candidates[j].LimitPrice
		}
		return candidates[i].Created < candidates[j].Created
	})
}

func (m *MatcherService) runPass(ctx context.Context, incoming *models.OrderModel, candidates []models.OrderModel, produced []models.TradeModel) ([]models.TradeModel, error) {
	for i := range candidates {
		if !incoming.Open || incoming.Volume == 0 {
			break
		}

		tradeInfo, err := m.attemptMatch(ctx, incoming, &candidates[i])

		if err != nil {
			return produced, err
		}

		if tradeInfo != nil {
			produced = append(produced, *tradeInfo)
		}
	}

	return produced, nil
}

// attemptMatch tries one candidate. A nil trade with nil error means the
// candidate was skipped and matching continues.
func (m *MatcherService) attemptMatch(ctx context.Context, incoming, candidate *models.OrderModel) (*models.TradeModel, error) {
	if incoming.AccountId == candidate.AccountId {
		logrus.WithFields(logrus.Fields{
			"orderId":   incoming.OrderId,
			"candidate": candidate.OrderId}).Infoln("Self trade rejected, skipping")
		return nil, nil
	}

	now := time.Now().UTC().UnixMilli()

	if candidate.Expired(now) {
		logrus.WithField("candidate", candidate.OrderId).Infoln("Resting order expired, skipping")
		return nil, nil
	}

	price, err := m.resolvePrice(ctx, *incoming, *candidate)

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"orderId":   incoming.OrderId,
			"candidate": candidate.OrderId}).Infoln("Cannot price match, skipping")
		return nil, nil
	}

	tradeVolume := utils.Min(incoming.Volume, candidate.Volume)
	baseVolume := utils.ConvertQuoteToBase(tradeVolume, price)

	if baseVolume <= 0 {
		return nil, nil
	}

	buyOrder, sellOrder := incoming, candidate
	if incoming.Side == models.SideSell {
		buyOrder, sellOrder = candidate, incoming
	}

	tradeInfo := models.TradeModel{
		BuyOrderId:    buyOrder.OrderId,
		SellOrderId:   sellOrder.OrderId,
		BuyWalletId:   buyOrder.WalletId,
		SellWalletId:  sellOrder.WalletId,
		BuyAccountId:  buyOrder.AccountId,
		SellAccountId: sellOrder.AccountId,
		Cryptopair:    incoming.Cryptopair,
		BaseCurrency:  incoming.BaseCurrency,
		QuoteCurrency: incoming.QuoteCurrency,
		Price:         price,
		Volume:        tradeVolume,
		BaseVolume:    baseVolume,
		BuyFee:        m.fees.TradeFee(buyOrder.AccountId, tradeVolume),
		SellFee:       m.fees.TradeFee(sellOrder.AccountId, tradeVolume),
		Created:       now,
	}

	for _, orderInfo := range []*models.OrderModel{incoming, candidate} {
		orderInfo.Volume -= tradeVolume
		orderInfo.Filled++
		if orderInfo.Volume == 0 {
			orderInfo.Open = false
		}
	}

	created, err := m.trades.AddTradeWithOrders(ctx, tradeInfo, *incoming, *candidate)

	if err != nil {
		return nil, err
	}

	m.auditLog.Append(ctx, uuid.NewString(), "trade", strconv.FormatInt(created.Id, 10), "matched", created.Cryptopair)
	m.notifier.PublishTrade(ctx, models.TradeEvent{
		Type:    "trade",
		Symbol:  created.Cryptopair,
		TradeId: created.Id,
		Base:    models.TradeEventLeg{Symbol: created.BaseCurrency, Volume: created.BaseVolume},
		Quote: models.TradeEventQuote{
			Symbol: created.QuoteCurrency,
			Price:  created.Price,
			Volume: created.Volume,
		},
		Timestamp: created.Created,
	})

	logrus.WithFields(logrus.Fields{
		"tradeId":     created.Id,
		"buyOrderId":  created.BuyOrderId,
		"sellOrderId": created.SellOrderId}).Infoln("Trade created")

	return created, nil
}

// resolvePrice picks the candidate's limit price, then the incoming order's,
// then the last trade of the pair. A market against market with no history
// cannot be priced.
func (m *MatcherService) resolvePrice(ctx context.Context, incoming, candidate models.OrderModel) (int64, error) {
	if candidate.LimitPrice > 0 {
		return candidate.LimitPrice, nil
	}

	if incoming.LimitPrice > 0 {
		return incoming.LimitPrice, nil
	}

	last, err := m.trades.LastTrades(ctx, incoming.Cryptopair, 1)

	if err != nil {
		return 0, err
	}

	if len(last) == 0 {
		return 0, staticerr.ErrorUnpriceableMatch
	}

	return last[0].Price, nil
}
