package service

import (
	"context"
	"sort"
	"time"

	"exchange-core-service/config"
	"exchange-core-service/models"
)

// MarketDataService serves the public read views: order-book snapshots and
// the per-pair ticker. Only limit orders are visible; market orders carry no
// price and never appear.
type MarketDataService struct {
	orders iOrderStorage
	trades iTradeStorage
	cfg    config.Config
}

func NewMarketDataService(orders iOrderStorage, trades iTradeStorage, cfg config.Config) *MarketDataService {
	return &MarketDataService{orders: orders, trades: trades, cfg: cfg}
}

// OrderBook aggregates open limit orders into price levels, bids descending
// and asks ascending. Expired orders the sweep has not yet closed are
// excluded.
func (m *MarketDataService) OrderBook(ctx context.Context, cryptopair string) (*models.BookSnapshot, error) {
	if _, err := m.cfg.PairInfo(cryptopair); err != nil {
		return nil, err
	}

	now := time.Now().UTC().UnixMilli()

	bids, err := m.bookSide(ctx, cryptopair, models.SideBuy, now)

	if err != nil {
		return nil, err
	}

	asks, err := m.bookSide(ctx, cryptopair, models.SideSell, now)

	if err != nil {
		return nil, err
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i][0] > bids[j][0] })
	sort.Slice(asks, func(i, j int) bool { return asks[i][0] < asks[j][0] })

	return &models.BookSnapshot{Cryptopair: cryptopair, Bids: bids, Asks: asks}, nil
}

func (m *MarketDataService) bookSide(ctx context.Context, cryptopair string, side models.Side, nowMillis int64) ([]models.BookEntry, error) {
	orders, err := m.orders.OpenLimitOrders(ctx, cryptopair, side)

	if err != nil {
		return nil, err
	}

	levels := make(map[int64]int64)

	for _, orderInfo := range orders {
		if orderInfo.Expired(nowMillis) {
			continue
		}
		levels[orderInfo.LimitPrice] += orderInfo.Volume
	}

	entries := make([]models.BookEntry, 0, len(levels))
	for price, volume := range levels {
		entries = append(entries, models.BookEntry{price, volume})
	}

	return entries, nil
}

// Ticker summarizes the last trade, the rolling 24h window and the current
// best bid and ask of a pair.
func (m *MarketDataService) Ticker(ctx context.Context, cryptopair string) (*models.Ticker, error) {
	if _, err := m.cfg.PairInfo(cryptopair); err != nil {
		return nil, err
	}

	now := time.Now().UTC().UnixMilli()

	ticker := &models.Ticker{Cryptopair: cryptopair, Timestamp: now}

	last, err := m.trades.LastTrades(ctx, cryptopair, 2)

	if err != nil {
		return nil, err
	}

	if len(last) > 0 {
		ticker.LastPrice = last[0].Price
	}
	if len(last) > 1 {
		ticker.PriceDelta = last[0].Price - last[1].Price
	}

	window, err := m.trades.TradesInWindow(ctx, cryptopair, now-24*time.Hour.Milliseconds(), now)

	if err != nil {
		return nil, err
	}

	for _, tradeInfo := range window {
		if ticker.Low24h == 0 || tradeInfo.Price < ticker.Low24h {
			ticker.Low24h = tradeInfo.Price
		}
		if tradeInfo.Price > ticker.High24h {
			ticker.High24h = tradeInfo.Price
		}
		ticker.Volume24h += tradeInfo.Volume
		ticker.BaseVol24h += tradeInfo.BaseVolume
	}

	book, err := m.OrderBook(ctx, cryptopair)

	if err != nil {
		return nil, err
	}

	if len(book.Bids) > 0 {
		ticker.BestBid = book.Bids[0][0]
	}
	if len(book.Asks) > 0 {
		ticker.BestAsk = book.Asks[0][0]
	}

	return ticker, nil
}
