package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

func TestOrderBookSnapshotGroupsAndSortsLevels(t *testing.T) {
	core := newTestCore()
	core.fundWallet("carol", "BTC", 1_000_000_000_000)
	core.fundWallet("carol", "LTC", 1_000_000_000_000)

	_, _, err := core.place(buyRequest("alice", 100_000, 9_000_000_000))
	require.NoError(t, err)
	_, _, err = core.place(buyRequest("alice", 50_000, 10_000_000_000))
	require.NoError(t, err)
	_, _, err = core.place(PlaceOrderRequest{
		AccountId:  "carol",
		Cryptopair: "BTC-LTC",
		Side:       "buy",
		LimitPrice: 10_000_000_000,
		Volume:     70_000,
	})
	require.NoError(t, err)
	_, _, err = core.place(sellRequest("bob", 100_000, 12_000_000_000))
	require.NoError(t, err)
	_, _, err = core.place(sellRequest("bob", 100_000, 11_000_000_000))
	require.NoError(t, err)

	book, err := core.market.OrderBook(context.Background(), "BTC-LTC")
	require.NoError(t, err)

	require.Len(t, book.Bids, 2)
	assert.Equal(t, models.BookEntry{10_000_000_000, 120_000}, book.Bids[0])
	assert.Equal(t, models.BookEntry{9_000_000_000, 100_000}, book.Bids[1])

	require.Len(t, book.Asks, 2)
	assert.Equal(t, models.BookEntry{11_000_000_000, 100_000}, book.Asks[0])
	assert.Equal(t, models.BookEntry{12_000_000_000, 100_000}, book.Asks[1])
}

func TestOrderBookExcludesMarketOrders(t *testing.T) {
	core := newTestCore()

	marketOrder := models.OrderModel{
		OrderId:        "33333333-3333-3333-3333-333333333333",
		WalletId:       "alice-LTC",
		AccountId:      "alice",
		Cryptopair:     "BTC-LTC",
		BaseCurrency:   "BTC",
		QuoteCurrency:  "LTC",
		Side:           models.SideBuy,
		Volume:         100_000,
		OriginalVolume: 100_000,
		Open:           true,
	}
	require.NoError(t, core.store.AddOrder(context.Background(), marketOrder))

	book, err := core.market.OrderBook(context.Background(), "BTC-LTC")
	require.NoError(t, err)
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
}

func TestOrderBookUnknownPair(t *testing.T) {
	core := newTestCore()

	_, err := core.market.OrderBook(context.Background(), "BTC-USD")
	assert.ErrorIs(t, err, staticerr.ErrorUnknownPair)
}

func TestExpiredOrderLeavesSnapshotAndSweepCancelsIt(t *testing.T) {
	core := newTestCore()

	expired := models.OrderModel{
		OrderId:        "44444444-4444-4444-4444-444444444444",
		WalletId:       "alice-LTC",
		AccountId:      "alice",
		Cryptopair:     "BTC-LTC",
		BaseCurrency:   "BTC",
		QuoteCurrency:  "LTC",
		Side:           models.SideBuy,
		LimitPrice:     10_000_000_000,
		Volume:         100_000,
		OriginalVolume: 100_000,
		TimeInForce:    time.Now().UTC().UnixMilli() - 1000,
		Open:           true,
	}
	require.NoError(t, core.store.AddOrder(context.Background(), expired))

	book, err := core.market.OrderBook(context.Background(), "BTC-LTC")
	require.NoError(t, err)
	assert.Empty(t, book.Bids, "expired order must not be visible before the sweep")

	closed, err := core.sweep.ExpireOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, err := core.store.GetOrder(context.Background(), expired.OrderId)
	require.NoError(t, err)
	assert.False(t, stored.Open)
	assert.True(t, stored.Canceled)

	require.Len(t, core.notifier.orders, 1)
	assert.Equal(t, "order_expired", core.notifier.orders[0].Type)

	closed, err = core.sweep.ExpireOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed, "sweep is idempotent")
}

func TestTickerSummarizesTradesAndBook(t *testing.T) {
	core := newTestCore()

	_, _, err := core.place(buyRequest("alice", 100_000, 10_000_000_000))
	require.NoError(t, err)
	_, trades, err := core.place(sellRequest("bob", 100_000, 10_000_000_000))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	_, _, err = core.place(buyRequest("alice", 100_000, 11_000_000_000))
	require.NoError(t, err)
	_, trades, err = core.place(sellRequest("bob", 100_000, 11_000_000_000))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	_, _, err = core.place(buyRequest("alice", 50_000, 9_000_000_000))
	require.NoError(t, err)
	_, _, err = core.place(sellRequest("bob", 50_000, 13_000_000_000))
	require.NoError(t, err)

	ticker, err := core.market.Ticker(context.Background(), "BTC-LTC")
	require.NoError(t, err)

	assert.Equal(t, int64(11_000_000_000), ticker.LastPrice)
	assert.Equal(t, int64(1_000_000_000), ticker.PriceDelta)
	assert.Equal(t, int64(11_000_000_000), ticker.High24h)
	assert.Equal(t, int64(10_000_000_000), ticker.Low24h)
	assert.Equal(t, int64(200_000), ticker.Volume24h)
	assert.Equal(t, int64(9_000_000_000), ticker.BestBid)
	assert.Equal(t, int64(13_000_000_000), ticker.BestAsk)
}
