package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

func openOrder(id string, side models.Side, price, volume int64) models.OrderModel {
	return models.OrderModel{
		OrderId:        id,
		WalletId:       "w-" + id,
		AccountId:      "a-" + id,
		Cryptopair:     "BTC-LTC",
		BaseCurrency:   "BTC",
		QuoteCurrency:  "LTC",
		Side:           side,
		LimitPrice:     price,
		Volume:         volume,
		OriginalVolume: volume,
		Open:           true,
	}
}

func TestMemoryStoreMatchCandidatesFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AddOrder(ctx, openOrder("low", models.SideBuy, 9_000_000_000, 100)))
	require.NoError(t, store.AddOrder(ctx, openOrder("high", models.SideBuy, 11_000_000_000, 100)))
	require.NoError(t, store.AddOrder(ctx, openOrder("market", models.SideBuy, 0, 100)))

	markets, err := store.MatchCandidates(ctx, "BTC-LTC", models.SideBuy, CandidateFilter{MarketOnly: true})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "market", markets[0].OrderId)

	limits, err := store.MatchCandidates(ctx, "BTC-LTC", models.SideBuy, CandidateFilter{MinPrice: 10_000_000_000})
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, "high", limits[0].OrderId)

	bounded, err := store.MatchCandidates(ctx, "BTC-LTC", models.SideBuy, CandidateFilter{MinPrice: 1, MaxPrice: 10_000_000_000})
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	assert.Equal(t, "low", bounded[0].OrderId)
}

func TestMemoryStoreClosedOrderLeavesBook(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	orderInfo := openOrder("o1", models.SideSell, 10_000_000_000, 100)
	require.NoError(t, store.AddOrder(ctx, orderInfo))

	stored, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)

	stored.Open = false
	stored.Volume = 0
	require.NoError(t, store.UpdateOrder(ctx, *stored))

	candidates, err := store.MatchCandidates(ctx, "BTC-LTC", models.SideSell, CandidateFilter{MinPrice: 1})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// the document itself is never deleted
	kept, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, kept.Open)
}

func TestMemoryStoreExpiredOpenOrders(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC().UnixMilli()

	past := openOrder("past", models.SideBuy, 1, 100)
	past.TimeInForce = now - 1000
	future := openOrder("future", models.SideBuy, 1, 100)
	future.TimeInForce = now + 60_000
	gtc := openOrder("gtc", models.SideBuy, 1, 100)

	for _, orderInfo := range []models.OrderModel{past, future, gtc} {
		require.NoError(t, store.AddOrder(ctx, orderInfo))
	}

	expired, err := store.ExpiredOpenOrders(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "past", expired[0].OrderId)
}

func TestMemoryStoreTradeIdsAreMonotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var previous int64
	for i := 0; i < 5; i++ {
		created, err := store.AddTrade(ctx, models.TradeModel{Cryptopair: "BTC-LTC", Price: 10, Volume: 1})
		require.NoError(t, err)
		assert.Greater(t, created.Id, previous)
		previous = created.Id
	}

	since, err := store.TradesSince(ctx, "BTC-LTC", 3, 0)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(4), since[0].Id)
	assert.Equal(t, int64(5), since[1].Id)
}

func TestMemoryStoreAddTradeWithOrdersIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	orderInfo := openOrder("o1", models.SideSell, 10_000_000_000, 100)
	require.NoError(t, store.AddOrder(ctx, orderInfo))

	orderInfo.Volume = 0
	orderInfo.Open = false
	created, err := store.AddTradeWithOrders(ctx,
		models.TradeModel{Cryptopair: "BTC-LTC", Price: 10_000_000_000, Volume: 100}, orderInfo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Id)

	closed, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, closed.Open)

	candidates, err := store.MatchCandidates(ctx, "BTC-LTC", models.SideSell, CandidateFilter{MinPrice: 1})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// an unknown order fails the whole write, no trade is stored
	_, err = store.AddTradeWithOrders(ctx,
		models.TradeModel{Cryptopair: "BTC-LTC"}, openOrder("ghost", models.SideBuy, 1, 1))
	assert.ErrorIs(t, err, staticerr.ErrorOrderNotFound)

	_, err = store.GetTrade(ctx, 2)
	assert.ErrorIs(t, err, staticerr.ErrorTradeNotFound)
}

func TestMemoryStoreLegStateSelection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.AddTrade(ctx, models.TradeModel{
		Cryptopair:    "BTC-LTC",
		BaseCurrency:  "BTC",
		QuoteCurrency: "LTC",
		Volume:        100,
		BaseVolume:    10,
	})
	require.NoError(t, err)

	eligible, err := store.SettlementLegTrades(ctx, models.LegSellOut, "BTC")
	require.NoError(t, err)
	require.Len(t, eligible, 1)

	none, err := store.SettlementLegTrades(ctx, models.LegSellOut, "LTC")
	require.NoError(t, err)
	assert.Empty(t, none)

	created.AdvanceLeg(models.LegSellOut, models.SettledValid)
	created.AdvanceLeg(models.LegSellOut, models.SettledPending)
	require.NoError(t, store.UpdateTrade(ctx, *created))

	eligible, err = store.SettlementLegTrades(ctx, models.LegSellOut, "BTC")
	require.NoError(t, err)
	assert.Empty(t, eligible, "pending legs are no longer eligible")
}

func TestMemoryStoreLocks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.TryLockPair(ctx, "BTC-LTC", "t1"))
	assert.ErrorIs(t, store.TryLockPair(ctx, "BTC-LTC", "t2"), staticerr.ErrorResourceIsLocked)

	assert.ErrorIs(t, store.UnlockPair(ctx, "BTC-LTC", "t2"), staticerr.ErrorResourceIsLocked)
	require.NoError(t, store.UnlockPair(ctx, "BTC-LTC", "t1"))
	require.NoError(t, store.TryLockPair(ctx, "BTC-LTC", "t2"))

	require.NoError(t, store.TryLockSettlement(ctx, "run-1"))
	assert.ErrorIs(t, store.TryLockSettlement(ctx, "run-2"), staticerr.ErrorResourceIsLocked)
}

func TestMemoryStoreOrdersByAccountPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, id := range []string{"o1", "o2", "o3"} {
		orderInfo := openOrder(id, models.SideBuy, 10, 100)
		orderInfo.AccountId = "alice"
		orderInfo.Created = int64(1000 + i)
		require.NoError(t, store.AddOrder(ctx, orderInfo))
	}

	page, err := store.OrdersByAccount(ctx, "alice", OrderFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "o3", page[0].OrderId)

	rest, err := store.OrdersByAccount(ctx, "alice", OrderFilter{Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "o1", rest[0].OrderId)
}
