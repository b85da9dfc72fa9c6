package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

const (
	tradesHashKey    = "trades"
	tradesIdKey      = "trades:id"
	tradesPairKey    = "trades:pair:"
	tradesCreatedKey = "trades:created:"
	tradesLegKey     = "trades:leg:%s:%d"
)

var allTradeLegs = []models.TradeLeg{
	models.LegBuyIn, models.LegBuyOut, models.LegSellIn, models.LegSellOut,
}

var allSettlementStates = []models.SettlementStatus{
	models.SettledNone, models.SettledValid, models.SettledError,
	models.SettledPending, models.SettledComplete,
}

func legStateKey(leg models.TradeLeg, state models.SettlementStatus) string {
	return fmt.Sprintf(tradesLegKey, leg, state)
}

// AddTrade assigns the next trade id from the shared counter and writes the
// trade together with its pair, time window and leg-state indexes.
func (s *RedisStore) AddTrade(ctx context.Context, tradeInfo models.TradeModel) (*models.TradeModel, error) {
	created, err := s.stampTrade(ctx, tradeInfo)

	if err != nil {
		return nil, err
	}

	tx := s.client.performTx(ctx)
	if err = queueTradeWrite(ctx, &tx, *created); err != nil {
		return nil, err
	}

	if err = tx.execTx(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// AddTradeWithOrders writes the trade and the orders it touched in a single
// transaction. The matcher uses it so a trade never lands without the volume
// decrement on both sides.
func (s *RedisStore) AddTradeWithOrders(ctx context.Context, tradeInfo models.TradeModel, orders ...models.OrderModel) (*models.TradeModel, error) {
	created, err := s.stampTrade(ctx, tradeInfo)

	if err != nil {
		return nil, err
	}

	tx := s.client.performTx(ctx)
	if err = queueTradeWrite(ctx, &tx, *created); err != nil {
		return nil, err
	}

	for _, orderInfo := range orders {
		if err = queueOrderUpdate(ctx, &tx, orderInfo, created.Modified); err != nil {
			return nil, err
		}
	}

	if err = tx.execTx(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (s *RedisStore) stampTrade(ctx context.Context, tradeInfo models.TradeModel) (*models.TradeModel, error) {
	id, err := s.client.increment(ctx, tradesIdKey)

	if err != nil {
		return nil, err
	}

	tradeInfo.Id = id
	if tradeInfo.Created == 0 {
		tradeInfo.Created = time.Now().UTC().UnixMilli()
	}
	tradeInfo.Modified = tradeInfo.Created

	return &tradeInfo, nil
}

func queueTradeWrite(ctx context.Context, tx *TxContainer, tradeInfo models.TradeModel) error {
	jsonData, err := json.Marshal(tradeInfo)

	if err != nil {
		return errors.Wrap(err, "marshal trade")
	}

	member := strconv.FormatInt(tradeInfo.Id, 10)

	tx.addInHash(ctx, tradesHashKey, member, jsonData).
		addInZSet(ctx, tradesPairKey+tradeInfo.Cryptopair, member, float64(tradeInfo.Id)).
		addInZSet(ctx, tradesCreatedKey+tradeInfo.Cryptopair, member, float64(tradeInfo.Created))

	for _, leg := range allTradeLegs {
		tx.addInSet(ctx, legStateKey(leg, tradeInfo.LegStatus(leg)), member)
	}

	return nil
}

func (s *RedisStore) GetTrade(ctx context.Context, id int64) (*models.TradeModel, error) {
	jsonData, err := s.client.getFromHash(ctx, tradesHashKey, strconv.FormatInt(id, 10))

	if err != nil {
		return nil, staticerr.ErrorTradeNotFound
	}

	var tradeInfo models.TradeModel

	if err = json.Unmarshal([]byte(*jsonData), &tradeInfo); err != nil {
		return nil, errors.Wrap(err, "unmarshal trade")
	}

	return &tradeInfo, nil
}

// UpdateTrade rewrites the trade document and moves each leg to the set of
// its current settlement state.
func (s *RedisStore) UpdateTrade(ctx context.Context, tradeInfo models.TradeModel) error {
	tradeInfo.Modified = time.Now().UTC().UnixMilli()

	jsonData, err := json.Marshal(tradeInfo)

	if err != nil {
		return errors.Wrap(err, "marshal trade")
	}

	member := strconv.FormatInt(tradeInfo.Id, 10)

	tx := s.client.performTx(ctx)
	tx.addInHash(ctx, tradesHashKey, member, jsonData)

	for _, leg := range allTradeLegs {
		current := tradeInfo.LegStatus(leg)
		for _, state := range allSettlementStates {
			if state != current {
				tx.removeFromSet(ctx, legStateKey(leg, state), member)
			}
		}
		tx.addInSet(ctx, legStateKey(leg, current), member)
	}

	return tx.execTx(ctx)
}

func (s *RedisStore) loadTrades(ctx context.Context, ids []string) ([]models.TradeModel, error) {
	docs, err := s.client.getManyFromHash(ctx, tradesHashKey, ids)

	if err != nil {
		return nil, err
	}

	trades := make([]models.TradeModel, 0, len(docs))
	for _, doc := range docs {
		var tradeInfo models.TradeModel
		if err = json.Unmarshal([]byte(doc), &tradeInfo); err != nil {
			return nil, errors.Wrap(err, "unmarshal trade")
		}
		trades = append(trades, tradeInfo)
	}

	return trades, nil
}

// LastTrades returns the most recent trades of a pair, newest first.
func (s *RedisStore) LastTrades(ctx context.Context, cryptopair string, limit int64) ([]models.TradeModel, error) {
	if limit <= 0 {
		limit = 1
	}

	ids, err := s.client.getRevRange(ctx, tradesPairKey+cryptopair, 0, limit-1)

	if err != nil {
		return nil, err
	}

	return s.loadTrades(ctx, ids)
}

// TradesSince returns trades of a pair with id strictly greater than the
// cursor, oldest first. The trade id is the only pagination cursor.
func (s *RedisStore) TradesSince(ctx context.Context, cryptopair string, sinceId int64, limit int) ([]models.TradeModel, error) {
	ids, err := s.client.getRangeByScore(ctx, tradesPairKey+cryptopair,
		fmt.Sprintf("(%d", sinceId), "+inf")

	if err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	return s.loadTrades(ctx, ids)
}

// TradesInWindow returns the trades of a pair created inside [from, to],
// oldest first.
func (s *RedisStore) TradesInWindow(ctx context.Context, cryptopair string, fromMillis, toMillis int64) ([]models.TradeModel, error) {
	ids, err := s.client.getRangeByScore(ctx, tradesCreatedKey+cryptopair,
		strconv.FormatInt(fromMillis, 10), strconv.FormatInt(toMillis, 10))

	if err != nil {
		return nil, err
	}

	return s.loadTrades(ctx, ids)
}

// TradesByLegState returns trades whose given leg currently sits in any of
// the given states, ordered by creation time then id.
func (s *RedisStore) TradesByLegState(ctx context.Context, leg models.TradeLeg, states ...models.SettlementStatus) ([]models.TradeModel, error) {
	keys := make([]string, 0, len(states))
	for _, state := range states {
		keys = append(keys, legStateKey(leg, state))
	}

	ids, err := s.client.getFromSet(ctx, keys...)

	if err != nil {
		return nil, err
	}

	trades, err := s.loadTrades(ctx, ids)

	if err != nil {
		return nil, err
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Created != trades[j].Created {
			return trades[i].Created < trades[j].Created
		}
		return trades[i].Id < trades[j].Id
	})

	return trades, nil
}

// SettlementLegTrades returns trades of one currency whose leg is eligible
// for the next settlement batch, meaning unsettled or already validated,
// oldest first. Base currency moves on the sell-out and buy-in legs, quote
// currency on the buy-out and sell-in legs.
func (s *RedisStore) SettlementLegTrades(ctx context.Context, leg models.TradeLeg, currency string) ([]models.TradeModel, error) {
	trades, err := s.TradesByLegState(ctx, leg, models.SettledNone, models.SettledValid)

	if err != nil {
		return nil, err
	}

	matching := trades[:0]
	for _, tradeInfo := range trades {
		if legCurrency(tradeInfo, leg) == currency {
			matching = append(matching, tradeInfo)
		}
	}

	return matching, nil
}

func legCurrency(tradeInfo models.TradeModel, leg models.TradeLeg) string {
	switch leg {
	case models.LegSellOut, models.LegBuyIn:
		return tradeInfo.BaseCurrency
	default:
		return tradeInfo.QuoteCurrency
	}
}
