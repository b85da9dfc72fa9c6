package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

const (
	ordersHashKey        = "orders"
	ordersAccountKey     = "orders:account:"
	ordersWalletOpenKey  = "orders:wallet:"
	ordersExpirationKey  = "orders:expire"
	ordersBookPriceKey   = "orders:book:%s:%d:price"
	ordersBookCreatedKey = "orders:book:%s:%d:created"
)

func bookPriceKey(cryptopair string, side models.Side) string {
	return fmt.Sprintf(ordersBookPriceKey, cryptopair, side)
}

func bookCreatedKey(cryptopair string, side models.Side) string {
	return fmt.Sprintf(ordersBookCreatedKey, cryptopair, side)
}

func (s *RedisStore) AddOrder(ctx context.Context, orderInfo models.OrderModel) error {
	now := time.Now().UTC().UnixMilli()
	if orderInfo.Created == 0 {
		orderInfo.Created = now
	}
	if orderInfo.Modified == 0 {
		orderInfo.Modified = now
	}

	jsonData, err := json.Marshal(orderInfo)

	if err != nil {
		return errors.Wrap(err, "marshal order")
	}

	tx := s.client.performTx(ctx)
	tx.addInHash(ctx, ordersHashKey, orderInfo.OrderId, jsonData).
		addInSet(ctx, ordersAccountKey+orderInfo.AccountId, orderInfo.OrderId)

	if orderInfo.Open {
		tx.addInZSet(ctx, bookPriceKey(orderInfo.Cryptopair, orderInfo.Side), orderInfo.OrderId, float64(orderInfo.LimitPrice)).
			addInZSet(ctx, bookCreatedKey(orderInfo.Cryptopair, orderInfo.Side), orderInfo.OrderId, float64(orderInfo.Created)).
			addInSet(ctx, ordersWalletOpenKey+orderInfo.WalletId, orderInfo.OrderId)
		if orderInfo.TimeInForce > 0 {
			tx.addInZSet(ctx, ordersExpirationKey, orderInfo.OrderId, float64(orderInfo.TimeInForce))
		}
	}

	return tx.execTx(ctx)
}

func (s *RedisStore) GetOrder(ctx context.Context, id string) (*models.OrderModel, error) {
	jsonData, err := s.client.getFromHash(ctx, ordersHashKey, id)

	if err != nil {
		return nil, staticerr.ErrorOrderNotFound
	}

	var orderInfo models.OrderModel

	if err = json.Unmarshal([]byte(*jsonData), &orderInfo); err != nil {
		return nil, errors.Wrap(err, "unmarshal order")
	}

	return &orderInfo, nil
}

// UpdateOrder rewrites the order document and keeps the open-order indexes
// consistent: a closed order leaves every book index but stays in the
// append-only hash and the account history set.
func (s *RedisStore) UpdateOrder(ctx context.Context, orderInfo models.OrderModel) error {
	tx := s.client.performTx(ctx)

	if err := queueOrderUpdate(ctx, &tx, orderInfo, time.Now().UTC().UnixMilli()); err != nil {
		return err
	}

	return tx.execTx(ctx)
}

func queueOrderUpdate(ctx context.Context, tx *TxContainer, orderInfo models.OrderModel, modifiedMillis int64) error {
	orderInfo.Modified = modifiedMillis

	jsonData, err := json.Marshal(orderInfo)

	if err != nil {
		return errors.Wrap(err, "marshal order")
	}

	tx.addInHash(ctx, ordersHashKey, orderInfo.OrderId, jsonData)

	if !orderInfo.Open {
		tx.removeFromZSet(ctx, bookPriceKey(orderInfo.Cryptopair, orderInfo.Side), orderInfo.OrderId).
			removeFromZSet(ctx, bookCreatedKey(orderInfo.Cryptopair, orderInfo.Side), orderInfo.OrderId).
			removeFromSet(ctx, ordersWalletOpenKey+orderInfo.WalletId, orderInfo.OrderId).
			removeFromZSet(ctx, ordersExpirationKey, orderInfo.OrderId)
	}

	return nil
}

func (s *RedisStore) loadOrders(ctx context.Context, ids []string) ([]models.OrderModel, error) {
	docs, err := s.client.getManyFromHash(ctx, ordersHashKey, ids)

	if err != nil {
		return nil, err
	}

	orders := make([]models.OrderModel, 0, len(docs))
	for _, doc := range docs {
		var orderInfo models.OrderModel
		if err = json.Unmarshal([]byte(doc), &orderInfo); err != nil {
			return nil, errors.Wrap(err, "unmarshal order")
		}
		orders = append(orders, orderInfo)
	}

	return orders, nil
}

// MatchCandidates returns the open orders of one (pair, side) book passing
// the price filter. Ordering is left to the matcher, which owns the
// price-time priority rule.
func (s *RedisStore) MatchCandidates(ctx context.Context, cryptopair string, side models.Side, filter CandidateFilter) ([]models.OrderModel, error) {
	min, max := "-inf", "+inf"
	if filter.MarketOnly {
		min, max = "0", "0"
	} else {
		if filter.MinPrice > 0 {
			min = fmt.Sprintf("%d", filter.MinPrice)
		}
		if filter.MaxPrice > 0 {
			max = fmt.Sprintf("%d", filter.MaxPrice)
		}
	}

	ids, err := s.client.getRangeByScore(ctx, bookPriceKey(cryptopair, side), min, max)

	if err != nil {
		return nil, err
	}

	candidates, err := s.loadOrders(ctx, ids)

	if err != nil {
		return nil, err
	}

	open := candidates[:0]
	for _, candidate := range candidates {
		if candidate.Open {
			open = append(open, candidate)
		}
	}

	return open, nil
}

// OpenLimitOrders returns the open orders of one book that carry a limit
// price, for public snapshots and best bid/ask.
func (s *RedisStore) OpenLimitOrders(ctx context.Context, cryptopair string, side models.Side) ([]models.OrderModel, error) {
	ids, err := s.client.getRangeByScore(ctx, bookPriceKey(cryptopair, side), "1", "+inf")

	if err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, ids)

	if err != nil {
		return nil, err
	}

	open := orders[:0]
	for _, orderInfo := range orders {
		if orderInfo.Open && orderInfo.LimitPrice > 0 {
			open = append(open, orderInfo)
		}
	}

	return open, nil
}

func (s *RedisStore) OpenOrdersByWallet(ctx context.Context, walletId string) ([]models.OrderModel, error) {
	ids, err := s.client.getFromSet(ctx, ordersWalletOpenKey+walletId)

	if err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, ids)

	if err != nil {
		return nil, err
	}

	open := orders[:0]
	for _, orderInfo := range orders {
		if orderInfo.Open {
			open = append(open, orderInfo)
		}
	}

	return open, nil
}

// ExpiredOpenOrders returns open orders whose time in force elapsed at or
// before the given instant, oldest expiry first.
func (s *RedisStore) ExpiredOpenOrders(ctx context.Context, nowMillis int64) ([]models.OrderModel, error) {
	ids, err := s.client.getRangeByScore(ctx, ordersExpirationKey, "-inf", fmt.Sprintf("%d", nowMillis))

	if err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, ids)

	if err != nil {
		return nil, err
	}

	expired := orders[:0]
	for _, orderInfo := range orders {
		if orderInfo.Open && orderInfo.Expired(nowMillis) {
			expired = append(expired, orderInfo)
		}
	}

	return expired, nil
}

// OrdersByAccount returns an account's order history, newest first, with the
// optional open/canceled/side/pair filters of the history endpoint.
func (s *RedisStore) OrdersByAccount(ctx context.Context, accountId string, filter OrderFilter) ([]models.OrderModel, error) {
	ids, err := s.client.getFromSet(ctx, ordersAccountKey+accountId)

	if err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, ids)

	if err != nil {
		return nil, err
	}

	filtered := orders[:0]
	for _, orderInfo := range orders {
		if filter.Cryptopair != "" && orderInfo.Cryptopair != filter.Cryptopair {
			continue
		}
		if filter.Open != nil && orderInfo.Open != *filter.Open {
			continue
		}
		if filter.Canceled != nil && orderInfo.Canceled != *filter.Canceled {
			continue
		}
		if filter.Side != nil && orderInfo.Side != *filter.Side {
			continue
		}
		filtered = append(filtered, orderInfo)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Created != filtered[j].Created {
			return filtered[i].Created > filtered[j].Created
		}
		return filtered[i].OrderId > filtered[j].OrderId
	})

	return paginateOrders(filtered, filter.Offset, filter.Limit), nil
}

func paginateOrders(orders []models.OrderModel, offset, limit int) []models.OrderModel {
	if offset >= len(orders) {
		return nil
	}
	orders = orders[offset:]
	if limit > 0 && limit < len(orders) {
		orders = orders[:limit]
	}
	return orders
}
