package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"exchange-core-service/models"
	"exchange-core-service/staticerr"
)

type bookItem struct {
	price   int64
	created int64
	id      string
}

func lessBookItem(a, b bookItem) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	if a.created != b.created {
		return a.created < b.created
	}
	return a.id < b.id
}

// MemoryStore keeps orders and trades in process memory with a btree index
// per (pair, side) book. It exposes the same method set as RedisStore so the
// services run against either.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]models.OrderModel
	books    map[string]*btree.BTreeG[bookItem]
	trades   map[int64]models.TradeModel
	tradeSeq int64
	locks    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]models.OrderModel),
		books:  make(map[string]*btree.BTreeG[bookItem]),
		trades: make(map[int64]models.TradeModel),
		locks:  make(map[string]string),
	}
}

func (s *MemoryStore) book(cryptopair string, side models.Side) *btree.BTreeG[bookItem] {
	key := bookPriceKey(cryptopair, side)
	tree, ok := s.books[key]
	if !ok {
		tree = btree.NewG(8, lessBookItem)
		s.books[key] = tree
	}
	return tree
}

func (s *MemoryStore) AddOrder(ctx context.Context, orderInfo models.OrderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().UnixMilli()
	if orderInfo.Created == 0 {
		orderInfo.Created = now
	}
	if orderInfo.Modified == 0 {
		orderInfo.Modified = now
	}

	s.orders[orderInfo.OrderId] = orderInfo
	if orderInfo.Open {
		s.book(orderInfo.Cryptopair, orderInfo.Side).ReplaceOrInsert(bookItem{
			price:   orderInfo.LimitPrice,
			created: orderInfo.Created,
			id:      orderInfo.OrderId,
		})
	}

	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderInfo, ok := s.orders[id]
	if !ok {
		return nil, staticerr.ErrorOrderNotFound
	}

	return &orderInfo, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, orderInfo models.OrderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateOrderLocked(orderInfo)
}

func (s *MemoryStore) updateOrderLocked(orderInfo models.OrderModel) error {
	previous, ok := s.orders[orderInfo.OrderId]
	if !ok {
		return staticerr.ErrorOrderNotFound
	}

	orderInfo.Modified = time.Now().UTC().UnixMilli()
	s.orders[orderInfo.OrderId] = orderInfo

	if !orderInfo.Open {
		s.book(previous.Cryptopair, previous.Side).Delete(bookItem{
			price:   previous.LimitPrice,
			created: previous.Created,
			id:      previous.OrderId,
		})
	}

	return nil
}

func (s *MemoryStore) scanBook(cryptopair string, side models.Side, keep func(models.OrderModel) bool) []models.OrderModel {
	var result []models.OrderModel
	s.book(cryptopair, side).Ascend(func(item bookItem) bool {
		orderInfo, ok := s.orders[item.id]
		if ok && orderInfo.Open && keep(orderInfo) {
			result = append(result, orderInfo)
		}
		return true
	})
	return result
}

func (s *MemoryStore) MatchCandidates(ctx context.Context, cryptopair string, side models.Side, filter CandidateFilter) ([]models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanBook(cryptopair, side, func(orderInfo models.OrderModel) bool {
		if filter.MarketOnly {
			return orderInfo.LimitPrice == 0
		}
		if filter.MinPrice > 0 && orderInfo.LimitPrice < filter.MinPrice {
			return false
		}
		if filter.MaxPrice > 0 && orderInfo.LimitPrice > filter.MaxPrice {
			return false
		}
		return true
	}), nil
}

func (s *MemoryStore) OpenLimitOrders(ctx context.Context, cryptopair string, side models.Side) ([]models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanBook(cryptopair, side, func(orderInfo models.OrderModel) bool {
		return orderInfo.LimitPrice > 0
	}), nil
}

func (s *MemoryStore) OpenOrdersByWallet(ctx context.Context, walletId string) ([]models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.OrderModel
	for _, orderInfo := range s.orders {
		if orderInfo.Open && orderInfo.WalletId == walletId {
			result = append(result, orderInfo)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Created < result[j].Created })
	return result, nil
}

func (s *MemoryStore) ExpiredOpenOrders(ctx context.Context, nowMillis int64) ([]models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.OrderModel
	for _, orderInfo := range s.orders {
		if orderInfo.Open && orderInfo.Expired(nowMillis) {
			result = append(result, orderInfo)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].TimeInForce < result[j].TimeInForce })
	return result, nil
}

func (s *MemoryStore) OrdersByAccount(ctx context.Context, accountId string, filter OrderFilter) ([]models.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.OrderModel
	for _, orderInfo := range s.orders {
		if orderInfo.AccountId != accountId {
			continue
		}
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
		result = append(result, orderInfo)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Created != result[j].Created {
			return result[i].Created > result[j].Created
		}
		return result[i].OrderId > result[j].OrderId
	})

	return paginateOrders(result, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) AddTrade(ctx context.Context, tradeInfo models.TradeModel) (*models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addTradeLocked(tradeInfo), nil
}

// AddTradeWithOrders writes the trade and the updated orders under one lock
// hold, all or nothing. Unknown orders fail the whole write before anything
// is stored.
func (s *MemoryStore) AddTradeWithOrders(ctx context.Context, tradeInfo models.TradeModel, orders ...models.OrderModel) (*models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, orderInfo := range orders {
		if _, ok := s.orders[orderInfo.OrderId]; !ok {
			return nil, staticerr.ErrorOrderNotFound
		}
	}

	created := s.addTradeLocked(tradeInfo)
	for _, orderInfo := range orders {
		if err := s.updateOrderLocked(orderInfo); err != nil {
			return nil, err
		}
	}

	return created, nil
}

func (s *MemoryStore) addTradeLocked(tradeInfo models.TradeModel) *models.TradeModel {
	s.tradeSeq++
	tradeInfo.Id = s.tradeSeq
	if tradeInfo.Created == 0 {
		tradeInfo.Created = time.Now().UTC().UnixMilli()
	}
	tradeInfo.Modified = tradeInfo.Created

	s.trades[tradeInfo.Id] = tradeInfo
	return &tradeInfo
}

func (s *MemoryStore) GetTrade(ctx context.Context, id int64) (*models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tradeInfo, ok := s.trades[id]
	if !ok {
		return nil, staticerr.ErrorTradeNotFound
	}

	return &tradeInfo, nil
}

func (s *MemoryStore) UpdateTrade(ctx context.Context, tradeInfo models.TradeModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[tradeInfo.Id]; !ok {
		return staticerr.ErrorTradeNotFound
	}

	tradeInfo.Modified = time.Now().UTC().UnixMilli()
	s.trades[tradeInfo.Id] = tradeInfo
	return nil
}

func (s *MemoryStore) tradesWhere(keep func(models.TradeModel) bool) []models.TradeModel {
	var result []models.TradeModel
	for _, tradeInfo := range s.trades {
		if keep(tradeInfo) {
			result = append(result, tradeInfo)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Created != result[j].Created {
			return result[i].Created < result[j].Created
		}
		return result[i].Id < result[j].Id
	})

	return result
}

func (s *MemoryStore) LastTrades(ctx context.Context, cryptopair string, limit int64) ([]models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := s.tradesWhere(func(tradeInfo models.TradeModel) bool {
		return tradeInfo.Cryptopair == cryptopair
	})

	sort.Slice(trades, func(i, j int) bool { return trades[i].Id > trades[j].Id })
	if limit > 0 && int64(len(trades)) > limit {
		trades = trades[:limit]
	}

	return trades, nil
}

func (s *MemoryStore) TradesSince(ctx context.Context, cryptopair string, sinceId int64, limit int) ([]models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := s.tradesWhere(func(tradeInfo models.TradeModel) bool {
		return tradeInfo.Cryptopair == cryptopair && tradeInfo.Id > sinceId
	})

	sort.Slice(trades, func(i, j int) bool { return trades[i].Id < trades[j].Id })
	if limit > 0 && limit < len(trades) {
		trades = trades[:limit]
	}

	return trades, nil
}

func (s *MemoryStore) TradesInWindow(ctx context.Context, cryptopair string, fromMillis, toMillis int64) ([]models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tradesWhere(func(tradeInfo models.TradeModel) bool {
		return tradeInfo.Cryptopair == cryptopair &&
			tradeInfo.Created >= fromMillis && tradeInfo.Created <= toMillis
	}), nil
}

func (s *MemoryStore) TradesByLegState(ctx context.Context, leg models.TradeLeg, states ...models.SettlementStatus) ([]models.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tradesWhere(func(tradeInfo models.TradeModel) bool {
		current := tradeInfo.LegStatus(leg)
		for _, state := range states {
			if current == state {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) SettlementLegTrades(ctx context.Context, leg models.TradeLeg, currency string) ([]models.TradeModel, error) {
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

func (s *MemoryStore) tryLock(key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.locks[key]; held {
		return staticerr.ErrorResourceIsLocked
	}

	s.locks[key] = token
	return nil
}

func (s *MemoryStore) unlock(key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks[key] != token {
		return staticerr.ErrorResourceIsLocked
	}

	delete(s.locks, key)
	return nil
}

func (s *MemoryStore) TryLockPair(ctx context.Context, cryptopair string, token string) error {
	return s.tryLock(lockPairKey+cryptopair, token)
}

func (s *MemoryStore) UnlockPair(ctx context.Context, cryptopair string, token string) error {
	return s.unlock(lockPairKey+cryptopair, token)
}

func (s *MemoryStore) TryLockAccount(ctx context.Context, accountId string, token string) error {
	return s.tryLock(lockAccountKey+accountId, token)
}

func (s *MemoryStore) UnlockAccount(ctx context.Context, accountId string, token string) error {
	return s.unlock(lockAccountKey+accountId, token)
}

func (s *MemoryStore) TryLockSettlement(ctx context.Context, token string) error {
	return s.tryLock(lockSettlementKey, token)
}

func (s *MemoryStore) UnlockSettlement(ctx context.Context, token string) error {
	return s.unlock(lockSettlementKey, token)
}
