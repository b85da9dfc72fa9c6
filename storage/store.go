package storage

import "exchange-core-service/models"

// CandidateFilter narrows a matching-candidate scan over one (pair, side)
// book. MarketOnly selects resting market orders (limit price 0). MinPrice
// and MaxPrice bound the limit price inclusively; zero means unbounded.
type CandidateFilter struct {
	MarketOnly bool
	MinPrice   int64
	MaxPrice   int64
}

// OrderFilter narrows an account's order history.
type OrderFilter struct {
	Cryptopair string
	Open       *bool
	Canceled   *bool
	Side       *models.Side
	Offset     int
	Limit      int
}

// RedisStore persists orders and trades in Redis: JSON documents in hashes,
// ZSET indexes per (pair, side) book keyed by limit price and creation time,
// and SetNX locks for serializing matching and settlement.
type RedisStore struct {
	client *RedisClient
}

func NewRedisStore(client *RedisClient) *RedisStore {
	return &RedisStore{client: client}
}
