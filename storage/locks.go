package storage

import (
	"context"
	"time"
)

const (
	lockPairKey       = "lock:pair:"
	lockAccountKey    = "lock:account:"
	lockSettlementKey = "lock:settlement"

	pairLockTtl       = 30 * time.Second
	accountLockTtl    = 30 * time.Second
	settlementLockTtl = 15 * time.Minute
)

// TryLockPair serializes matching per cryptopair. The token must be unique
// per holder so only the owner can release the lock.
func (s *RedisStore) TryLockPair(ctx context.Context, cryptopair string, token string) error {
	return s.client.setNX(ctx, lockPairKey+cryptopair, token, pairLockTtl)
}

func (s *RedisStore) UnlockPair(ctx context.Context, cryptopair string, token string) error {
	return s.client.deleteWithValue(ctx, lockPairKey+cryptopair, token)
}

// TryLockAccount guards the balance check of order placement against
// concurrent placements by the same account.
func (s *RedisStore) TryLockAccount(ctx context.Context, accountId string, token string) error {
	return s.client.setNX(ctx, lockAccountKey+accountId, token, accountLockTtl)
}

func (s *RedisStore) UnlockAccount(ctx context.Context, accountId string, token string) error {
	return s.client.deleteWithValue(ctx, lockAccountKey+accountId, token)
}

// TryLockSettlement ensures at most one settlement batch runs at a time.
func (s *RedisStore) TryLockSettlement(ctx context.Context, token string) error {
	return s.client.setNX(ctx, lockSettlementKey, token, settlementLockTtl)
}

func (s *RedisStore) UnlockSettlement(ctx context.Context, token string) error {
	return s.client.deleteWithValue(ctx, lockSettlementKey, token)
}
