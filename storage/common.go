package storage

import (
	"context"
	"time"

	redisLib "github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"

	"exchange-core-service/staticerr"
)

type TxContainer struct {
	tx redisLib.Pipeliner
}

type RedisClient struct {
	cli *redisLib.Client
}

func NewRedisClient(host string) (*RedisClient, error) {
	cli := redisLib.NewClient(&redisLib.Options{
		Addr:     host,
		Password: "",
		DB:       0,
	})

	pong, err := cli.Ping(context.Background()).Result()

	if err != nil {
		return nil, err
	}

	logger.Infoln(pong)
	return &RedisClient{cli: cli}, nil
}

func (r *RedisClient) setNX(ctx context.Context, key string, value interface{}, expire time.Duration) error {
	setted, err := r.cli.SetNX(ctx, key, value, expire).Result()

	if err != nil {
		return err
	}

	if !setted {
		return staticerr.ErrorResourceIsLocked
	}

	return nil
}

func (r *RedisClient) deleteWithValue(ctx context.Context, key string, value interface{}) error {
	err := r.cli.Watch(ctx, func(tx *redisLib.Tx) error {
		valueFromRedis, err := tx.Get(ctx, key).Result()

		if err != nil {
			return err
		}

		if valueFromRedis != value {
			return staticerr.ErrorResourceIsLocked
		}

		_, err = tx.Del(ctx, key).Result()

		if err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return err
	}

	return nil
}

func (r *RedisClient) increment(ctx context.Context, key string) (int64, error) {
	return r.cli.Incr(ctx, key).Result()
}

func (r *RedisClient) addInHash(ctx context.Context, key string, fieldKey string, fieldValue interface{}) error {
	_, err := r.cli.HSet(ctx, key, fieldKey, fieldValue).Result()

	if err != nil {
		return err
	}

	return nil
}

func (r *RedisClient) getFromHash(ctx context.Context, key string, field string) (*string, error) {
	value, err := r.cli.HGet(ctx, key, field).Result()

	if err != nil {
		return nil, err
	}

	return &value, err
}

func (r *RedisClient) getManyFromHash(ctx context.Context, key string, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	values, err := r.cli.HMGet(ctx, key, fields...).Result()

	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == nil {
			continue
		}
		if text, ok := value.(string); ok {
			result = append(result, text)
		}
	}

	return result, nil
}

func (r *RedisClient) getFromSet(ctx context.Context, keys ...string) ([]string, error) {
	return r.cli.SUnion(ctx, keys...).Result()
}

func (r *RedisClient) getRangeByScore(ctx context.Context, key string, min, max string) ([]string, error) {
	return r.cli.ZRangeByScore(ctx, key, &redisLib.ZRangeBy{Min: min, Max: max}).Result()
}

func (r *RedisClient) getRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.cli.ZRevRange(ctx, key, start, stop).Result()
}

func (x *TxContainer) addInZSet(ctx context.Context, key string, value interface{}, weight float64) *TxContainer {
	x.tx.ZAdd(ctx, key, redisLib.Z{Score: weight, Member: value})

	return x
}

func (x *TxContainer) removeFromZSet(ctx context.Context, key string, value interface{}) *TxContainer {
	x.tx.ZRem(ctx, key, value)

	return x
}

func (x *TxContainer) addInSet(ctx context.Context, key string, value interface{}) *TxContainer {
	x.tx.SAdd(ctx, key, value)

	return x
}

func (x *TxContainer) removeFromSet(ctx context.Context, key string, value interface{}) *TxContainer {
	x.tx.SRem(ctx, key, value)

	return x
}

func (x *TxContainer) addInHash(ctx context.Context, key string, fieldKey string, fieldValue interface{}) *TxContainer {
	x.tx.HSet(ctx, key, fieldKey, fieldValue)

	return x
}

func (r *RedisClient) performTx(ctx context.Context) TxContainer {
	tx := r.cli.TxPipeline()
	return TxContainer{tx: tx}
}

func (x *TxContainer) execTx(ctx context.Context) error {
	_, err := x.tx.Exec(ctx)
	return err
}
