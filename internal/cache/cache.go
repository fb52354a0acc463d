// cache хранит в Redis отметки об отозванных семействах refresh-токенов.
// Отметка позволяет отклонить токен скомпрометированного семейства без
// обращения к БД; источником истины остаётся хранилище.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix — префикс ключей по умолчанию.
const DefaultPrefix = "hrm:auth:family:"

// FamilyCache — минимальный контракт кэша отозванных семейств.
type FamilyCache interface {
	// MarkRevoked помечает семейство отозванным на ttl (обычно время жизни refresh-токена).
	MarkRevoked(ctx context.Context, family string, ttl time.Duration) error
	// IsRevoked сообщает, помечено ли семейство отозванным.
	IsRevoked(ctx context.Context, family string) (bool, error)
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (FamilyCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return NewFromClient(rdb, prefix), nil
}

// NewFromClient оборачивает готовый клиент Redis.
func NewFromClient(rdb redis.UniversalClient, prefix string) FamilyCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &redisCache{rdb: rdb, prefix: prefix}
}

func (c *redisCache) key(family string) string { return c.prefix + family }

func (c *redisCache) MarkRevoked(ctx context.Context, family string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return c.rdb.Set(ctx, c.key(family), "1", ttl).Err()
}

func (c *redisCache) IsRevoked(ctx context.Context, family string) (bool, error) {
	err := c.rdb.Get(ctx, c.key(family)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (c *redisCache) Close() error { return c.rdb.Close() }
