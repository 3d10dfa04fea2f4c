package caching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"momoinvoice/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "momoinvoice:"

type CacheService interface {
	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Distributed locks. AcquireLock returns the token needed to release the lock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error

	Ping(ctx context.Context) error
	Close() error
}

// releaseLockScript deletes the lock only if it is still held by the caller's token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type redisCacheService struct {
	client   *redis.Client
	newToken func() string
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	log := logger.WithComponent("cache")
	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Warn().Err(pingErr).Str("addr", parsedAddr).Msg("redis ping failed on initialization")
	} else {
		log.Debug().Str("addr", parsedAddr).Msg("redis connection established")
	}

	return NewCacheService(client)
}

// NewCacheService wraps an existing client.
func NewCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client, newToken: uuid.NewString}
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%sratelimit:%s", keyPrefix, key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return true, err
	}

	// Set expiry on first request
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			return false, err
		}
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := r.newToken()
	ok, err := r.client.SetNX(ctx, keyPrefix+"lock:"+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *redisCacheService) ReleaseLock(ctx context.Context, key, token string) error {
	err := r.client.Eval(ctx, releaseLockScript, []string{keyPrefix + "lock:" + key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
