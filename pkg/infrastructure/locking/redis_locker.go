package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vsinha/prodplan/pkg/infrastructure/config"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// ErrBusy is returned when a lock could not be acquired within the retry budget
var ErrBusy = errors.New("system busy, please try again later (lock)")

// releaseScript deletes the key only while it still holds our token
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker is a lock shared by every engine process using the same Redis
type RedisLocker struct {
	rdb        goredis.Cmdable
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
	logger     *logging.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisLocker(rdb goredis.Cmdable, cfg config.LockConfig, logger *logging.Logger) *RedisLocker {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	return &RedisLocker{
		rdb:        rdb,
		ttl:        cfg.TTL,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     logging.OrNop(logger).With("service", "RedisLocker"),
	}
}

// Acquire sets key to a fresh token with SET NX, retrying a bounded number of times
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()

	for i := 0; i < l.retries; i++ {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.logger.Error("failed to acquire lock redis error", "key", key, "error", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if i == l.retries-1 {
			break
		}
		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrBusy, key)
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		l.logger.Warn("failed to release lock", "key", key, "error", err)
	}
}
