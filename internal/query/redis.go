package query

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis shares cached reads between several learner processes on one
// machine, e.g. a classroom kiosk running the daemon next to the CLI.
type Redis struct {
	rdb       *redis.Client
	namespace string
}

func NewRedis(addr, password string, db int, namespace string) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	namespace = strings.TrimSuffix(namespace, ":")
	if namespace == "" {
		namespace = "learner"
	}
	return &Redis{rdb: rdb, namespace: namespace + ":"}
}

func (b *Redis) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.Get(ctx, b.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return v, true, nil
}

func (b *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(b.rdb.Set(ctx, b.namespace+key, value, ttl).Err(), "redis set %s", key)
}

// DeletePrefix walks matching keys with SCAN so large caches never block redis.
func (b *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := b.namespace + prefix + "*"
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return errors.Wrapf(err, "redis scan %s", pattern)
		}
		if len(keys) > 0 {
			if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrap(err, "redis del")
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (b *Redis) Close() error { return b.rdb.Close() }
