// Package query is a read-through cache for API reads, keyed by resource and
// filter parameters, with a staleness window and prefix invalidation.
package query

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

// Backend stores encoded query results.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

type Cache struct {
	backend Backend
	ttl     time.Duration
	loads   singleflight.Group
}

func New(backend Backend, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{backend: backend, ttl: ttl}
}

// Key builds "resource:id" or "resource:id:<hash of params>". params is
// hashed from its JSON form so equal filters map to the same entry.
func Key(resource string, id any, params any) string {
	k := resource
	if id != nil {
		k += ":" + fmt.Sprint(id)
	}
	if params == nil {
		return k
	}
	raw, err := json.Marshal(params)
	if err != nil || string(raw) == "null" || string(raw) == "{}" {
		return k
	}
	return k + ":" + strconv.FormatUint(xxh3.Hash(raw), 16)
}

// Fetch returns the cached value for key or calls load, caches and returns
// its result. Concurrent fetches of one key share a single load. Backend
// errors degrade to a direct load.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	if raw, ok, err := c.backend.Get(ctx, key); err != nil {
		log.Printf("query: read %s: %v", key, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}
	res, err, _ := c.loads.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(v); err == nil {
			if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
				log.Printf("query: write %s: %v", key, err)
			}
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// Invalidate drops every entry whose key starts with one of prefixes.
func (c *Cache) Invalidate(ctx context.Context, prefixes ...string) error {
	if c == nil {
		return nil
	}
	for _, p := range prefixes {
		if err := c.backend.DeletePrefix(ctx, p); err != nil {
			return errors.Wrapf(err, "failed to invalidate %s", p)
		}
	}
	return nil
}

// Clear drops everything, used on logout.
func (c *Cache) Clear(ctx context.Context) error {
	return c.Invalidate(ctx, "")
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.backend.Close()
}
