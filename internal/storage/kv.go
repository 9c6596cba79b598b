package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// KV is the durable client-side key-value store. Values are opaque bytes;
// callers own serialization.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON loads key into out using the package codec.
func GetJSON(ctx context.Context, kv KV, key string, out any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return unmarshal(raw, out)
}

// PutJSON stores v under key using the package codec.
func PutJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return err
	}
	return kv.Put(ctx, key, raw)
}
