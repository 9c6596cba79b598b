package storage

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FSStore keeps one file per key under base. Keys are hex encoded so any
// key is a safe file name.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", base)
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.base, hex.EncodeToString([]byte(key))+".json")
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read %q", key)
	}
	return b, nil
}

// Put writes through a temp file so a crash never leaves a half-written value.
func (s *FSStore) Put(_ context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	dst := s.path(key)
	tmp, err := os.CreateTemp(s.base, ".kv-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %q", key)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to close %q", key)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), dst), "failed to commit %q", key)
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to delete %q", key)
	}
	return nil
}
