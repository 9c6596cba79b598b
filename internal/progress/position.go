package progress

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/storage"
)

func positionKey(unitID int64) string {
	return "audio-position-" + strconv.FormatInt(unitID, 10)
}

// PositionStore persists the playback position of each unit, in seconds.
type PositionStore struct {
	kv storage.KV
}

func NewPositionStore(kv storage.KV) *PositionStore {
	return &PositionStore{kv: kv}
}

// Get returns the saved position; ok is false when none was saved.
func (s *PositionStore) Get(ctx context.Context, unitID int64) (pos float64, ok bool, err error) {
	err = storage.GetJSON(ctx, s.kv, positionKey(unitID), &pos)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "load position of unit %d", unitID)
	}
	return pos, true, nil
}

// Save stores pos. Zero and negative positions are not stored.
func (s *PositionStore) Save(ctx context.Context, unitID int64, pos float64) error {
	if pos <= 0 {
		return nil
	}
	return errors.Wrapf(storage.PutJSON(ctx, s.kv, positionKey(unitID), pos), "save position of unit %d", unitID)
}

func (s *PositionStore) Clear(ctx context.Context, unitID int64) error {
	return errors.Wrapf(s.kv.Delete(ctx, positionKey(unitID)), "clear position of unit %d", unitID)
}
