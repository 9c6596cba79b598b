package storage

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, errors.Wrapf(err, "failed to marshal %T", v)
}

func unmarshal(raw []byte, out any) error {
	return errors.Wrapf(json.Unmarshal(raw, out), "failed to unmarshal into %T", out)
}
