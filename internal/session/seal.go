package session

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
)

// sealer encrypts the persisted session with a key derived from a passphrase.
type sealer struct {
	passphrase []byte
}

type sealed struct {
	V    int    `json:"v"`
	Salt string `json:"salt"`
	Box  string `json:"box"`
}

func deriveKey(passphrase, salt []byte) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32))
	return &key
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "failed to read salt")
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read nonce")
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, deriveKey(s.passphrase, salt))
	out, err := json.Marshal(sealed{
		V:    1,
		Salt: base64.StdEncoding.EncodeToString(salt),
		Box:  base64.StdEncoding.EncodeToString(box),
	})
	return out, errors.Wrap(err, "failed to marshal sealed session")
}

func (s *sealer) open(raw []byte) ([]byte, error) {
	var env sealed
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal sealed session")
	}
	if env.V != 1 {
		return nil, errors.Errorf("unsupported sealed session version %d", env.V)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "bad salt")
	}
	box, err := base64.StdEncoding.DecodeString(env.Box)
	if err != nil {
		return nil, errors.Wrap(err, "bad box")
	}
	if len(box) < nonceSize {
		return nil, errors.New("sealed session too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, deriveKey(s.passphrase, salt))
	if !ok {
		return nil, errors.New("session key does not match stored session")
	}
	return plain, nil
}
