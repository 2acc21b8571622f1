package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/pechorka/lostfound/pkg/encryptor"
)

var (
	bktAuth   = []byte("auth")
	keyTokens = []byte("tokens")
)

var (
	// ErrPartialPair guards the store invariant: either a full pair is
	// stored or nothing is.
	ErrPartialPair = errors.New("token pair must have both access and refresh")
	// ErrNotFound is returned by SetAccess when there is no pair to update.
	ErrNotFound = errors.New("not found")
)

// TokenPair is the persisted credential record, one per installation.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Store keeps a single token pair in a bolt bucket, encrypted at rest.
type Store struct {
	db        *bolt.DB
	enc       *encryptor.Encryptor
	closeFunc func() error
}

func NewStore(path string, enc *encryptor.Encryptor) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening token store")
	}
	return &Store{
		db:        db,
		enc:       enc,
		closeFunc: db.Close,
	}, nil
}

// NewTempStore creates a store backed by a throwaway file, removed on
// Close. For tests.
func NewTempStore(enc *encryptor.Encryptor) (*Store, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("lostfound-%s.db", uuid.New().String()))
	store, err := NewStore(path, enc)
	if err != nil {
		return nil, err
	}
	originalCloseFunc := store.closeFunc
	store.closeFunc = func() error {
		if err := originalCloseFunc(); err != nil {
			return err
		}
		return os.Remove(path)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.closeFunc()
}

// Get returns the stored pair, or nil when nothing is stored.
func (s *Store) Get() (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktAuth)
		if b == nil {
			return nil
		}
		raw := b.Get(keyTokens)
		if raw == nil {
			return nil
		}
		decrypted, err := s.enc.Decrypt(raw)
		if err != nil {
			return err
		}
		var p TokenPair
		if err := json.Unmarshal(decrypted, &p); err != nil {
			return errors.Wrap(err, "decoding token record")
		}
		pair = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Set overwrites the stored pair. Partial pairs are rejected.
func (s *Store) Set(pair TokenPair) error {
	if pair.Access == "" || pair.Refresh == "" {
		return ErrPartialPair
	}
	return s.put(pair)
}

// SetAccess replaces only the access token; the refresh token is reused
// per the backend contract.
func (s *Store) SetAccess(access string) error {
	if access == "" {
		return ErrPartialPair
	}
	pair, err := s.Get()
	if err != nil {
		return err
	}
	if pair == nil {
		return ErrNotFound
	}
	pair.Access = access
	return s.put(*pair)
}

// Clear removes the stored pair. Clearing an empty store is fine.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bktAuth)
		if b == nil {
			return nil
		}
		return b.Delete(keyTokens)
	})
}

func (s *Store) put(pair TokenPair) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return errors.Wrap(err, "encoding token record")
	}
	encrypted, err := s.enc.Encrypt(raw)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bktAuth)
		if err != nil {
			return err
		}
		return b.Put(keyTokens, encrypted)
	})
}
