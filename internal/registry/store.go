package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

var (
	prefixToken = []byte("t/")     // t/<id(8)> -> Token JSON
	prefixOwner = []byte("o/")     // o/<owner(20)><id(8)> -> empty
	keyNextID   = []byte("m/next") // next sequential id, uint64 big-endian
	keyCount    = []byte("m/count")
)

// Store persists registry tokens and their owner index.
// It does no locking of its own; the Registry serializes writers.
type Store struct {
	db storage.DB
}

// NewStore creates a token store over db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a token. Returns ErrUnknownToken if it does not exist.
func (s *Store) Get(id types.TokenID) (*Token, error) {
	data, err := s.db.Get(tokenKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("token %s: %w", id, ErrUnknownToken)
	}
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &tok, nil
}

// Has checks if a token exists.
func (s *Store) Has(id types.TokenID) (bool, error) {
	return s.db.Has(tokenKey(id))
}

// OwnerOf returns the current owner of a token.
func (s *Store) OwnerOf(id types.TokenID) (types.Address, error) {
	tok, err := s.Get(id)
	if err != nil {
		return types.Address{}, err
	}
	return tok.Owner, nil
}

// NextID returns the next sequential id to try. Zero for a fresh store.
func (s *Store) NextID() (types.TokenID, error) {
	return s.readCounter(keyNextID)
}

// Count returns the number of tokens ever minted.
func (s *Store) Count() (uint64, error) {
	n, err := s.readCounter(keyCount)
	return uint64(n), err
}

func (s *Store) readCounter(key []byte) (types.TokenID, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter get: %w", err)
	}
	return types.TokenIDFromKey(data)
}

// ForEach iterates over all tokens in ascending id order.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEach(fn func(*Token) error) error {
	return s.db.ForEach(prefixToken, func(key, value []byte) error {
		if len(key) != len(prefixToken)+types.TokenIDSize {
			return nil // Malformed key, skip.
		}
		var tok Token
		if err := json.Unmarshal(value, &tok); err != nil {
			return fmt.Errorf("token unmarshal: %w", err)
		}
		return fn(&tok)
	})
}

// List returns all tokens in ascending id order.
func (s *Store) List() ([]*Token, error) {
	tokens := []*Token{}
	err := s.ForEach(func(t *Token) error {
		tokens = append(tokens, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// IDsOf returns the ids held by owner in ascending order.
func (s *Store) IDsOf(owner types.Address) ([]types.TokenID, error) {
	ids := []types.TokenID{}
	err := s.db.ForEach(ownerPrefix(owner), func(key, _ []byte) error {
		id, err := types.TokenIDFromKey(key[len(prefixOwner)+types.AddressSize:])
		if err != nil {
			return nil // Malformed key, skip.
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// putToken writes tok into b. When prev is non-nil the owner index entry
// for the previous owner is removed.
func putToken(b storage.Batch, tok *Token, prev *types.Address) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	if err := b.Put(tokenKey(tok.ID), data); err != nil {
		return err
	}
	if prev != nil && *prev != tok.Owner {
		if err := b.Delete(ownerKey(*prev, tok.ID)); err != nil {
			return err
		}
	}
	return b.Put(ownerKey(tok.Owner, tok.ID), []byte{})
}

func putCounter(b storage.Batch, key []byte, v uint64) error {
	return b.Put(key, types.TokenID(v).Key())
}

func tokenKey(id types.TokenID) []byte {
	key := make([]byte, 0, len(prefixToken)+types.TokenIDSize)
	key = append(key, prefixToken...)
	return append(key, id.Key()...)
}

func ownerPrefix(owner types.Address) []byte {
	key := make([]byte, 0, len(prefixOwner)+types.AddressSize)
	key = append(key, prefixOwner...)
	return append(key, owner[:]...)
}

func ownerKey(owner types.Address, id types.TokenID) []byte {
	return append(ownerPrefix(owner), id.Key()...)
}

