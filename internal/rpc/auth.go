package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

var prefixNonce = []byte("n/") // n/<address(20)> -> last nonce uint64

// ErrStaleNonce is returned when a nonce does not exceed the last one
// accepted for the same caller.
var ErrStaleNonce = errors.New("stale nonce")

// NonceStore records the last accepted request nonce of each caller so a
// signed request cannot be replayed.
type NonceStore struct {
	mu sync.Mutex
	db storage.DB
}

// NewNonceStore creates a nonce store over db.
func NewNonceStore(db storage.DB) *NonceStore {
	return &NonceStore{db: db}
}

// Last returns the last accepted nonce for addr, zero if none.
func (n *NonceStore) Last(addr types.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last(addr)
}

func (n *NonceStore) last(addr types.Address) (uint64, error) {
	data, err := n.db.Get(nonceKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt nonce record (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Use accepts nonce for addr if it is greater than the last one.
func (n *NonceStore) Use(addr types.Address, nonce uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	last, err := n.last(addr)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleNonce, nonce, last)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return n.db.Put(nonceKey(addr), buf[:])
}

func nonceKey(addr types.Address) []byte {
	key := make([]byte, 0, len(prefixNonce)+types.AddressSize)
	key = append(key, prefixNonce...)
	return append(key, addr[:]...)
}

// authenticate verifies a signed request, consumes its nonce and decodes
// the payload into target. It returns the caller's address.
func (s *Server) authenticate(req *Request, target interface{}) (types.Address, *Error) {
	var sp SignedParams
	if err := parseParams(req, &sp); err != nil {
		return types.Address{}, err
	}
	if !isPresent(sp.Payload) {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: "payload is required"}
	}

	pub, err := hex.DecodeString(sp.Auth.PubKey)
	if err != nil || len(pub) != crypto.PubKeySize {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "invalid pubkey: must be 33-byte compressed hex"}
	}
	sig, err := hex.DecodeString(sp.Auth.Signature)
	if err != nil || len(sig) == 0 {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "invalid signature encoding"}
	}

	caller, ok := crypto.VerifyRequest(req.Method, sp.Payload, sp.Auth.Nonce, sig, pub)
	if !ok {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "signature verification failed"}
	}
	if err := s.nonces.Use(caller, sp.Auth.Nonce); err != nil {
		if errors.Is(err, ErrStaleNonce) {
			return types.Address{}, &Error{Code: CodeStaleNonce, Message: err.Error()}
		}
		return types.Address{}, &Error{Code: CodeInternalError, Message: fmt.Sprintf("nonce update: %v", err)}
	}

	if err := unmarshalStrict(sp.Payload, target); err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid payload: %v", err)}
	}
	return caller, nil
}
