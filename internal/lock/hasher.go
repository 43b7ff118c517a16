package lock

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/aisthisi-art/aisthisi/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Hasher is the one-way transformation H used for commitments.
// Minting clients and the verifier must use the same Hasher.
type Hasher interface {
	Sum(data []byte) types.Hash
}

// HasherFunc adapts a plain function to the Hasher interface.
type HasherFunc func(data []byte) types.Hash

// Sum calls f(data).
func (f HasherFunc) Sum(data []byte) types.Hash {
	return f(data)
}

// Supported hash algorithm names.
const (
	AlgKeccak256 = "keccak256"
	AlgBLAKE3    = "blake3"
	AlgSHA256    = "sha256"
)

// Keccak256 is the original (pre-NIST) Keccak-256, the hash behind
// ethers.utils.id and Solidity's keccak256.
var Keccak256 Hasher = HasherFunc(func(data []byte) types.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
})

// BLAKE3 is BLAKE3-256.
var BLAKE3 Hasher = HasherFunc(func(data []byte) types.Hash {
	return blake3.Sum256(data)
})

// SHA256 is SHA-256.
var SHA256 Hasher = HasherFunc(func(data []byte) types.Hash {
	return sha256.Sum256(data)
})

// HasherByName returns the Hasher registered under name.
// Lookup is case-insensitive; an empty name selects Keccak-256.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgKeccak256:
		return Keccak256, nil
	case AlgBLAKE3:
		return BLAKE3, nil
	case AlgSHA256:
		return SHA256, nil
	default:
		return nil, fmt.Errorf("unknown commitment hash %q (want %s, %s or %s)",
			name, AlgKeccak256, AlgBLAKE3, AlgSHA256)
	}
}
