// Package crypto provides the hashing and signing primitives used to
// identify registry accounts and authenticate their requests.
package crypto

import (
	"encoding/binary"

	"github.com/aisthisi-art/aisthisi/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// RequestDigest is the 32-byte message a caller signs to authorize a
// registry request.
//
// Layout hashed with BLAKE3:
//
//	[method][0x00][payload][nonce uint64 big-endian]
//
// Binding the method name stops a signature for one operation from being
// replayed against another with a structurally identical payload.
func RequestDigest(method string, payload []byte, nonce uint64) types.Hash {
	h := blake3.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(payload)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
