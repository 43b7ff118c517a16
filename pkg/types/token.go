package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// TokenIDSize is the encoded length of a token ID in storage keys.
const TokenIDSize = 8

// TokenID identifies a single non-fungible token. IDs are allocated
// sequentially from 0 unless the minter supplies one.
type TokenID uint64

// String returns the decimal token ID, the form used in metadata URIs.
func (t TokenID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// Key returns the big-endian encoding of the ID so that storage
// iteration visits tokens in ID order.
func (t TokenID) Key() []byte {
	var b [TokenIDSize]byte
	binary.BigEndian.PutUint64(b[:], uint64(t))
	return b[:]
}

// TokenIDFromKey decodes a big-endian storage key suffix.
func TokenIDFromKey(b []byte) (TokenID, error) {
	if len(b) != TokenIDSize {
		return 0, fmt.Errorf("token id key must be %d bytes, got %d", TokenIDSize, len(b))
	}
	return TokenID(binary.BigEndian.Uint64(b)), nil
}

// ParseTokenID parses a decimal token ID.
func ParseTokenID(s string) (TokenID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q: %w", s, err)
	}
	return TokenID(n), nil
}
