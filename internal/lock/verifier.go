// Package lock implements the commit-reveal check that releases a
// time-locked token.
//
// A lock stores commitment = H(H(password)). The holder proves knowledge
// of the password by revealing H(password); the verifier applies H once
// more and compares. Neither the password nor the reveal is ever stored,
// and the stored commitment cannot itself be replayed as a reveal.
package lock

import (
	"crypto/subtle"

	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// Verifier checks reveals against stored commitments. It holds no state
// besides its hash function and is safe for concurrent use.
type Verifier struct {
	hasher Hasher
}

// NewVerifier returns a Verifier using h. A nil h selects Keccak-256.
func NewVerifier(h Hasher) *Verifier {
	if h == nil {
		h = Keccak256
	}
	return &Verifier{hasher: h}
}

// RevealOf computes the unlock code a holder presents: H(password).
func (v *Verifier) RevealOf(password []byte) types.Hash {
	return v.hasher.Sum(password)
}

// CommitmentOf computes the commitment a reveal opens: H(reveal).
func (v *Verifier) CommitmentOf(reveal []byte) types.Hash {
	return v.hasher.Sum(reveal)
}

// NewCommitment computes the value stored at mint time: H(H(password)).
func (v *Verifier) NewCommitment(password []byte) types.Hash {
	reveal := v.RevealOf(password)
	return v.CommitmentOf(reveal[:])
}

// Verify reports whether H(reveal) equals commitment. The comparison runs
// in constant time. A mismatch is a normal false result, not an error.
func (v *Verifier) Verify(reveal []byte, commitment types.Hash) bool {
	got := v.CommitmentOf(reveal)
	return subtle.ConstantTimeCompare(got[:], commitment[:]) == 1
}
