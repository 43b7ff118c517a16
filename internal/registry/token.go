package registry

import (
	"fmt"
	"time"

	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// State is the lock state of a token at a given time.
type State uint8

// Token lock states.
const (
	// StateUnlocked: no lock record, or the lock was opened with a reveal.
	StateUnlocked State = iota
	// StateLockedPending: locked and the unlock time has not been reached.
	StateLockedPending
	// StateLockedReleasable: locked but the unlock time has passed.
	StateLockedReleasable
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnlocked:
		return "UNLOCKED"
	case StateLockedPending:
		return "LOCKED_PENDING"
	case StateLockedReleasable:
		return "LOCKED_RELEASABLE"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LockRecord restricts transfer of a token until either UnlockableFrom
// passes or the owner reveals the preimage of Commitment.
type LockRecord struct {
	UnlockableFrom time.Time  `json:"unlockable_from"`
	Commitment     types.Hash `json:"commitment"`
	Unlocked       bool       `json:"unlocked"`
}

// Token is a registry entry.
type Token struct {
	ID    types.TokenID `json:"id"`
	Owner types.Address `json:"owner"`
	Lock  *LockRecord   `json:"lock,omitempty"`
}

// StateAt returns the lock state of t at now.
func (t *Token) StateAt(now time.Time) State {
	if t.Lock == nil || t.Lock.Unlocked {
		return StateUnlocked
	}
	if now.Before(t.Lock.UnlockableFrom) {
		return StateLockedPending
	}
	return StateLockedReleasable
}

// TransferEligible reports whether t may change hands at now.
func (t *Token) TransferEligible(now time.Time) bool {
	return t.StateAt(now) != StateLockedPending
}

// Clone returns a deep copy of t.
func (t *Token) Clone() *Token {
	c := *t
	if t.Lock != nil {
		l := *t.Lock
		c.Lock = &l
	}
	return &c
}

// LockTerms are the optional lock parameters of a mint. A lock record is
// created only when both fields are set. A supplied commitment must not be
// the zero hash: no password hashes to it, so the lock could never be
// released.
type LockTerms struct {
	UnlockableFrom time.Time
	Commitment     *types.Hash
}

func (l *LockTerms) validate() error {
	if l != nil && l.Commitment != nil && l.Commitment.IsZero() {
		return fmt.Errorf("zero commitment: %w", ErrInvalidLockTerms)
	}
	return nil
}

func (l *LockTerms) record() *LockRecord {
	if l == nil || l.UnlockableFrom.IsZero() || l.Commitment == nil {
		return nil
	}
	return &LockRecord{
		UnlockableFrom: l.UnlockableFrom.UTC(),
		Commitment:     *l.Commitment,
	}
}
