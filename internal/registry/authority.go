package registry

import (
	"time"

	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// MinterAuthority decides who may mint.
type MinterAuthority interface {
	CanMint(account types.Address) bool
}

// OwnershipAuthority decides whether caller may move token id on the
// owner's behalf. The registry never tracks approvals itself.
type OwnershipAuthority interface {
	IsOwnerOrApproved(caller types.Address, id types.TokenID) (bool, error)
}

// TransferHook is implemented by an OwnershipAuthority whose per-token
// state must change together with the owner. OnTransfer adds its writes
// to the batch that commits the transfer; b writes to the registry's
// database. An error aborts the transfer.
type TransferHook interface {
	OnTransfer(b storage.Batch, id types.TokenID) error
}

// ApprovalReader is implemented by an OwnershipAuthority that tracks a
// per-token approved account. It is read under the registry lock, so it
// must not call back into the Registry.
type ApprovalReader interface {
	GetApproved(id types.TokenID) (types.Address, error)
}

// MetadataResolver maps a token to its metadata URI.
type MetadataResolver interface {
	URI(id types.TokenID) string
}

// EventKind identifies a registry mutation.
type EventKind uint8

// Event kinds.
const (
	EventMint EventKind = iota + 1
	EventTransfer
	EventUnlock
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventMint:
		return "mint"
	case EventTransfer:
		return "transfer"
	case EventUnlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// Event describes a committed mutation. For a mint From is zero; for an
// unlock From and To are both the owner.
type Event struct {
	Kind EventKind
	ID   types.TokenID
	From types.Address
	To   types.Address
	Time time.Time
}

// Observer receives committed events. OnEvent runs while the registry
// write lock is held, so it must not call back into the Registry.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }
