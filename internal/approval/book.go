// Package approval tracks who, besides the owner, may transfer a token.
//
// Two kinds of delegation exist: a single approved account per token,
// cleared whenever the token changes hands, and operators that act for an
// owner across all of their tokens.
package approval

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/registry"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// Keys live in the registry's token keyspace, next to the tokens, so a
// transfer can clear an approval in its own batch.
var (
	prefixApproved = []byte("ap/") // ap/<id(8)> -> approved(20)
	prefixOperator = []byte("ao/") // ao/<owner(20)><operator(20)> -> empty
)

// Approval errors.
var (
	ErrApproveToOwner  = errors.New("approval to current owner")
	ErrApproveToCaller = errors.New("operator is the caller")
)

// OwnerLookup resolves the current owner of a token.
type OwnerLookup interface {
	OwnerOf(id types.TokenID) (types.Address, error)
}

// Book stores approvals and answers ownership checks for the registry.
type Book struct {
	mu     sync.RWMutex
	db     storage.DB
	owners OwnerLookup
	logger zerolog.Logger
}

// NewBook creates an approval book over db, which must be the database
// the registry stores its tokens in. owners must read committed registry
// state without taking the registry lock; registry.Store does.
func NewBook(db storage.DB, owners OwnerLookup) *Book {
	return &Book{db: db, owners: owners, logger: alog.WithComponent("approval")}
}

// Approve lets approved transfer token id. The caller must be the owner
// or an operator of the owner. A zero approved clears the approval.
func (b *Book) Approve(caller, approved types.Address, id types.TokenID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	owner, err := b.owners.OwnerOf(id)
	if err != nil {
		return err
	}
	if approved == owner {
		return ErrApproveToOwner
	}
	if caller != owner {
		ok, err := b.isOperator(owner, caller)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("approve token %s: %w", id, registry.ErrNotOwnerOrApproved)
		}
	}

	if approved.IsZero() {
		err = b.db.Delete(approvedKey(id))
	} else {
		err = b.db.Put(approvedKey(id), approved.Bytes())
	}
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	b.logger.Debug().
		Str("id", id.String()).
		Str("approved", approved.String()).
		Msg("Token approval set")
	return nil
}

// GetApproved returns the approved account of token id, or the zero
// address when none is set.
func (b *Book) GetApproved(id types.TokenID) (types.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.owners.OwnerOf(id); err != nil {
		return types.Address{}, err
	}
	return b.getApproved(id)
}

func (b *Book) getApproved(id types.TokenID) (types.Address, error) {
	data, err := b.db.Get(approvedKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Address{}, nil
	}
	if err != nil {
		return types.Address{}, err
	}
	var a types.Address
	copy(a[:], data)
	return a, nil
}

// SetApprovalForAll makes operator able to move every token of owner.
func (b *Book) SetApprovalForAll(owner, operator types.Address, approved bool) error {
	if owner == operator {
		return ErrApproveToCaller
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if approved {
		err = b.db.Put(operatorKey(owner, operator), []byte{})
	} else {
		err = b.db.Delete(operatorKey(owner, operator))
	}
	if err != nil {
		return fmt.Errorf("set operator: %w", err)
	}
	b.logger.Debug().
		Str("owner", owner.String()).
		Str("operator", operator.String()).
		Bool("approved", approved).
		Msg("Operator approval set")
	return nil
}

// IsApprovedForAll reports whether operator acts for owner.
func (b *Book) IsApprovedForAll(owner, operator types.Address) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isOperator(owner, operator)
}

func (b *Book) isOperator(owner, operator types.Address) (bool, error) {
	return b.db.Has(operatorKey(owner, operator))
}

// IsOwnerOrApproved reports whether caller is the owner of id, its
// approved account, or an operator of its owner.
func (b *Book) IsOwnerOrApproved(caller types.Address, id types.TokenID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	owner, err := b.owners.OwnerOf(id)
	if err != nil {
		return false, err
	}
	if caller == owner {
		return true, nil
	}
	approved, err := b.getApproved(id)
	if err != nil {
		return false, err
	}
	if !approved.IsZero() && approved == caller {
		return true, nil
	}
	return b.isOperator(owner, caller)
}

// OnTransfer clears the per-token approval in the batch that moves the
// token.
func (b *Book) OnTransfer(batch storage.Batch, id types.TokenID) error {
	if err := batch.Delete(approvedKey(id)); err != nil {
		return fmt.Errorf("clear approval: %w", err)
	}
	b.logger.Debug().Str("id", id.String()).Msg("Token approval cleared")
	return nil
}

func approvedKey(id types.TokenID) []byte {
	key := make([]byte, 0, len(prefixApproved)+types.TokenIDSize)
	key = append(key, prefixApproved...)
	return append(key, id.Key()...)
}

func operatorKey(owner, operator types.Address) []byte {
	key := make([]byte, 0, len(prefixOperator)+2*types.AddressSize)
	key = append(key, prefixOperator...)
	key = append(key, owner[:]...)
	return append(key, operator[:]...)
}

var (
	_ registry.OwnershipAuthority = (*Book)(nil)
	_ registry.TransferHook       = (*Book)(nil)
)
