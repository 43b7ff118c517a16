// Package access manages the registry's minter role.
//
// One admin account, fixed at genesis, grants and revokes the minter role.
// The admin may always mint.
package access

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

var (
	keyAdmin     = []byte("admin")
	prefixMinter = []byte("m/") // m/<account(20)> -> empty
)

// Role errors. ErrNotAdmin matches registry.ErrPermissionDenied.
var (
	ErrNotAdmin       = fmt.Errorf("caller is not the admin: %w", registry.ErrPermissionDenied)
	ErrNoAdmin        = errors.New("roles not initialized")
	ErrAlreadySeeded  = errors.New("roles already initialized")
	ErrInvalidAccount = errors.New("invalid account")
)

// Roles is a persistent minter role table.
type Roles struct {
	mu     sync.RWMutex
	db     storage.DB
	logger zerolog.Logger
}

// NewRoles opens the role table stored in db.
func NewRoles(db storage.DB) *Roles {
	return &Roles{db: db, logger: alog.WithComponent("access")}
}

// Seed stores the admin and initial minters. It fails with
// ErrAlreadySeeded when an admin is already recorded.
func (r *Roles) Seed(admin types.Address, minters []types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if admin.IsZero() {
		return fmt.Errorf("admin: %w", ErrInvalidAccount)
	}
	exists, err := r.db.Has(keyAdmin)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadySeeded
	}

	b := storage.NewBatch(r.db)
	defer b.Discard()
	if err := b.Put(keyAdmin, admin.Bytes()); err != nil {
		return err
	}
	for _, m := range minters {
		if m.IsZero() {
			return fmt.Errorf("minter: %w", ErrInvalidAccount)
		}
		if err := b.Put(minterKey(m), []byte{}); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("roles seed: %w", err)
	}
	r.logger.Info().
		Str("admin", admin.String()).
		Int("minters", len(minters)).
		Msg("Roles initialized")
	return nil
}

// Admin returns the admin account.
func (r *Roles) Admin() (types.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin()
}

func (r *Roles) admin() (types.Address, error) {
	data, err := r.db.Get(keyAdmin)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Address{}, ErrNoAdmin
	}
	if err != nil {
		return types.Address{}, err
	}
	var a types.Address
	if len(data) != types.AddressSize {
		return a, fmt.Errorf("corrupt admin record (%d bytes)", len(data))
	}
	copy(a[:], data)
	return a, nil
}

// GrantMinter gives account the minter role. Only the admin may call it.
func (r *Roles) GrantMinter(caller, account types.Address) error {
	return r.setMinter(caller, account, true)
}

// RevokeMinter removes the minter role from account. Only the admin may
// call it. Revoking an account without the role is a no-op.
func (r *Roles) RevokeMinter(caller, account types.Address) error {
	return r.setMinter(caller, account, false)
}

func (r *Roles) setMinter(caller, account types.Address, grant bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, err := r.admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrNotAdmin
	}
	if account.IsZero() {
		return fmt.Errorf("minter: %w", ErrInvalidAccount)
	}

	if grant {
		err = r.db.Put(minterKey(account), []byte{})
	} else {
		err = r.db.Delete(minterKey(account))
	}
	if err != nil {
		return fmt.Errorf("minter update: %w", err)
	}
	r.logger.Info().
		Str("account", account.String()).
		Bool("granted", grant).
		Msg("Minter role updated")
	return nil
}

// IsMinter reports whether account holds the minter role.
func (r *Roles) IsMinter(account types.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db.Has(minterKey(account))
}

// CanMint reports whether account may mint: the admin or any minter.
// Storage errors deny.
func (r *Roles) CanMint(account types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if admin, err := r.admin(); err == nil && admin == account {
		return true
	}
	ok, err := r.db.Has(minterKey(account))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Minter lookup failed")
		return false
	}
	return ok
}

// Minters lists accounts holding the minter role, in key order.
func (r *Roles) Minters() ([]types.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []types.Address{}
	err := r.db.ForEach(prefixMinter, func(key, _ []byte) error {
		if len(key) != len(prefixMinter)+types.AddressSize {
			return nil // Malformed key, skip.
		}
		var a types.Address
		copy(a[:], key[len(prefixMinter):])
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func minterKey(a types.Address) []byte {
	key := make([]byte, 0, len(prefixMinter)+types.AddressSize)
	key = append(key, prefixMinter...)
	return append(key, a[:]...)
}

var _ registry.MinterAuthority = (*Roles)(nil)
