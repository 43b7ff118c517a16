// Package registry implements the time-locked token registry: minting,
// ownership transfer and the commit-reveal unlock that releases a lock
// early.
//
// A locked token cannot change hands while it is LOCKED_PENDING. Either
// gate releases it: reaching the unlock time, or the owner presenting a
// reveal whose hash matches the stored commitment.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aisthisi-art/aisthisi/internal/lock"
	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// Config holds the collaborators of a Registry.
type Config struct {
	// Minters decides who may mint. Required.
	Minters MinterAuthority
	// Owners decides who may transfer a token. Nil means owner only.
	Owners OwnershipAuthority
	// Metadata resolves token URIs. Required.
	Metadata MetadataResolver
	// Clock defaults to SystemClock.
	Clock Clock
	// Hasher is the commitment hash. Defaults to Keccak-256.
	Hasher lock.Hasher
}

// Registry is the authoritative token table. All methods are safe for
// concurrent use: mutations are serialized and readers see only
// committed state.
type Registry struct {
	mu        sync.RWMutex
	store     *Store
	db        storage.DB
	minters   MinterAuthority
	owners    OwnershipAuthority
	metadata  MetadataResolver
	clock     Clock
	verifier  *lock.Verifier
	observers []Observer
	logger    zerolog.Logger
}

// New creates a registry persisting to db.
func New(db storage.DB, cfg Config) (*Registry, error) {
	if cfg.Minters == nil {
		return nil, errors.New("registry: minter authority is required")
	}
	if cfg.Metadata == nil {
		return nil, errors.New("registry: metadata resolver is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &Registry{
		store:    NewStore(db),
		db:       db,
		minters:  cfg.Minters,
		owners:   cfg.Owners,
		metadata: cfg.Metadata,
		clock:    cfg.Clock,
		verifier: lock.NewVerifier(cfg.Hasher),
		logger:   alog.WithComponent("registry"),
	}, nil
}

// Store exposes the underlying token store for read-only collaborators
// such as the approval book.
func (r *Registry) Store() *Store { return r.store }

// Verifier returns the commitment verifier in use.
func (r *Registry) Verifier() *lock.Verifier { return r.verifier }

// Now reads the registry clock.
func (r *Registry) Now() time.Time { return r.clock.Now() }

// Subscribe registers o for committed events.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Mint creates a token with the next free sequential id and returns it.
func (r *Registry) Mint(caller, to types.Address, terms *LockTerms) (types.TokenID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMint(caller, to, terms); err != nil {
		return 0, err
	}
	next, err := r.store.NextID()
	if err != nil {
		return 0, err
	}
	// Skip ids taken by explicit mints.
	for {
		exists, err := r.store.Has(next)
		if err != nil {
			return 0, err
		}
		if !exists {
			break
		}
		next++
	}
	if err := r.mint(caller, to, next, terms, uint64(next)+1); err != nil {
		return 0, err
	}
	return next, nil
}

// MintWithID creates a token under a caller-chosen id.
func (r *Registry) MintWithID(caller, to types.Address, id types.TokenID, terms *LockTerms) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMint(caller, to, terms); err != nil {
		return err
	}
	exists, err := r.store.Has(id)
	if err != nil {
		return err
	}
	if exists {
		r.logger.Debug().Str("id", id.String()).Msg("Rejected mint: duplicate id")
		return fmt.Errorf("token %s: %w", id, ErrDuplicateID)
	}
	return r.mint(caller, to, id, terms, 0)
}

func (r *Registry) checkMint(caller, to types.Address, terms *LockTerms) error {
	if !r.minters.CanMint(caller) {
		r.logger.Debug().Str("caller", caller.String()).Msg("Rejected mint: not a minter")
		return ErrPermissionDenied
	}
	if to.IsZero() {
		return fmt.Errorf("mint to zero address: %w", ErrInvalidRecipient)
	}
	return terms.validate()
}

// mint writes the new token. A non-zero nextID advances the sequential
// allocator in the same batch.
func (r *Registry) mint(caller, to types.Address, id types.TokenID, terms *LockTerms, nextID uint64) error {
	now := r.clock.Now()
	tok := &Token{ID: id, Owner: to, Lock: terms.record()}

	count, err := r.store.Count()
	if err != nil {
		return err
	}

	b := storage.NewBatch(r.db)
	defer b.Discard()
	if err := putToken(b, tok, nil); err != nil {
		return err
	}
	if err := putCounter(b, keyCount, count+1); err != nil {
		return err
	}
	if nextID != 0 {
		if err := putCounter(b, keyNextID, nextID); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("mint commit: %w", err)
	}

	ev := r.logger.Debug().
		Str("id", id.String()).
		Str("minter", caller.String()).
		Str("owner", to.String()).
		Str("state", tok.StateAt(now).String())
	if tok.Lock != nil {
		ev = ev.Time("unlockable_from", tok.Lock.UnlockableFrom)
	}
	ev.Msg("Token minted")

	r.notify(Event{Kind: EventMint, ID: id, To: to, Time: now})
	return nil
}

// Transfer moves token id from from to to. The caller must be the owner
// or approved by the OwnershipAuthority, from must be the current owner,
// and the token must not be LOCKED_PENDING.
func (r *Registry) Transfer(caller, from, to types.Address, id types.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := r.store.Get(id)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("transfer to zero address: %w", ErrInvalidRecipient)
	}

	allowed, err := r.isOwnerOrApproved(caller, tok)
	if err != nil {
		return err
	}
	if !allowed || from != tok.Owner {
		r.logger.Debug().
			Str("id", id.String()).
			Str("caller", caller.String()).
			Str("from", from.String()).
			Msg("Rejected transfer: not owner or approved")
		return fmt.Errorf("token %s: %w", id, ErrNotOwnerOrApproved)
	}

	now := r.clock.Now()
	if tok.StateAt(now) == StateLockedPending {
		r.logger.Debug().
			Str("id", id.String()).
			Time("unlockable_from", tok.Lock.UnlockableFrom).
			Msg("Rejected transfer: token locked")
		return fmt.Errorf("token %s until %s: %w", id,
			tok.Lock.UnlockableFrom.Format(time.RFC3339), ErrTokenLocked)
	}

	prev := tok.Owner
	tok.Owner = to

	b := storage.NewBatch(r.db)
	defer b.Discard()
	if err := putToken(b, tok, &prev); err != nil {
		return err
	}
	if h, ok := r.owners.(TransferHook); ok {
		if err := h.OnTransfer(b, id); err != nil {
			return fmt.Errorf("transfer token %s: %w", id, err)
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("transfer commit: %w", err)
	}

	r.logger.Debug().
		Str("id", id.String()).
		Str("from", prev.String()).
		Str("to", to.String()).
		Msg("Token transferred")

	r.notify(Event{Kind: EventTransfer, ID: id, From: prev, To: to, Time: now})
	return nil
}

func (r *Registry) isOwnerOrApproved(caller types.Address, tok *Token) (bool, error) {
	if r.owners == nil {
		return caller == tok.Owner, nil
	}
	ok, err := r.owners.IsOwnerOrApproved(caller, tok.ID)
	if err != nil {
		return false, fmt.Errorf("ownership check: %w", err)
	}
	return ok, nil
}

// Unlock opens the lock of token id when reveal hashes to its
// commitment. Only the owner may unlock. Unlocking an already unlocked
// token succeeds without checking the reveal. The unlock time is not
// consulted.
func (r *Registry) Unlock(requester types.Address, id types.TokenID, reveal []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := r.store.Get(id)
	if err != nil {
		return err
	}
	if requester != tok.Owner {
		r.logger.Debug().
			Str("id", id.String()).
			Str("requester", requester.String()).
			Msg("Rejected unlock: not the owner")
		return fmt.Errorf("token %s: %w", id, ErrNotTokenOwner)
	}
	if tok.Lock == nil {
		return fmt.Errorf("token %s: %w", id, ErrNoActiveLock)
	}
	if tok.Lock.Unlocked {
		return nil
	}
	if !r.verifier.Verify(reveal, tok.Lock.Commitment) {
		r.logger.Debug().Str("id", id.String()).Msg("Rejected unlock: invalid code")
		return fmt.Errorf("token %s: %w", id, ErrInvalidUnlockCode)
	}

	now := r.clock.Now()
	tok.Lock.Unlocked = true

	b := storage.NewBatch(r.db)
	defer b.Discard()
	if err := putToken(b, tok, nil); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("unlock commit: %w", err)
	}

	r.logger.Debug().Str("id", id.String()).Msg("Token unlocked")

	r.notify(Event{Kind: EventUnlock, ID: id, From: tok.Owner, To: tok.Owner, Time: now})
	return nil
}

// notify must be called with the write lock held.
func (r *Registry) notify(e Event) {
	for _, o := range r.observers {
		o.OnEvent(e)
	}
}

// StateOf returns the lock state of token id at now.
func (r *Registry) StateOf(id types.TokenID, now time.Time) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, err := r.store.Get(id)
	if err != nil {
		return 0, err
	}
	return tok.StateAt(now), nil
}

// IsTransferEligible reports whether token id may change hands at now.
func (r *Registry) IsTransferEligible(id types.TokenID, now time.Time) (bool, error) {
	state, err := r.StateOf(id, now)
	if err != nil {
		return false, err
	}
	return state != StateLockedPending, nil
}

// OwnerOf returns the current owner of token id.
func (r *Registry) OwnerOf(id types.TokenID) (types.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.OwnerOf(id)
}

// TokenURI returns the metadata URI of an existing token.
func (r *Registry) TokenURI(id types.TokenID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exists, err := r.store.Has(id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("token %s: %w", id, ErrUnknownToken)
	}
	return r.metadata.URI(id), nil
}

// Token returns a snapshot of token id.
func (r *Registry) Token(id types.TokenID) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(id)
}

// Count returns the number of minted tokens.
func (r *Registry) Count() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Count()
}

// List returns all tokens in ascending id order.
func (r *Registry) List() ([]*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.List()
}

// TokensOf returns the tokens held by owner in ascending id order.
func (r *Registry) TokensOf(owner types.Address) ([]*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokensOf(owner)
}

func (r *Registry) tokensOf(owner types.Address) ([]*Token, error) {
	ids, err := r.store.IDsOf(owner)
	if err != nil {
		return nil, err
	}
	tokens := make([]*Token, 0, len(ids))
	for _, id := range ids {
		tok, err := r.store.Get(id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// BalanceOf returns the number of tokens held by owner.
func (r *Registry) BalanceOf(owner types.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.store.IDsOf(owner)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// TokenView is a token together with its metadata URI and approved
// account, all read under one lock.
type TokenView struct {
	*Token
	URI      string
	Approved types.Address
}

// View returns a view of token id.
func (r *Registry) View(id types.TokenID) (*TokenView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}
	return r.view(tok)
}

// Views returns views of every token in ascending id order. A non-nil
// owner limits the result to the tokens it holds.
func (r *Registry) Views(owner *types.Address) ([]*TokenView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		tokens []*Token
		err    error
	)
	if owner != nil {
		tokens, err = r.tokensOf(*owner)
	} else {
		tokens, err = r.store.List()
	}
	if err != nil {
		return nil, err
	}
	views := make([]*TokenView, 0, len(tokens))
	for _, tok := range tokens {
		v, err := r.view(tok)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *Registry) view(tok *Token) (*TokenView, error) {
	v := &TokenView{Token: tok, URI: r.metadata.URI(tok.ID)}
	if a, ok := r.owners.(ApprovalReader); ok {
		approved, err := a.GetApproved(tok.ID)
		if err != nil {
			return nil, fmt.Errorf("token %s approval: %w", tok.ID, err)
		}
		v.Approved = approved
	}
	return v, nil
}
