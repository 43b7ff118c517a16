package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aisthisi-art/aisthisi/internal/lock"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

var (
	admin  = types.Address{0xad}
	alice  = types.Address{0xa1}
	bob    = types.Address{0xb0}
	carol  = types.Address{0xc0}
	epoch  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hasher = lock.Keccak256
)

type minterSet map[types.Address]bool

func (m minterSet) CanMint(a types.Address) bool { return m[a] }

type uriFunc func(types.TokenID) string

func (f uriFunc) URI(id types.TokenID) string { return f(id) }

type approvals map[types.Address]bool

func (a approvals) IsOwnerOrApproved(caller types.Address, _ types.TokenID) (bool, error) {
	return a[caller], nil
}

type failingAuthority struct{}

func (failingAuthority) IsOwnerOrApproved(types.Address, types.TokenID) (bool, error) {
	return false, errors.New("authority offline")
}

func newTestRegistry(t *testing.T) (*Registry, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	r, err := New(storage.NewMemory(), Config{
		Minters: minterSet{admin: true},
		Metadata: uriFunc(func(id types.TokenID) string {
			return "https://aisthisi.art/metadata/" + id.String() + ".json"
		}),
		Clock:  clock,
		Hasher: hasher,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, clock
}

func commitment(password string) types.Hash {
	return lock.NewVerifier(hasher).NewCommitment([]byte(password))
}

func reveal(password string) []byte {
	h := hasher.Sum([]byte(password))
	return h[:]
}

func lockedFor(d time.Duration, password string) *LockTerms {
	c := commitment(password)
	return &LockTerms{UnlockableFrom: epoch.Add(d), Commitment: &c}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(storage.NewMemory(), Config{Metadata: uriFunc(nil)}); err == nil {
		t.Error("expected error without minter authority")
	}
	if _, err := New(storage.NewMemory(), Config{Minters: minterSet{}}); err == nil {
		t.Error("expected error without metadata resolver")
	}
}

func TestMint_SequentialIDs(t *testing.T) {
	r, _ := newTestRegistry(t)

	for want := types.TokenID(0); want < 3; want++ {
		id, err := r.Mint(admin, alice, nil)
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		if id != want {
			t.Errorf("id = %d, want %d", id, want)
		}
	}
	if n, _ := r.Count(); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestMint_PermissionDenied(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Mint(alice, alice, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if n, _ := r.Count(); n != 0 {
		t.Errorf("Count = %d after rejected mint", n)
	}
}

func TestMint_ZeroRecipient(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Mint(admin, types.Address{}, nil); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
}

func TestMintWithID(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.MintWithID(admin, alice, 1, nil); err != nil {
		t.Fatalf("MintWithID: %v", err)
	}
	if err := r.MintWithID(admin, bob, 1, nil); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if owner, _ := r.OwnerOf(1); owner != alice {
		t.Errorf("duplicate mint changed owner to %s", owner)
	}

	// Sequential allocation skips the explicitly taken id.
	ids := []types.TokenID{}
	for i := 0; i < 2; i++ {
		id, err := r.Mint(admin, bob, nil)
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		ids = append(ids, id)
	}
	if ids[0] != 0 || ids[1] != 2 {
		t.Errorf("ids = %v, want [0 2]", ids)
	}
}

func TestMint_LockRequiresBothTerms(t *testing.T) {
	r, _ := newTestRegistry(t)
	c := commitment("test")

	tests := []struct {
		name   string
		terms  *LockTerms
		locked bool
	}{
		{"no terms", nil, false},
		{"time only", &LockTerms{UnlockableFrom: epoch.Add(time.Hour)}, false},
		{"commitment only", &LockTerms{Commitment: &c}, false},
		{"both", lockedFor(time.Hour, "test"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.Mint(admin, alice, tt.terms)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}
			tok, _ := r.Token(id)
			if (tok.Lock != nil) != tt.locked {
				t.Errorf("lock present = %v, want %v", tok.Lock != nil, tt.locked)
			}
		})
	}
}

func TestMint_ZeroCommitmentRejected(t *testing.T) {
	r, _ := newTestRegistry(t)
	var zero types.Hash

	terms := &LockTerms{UnlockableFrom: epoch.Add(time.Hour), Commitment: &zero}
	if _, err := r.Mint(admin, alice, terms); !errors.Is(err, ErrInvalidLockTerms) {
		t.Fatalf("Mint: err = %v, want ErrInvalidLockTerms", err)
	}
	if err := r.MintWithID(admin, alice, 7, terms); !errors.Is(err, ErrInvalidLockTerms) {
		t.Fatalf("MintWithID: err = %v, want ErrInvalidLockTerms", err)
	}
	if n, _ := r.Count(); n != 0 {
		t.Errorf("Count = %d after rejected mints", n)
	}
	if bal, _ := r.BalanceOf(alice); bal != 0 {
		t.Errorf("BalanceOf = %d after rejected mints", bal)
	}
}

func TestMint_InitialState(t *testing.T) {
	r, clock := newTestRegistry(t)

	pending, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))
	releasable, _ := r.Mint(admin, alice, lockedFor(-time.Hour, "test"))
	free, _ := r.Mint(admin, alice, nil)

	tests := []struct {
		id   types.TokenID
		want State
	}{
		{pending, StateLockedPending},
		{releasable, StateLockedReleasable},
		{free, StateUnlocked},
	}
	for _, tt := range tests {
		got, err := r.StateOf(tt.id, clock.Now())
		if err != nil {
			t.Fatalf("StateOf(%d): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("StateOf(%d) = %s, want %s", tt.id, got, tt.want)
		}
	}

	eligible, _ := r.IsTransferEligible(pending, clock.Now())
	if eligible {
		t.Error("pending token should not be transfer eligible")
	}
	eligible, _ = r.IsTransferEligible(pending, epoch.Add(time.Hour))
	if !eligible {
		t.Error("token should be eligible exactly at unlockable_from")
	}
}

func TestTransfer_TimeGateAlone(t *testing.T) {
	r, clock := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(3*time.Second, "test"))

	err := r.Transfer(alice, alice, bob, id)
	if !errors.Is(err, ErrTokenLocked) {
		t.Fatalf("err = %v, want ErrTokenLocked", err)
	}
	if owner, _ := r.OwnerOf(id); owner != alice {
		t.Fatalf("owner changed after rejected transfer: %s", owner)
	}

	clock.Advance(3 * time.Second)
	if err := r.Transfer(alice, alice, bob, id); err != nil {
		t.Fatalf("Transfer after unlock time: %v", err)
	}
	if owner, _ := r.OwnerOf(id); owner != bob {
		t.Errorf("owner = %s, want bob", owner)
	}

	// The lock stays recorded as not unlocked; time alone released it.
	tok, _ := r.Token(id)
	if tok.Lock == nil || tok.Lock.Unlocked {
		t.Errorf("lock record = %+v, want present and not unlocked", tok.Lock)
	}
}

func TestTransfer_NotOwnerOrApproved(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, nil)

	tests := []struct {
		name   string
		caller types.Address
		from   types.Address
	}{
		{"stranger", carol, alice},
		{"stranger claiming to be from stranger", carol, carol},
		{"owner with wrong from", alice, bob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Transfer(tt.caller, tt.from, bob, id)
			if !errors.Is(err, ErrNotOwnerOrApproved) {
				t.Fatalf("err = %v, want ErrNotOwnerOrApproved", err)
			}
		})
	}
}

func TestTransfer_OwnershipCheckedBeforeLock(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))

	if err := r.Transfer(carol, alice, bob, id); !errors.Is(err, ErrNotOwnerOrApproved) {
		t.Fatalf("err = %v, want ErrNotOwnerOrApproved", err)
	}
}

func TestTransfer_ApprovedDelegate(t *testing.T) {
	clock := NewManualClock(epoch)
	r, err := New(storage.NewMemory(), Config{
		Minters:  minterSet{admin: true},
		Owners:   approvals{carol: true},
		Metadata: uriFunc(func(types.TokenID) string { return "" }),
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))

	if err := r.Transfer(carol, alice, bob, id); !errors.Is(err, ErrTokenLocked) {
		t.Fatalf("delegate on locked token: err = %v, want ErrTokenLocked", err)
	}
	clock.Advance(time.Hour)
	if err := r.Transfer(carol, alice, bob, id); err != nil {
		t.Fatalf("delegate transfer: %v", err)
	}
	if owner, _ := r.OwnerOf(id); owner != bob {
		t.Errorf("owner = %s, want bob", owner)
	}
}

func TestTransfer_AuthorityError(t *testing.T) {
	r, err := New(storage.NewMemory(), Config{
		Minters:  minterSet{admin: true},
		Owners:   failingAuthority{},
		Metadata: uriFunc(func(types.TokenID) string { return "" }),
		Clock:    NewManualClock(epoch),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, _ := r.Mint(admin, alice, nil)

	err = r.Transfer(alice, alice, bob, id)
	if err == nil || errors.Is(err, ErrNotOwnerOrApproved) {
		t.Fatalf("err = %v, want authority failure", err)
	}
}

func TestTransfer_UnknownAndZeroRecipient(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.Transfer(alice, alice, bob, 9); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("err = %v, want ErrUnknownToken", err)
	}

	id, _ := r.Mint(admin, alice, nil)
	if err := r.Transfer(alice, alice, types.Address{}, id); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("err = %v, want ErrInvalidRecipient", err)
	}
}

func TestUnlock_RequiresOwner(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))

	// Correct reveal from the wrong identity.
	if err := r.Unlock(bob, id, reveal("test")); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("err = %v, want ErrNotTokenOwner", err)
	}
	if state, _ := r.StateOf(id, epoch); state != StateLockedPending {
		t.Errorf("state = %s after rejected unlock", state)
	}
}

func TestUnlock_InvalidCodeLeavesStateUnchanged(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))
	before, _ := r.Token(id)

	if err := r.Unlock(alice, id, reveal("Santa Lucia")); !errors.Is(err, ErrInvalidUnlockCode) {
		t.Fatalf("err = %v, want ErrInvalidUnlockCode", err)
	}
	// The commitment itself is not a valid reveal.
	c := commitment("test")
	if err := r.Unlock(alice, id, c[:]); !errors.Is(err, ErrInvalidUnlockCode) {
		t.Fatalf("commitment replay: err = %v, want ErrInvalidUnlockCode", err)
	}

	after, _ := r.Token(id)
	if *after.Lock != *before.Lock || after.Owner != before.Owner {
		t.Errorf("token changed: before %+v, after %+v", before.Lock, after.Lock)
	}
}

func TestUnlock_NoActiveLockAndUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, nil)

	if err := r.Unlock(alice, id, reveal("test")); !errors.Is(err, ErrNoActiveLock) {
		t.Errorf("err = %v, want ErrNoActiveLock", err)
	}
	if err := r.Unlock(alice, 42, reveal("test")); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("err = %v, want ErrUnknownToken", err)
	}
}

func TestUnlock_ThenTransferBeforeUnlockTime(t *testing.T) {
	r, clock := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(24*time.Hour, "test"))

	if err := r.Unlock(alice, id, reveal("test")); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if state, _ := r.StateOf(id, clock.Now()); state != StateUnlocked {
		t.Fatalf("state = %s, want UNLOCKED", state)
	}
	if err := r.Transfer(alice, alice, bob, id); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if owner, _ := r.OwnerOf(id); owner != bob {
		t.Errorf("owner = %s, want bob", owner)
	}

	// UNLOCKED is terminal: the new owner inherits an open token.
	if err := r.Transfer(bob, bob, carol, id); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))

	if err := r.Unlock(alice, id, reveal("test")); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := r.Unlock(alice, id, reveal("test")); err != nil {
		t.Errorf("repeat unlock: %v", err)
	}
	if err := r.Unlock(alice, id, reveal("wrong")); err != nil {
		t.Errorf("unlock of unlocked token with wrong code: %v", err)
	}
	// Ownership is still enforced.
	if err := r.Unlock(bob, id, reveal("test")); !errors.Is(err, ErrNotTokenOwner) {
		t.Errorf("err = %v, want ErrNotTokenOwner", err)
	}
}

func TestTokenURI(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.TokenURI(0); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("err = %v, want ErrUnknownToken", err)
	}

	r.Mint(admin, alice, nil)
	uri, err := r.TokenURI(0)
	if err != nil {
		t.Fatalf("TokenURI: %v", err)
	}
	if uri != "https://aisthisi.art/metadata/0.json" {
		t.Errorf("uri = %q", uri)
	}
}

func TestBalanceAndEnumeration(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Mint(admin, alice, nil)
	r.Mint(admin, alice, nil)
	r.Mint(admin, bob, nil)

	if err := r.Transfer(alice, alice, bob, 0); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if n, _ := r.BalanceOf(alice); n != 1 {
		t.Errorf("BalanceOf(alice) = %d, want 1", n)
	}
	if n, _ := r.BalanceOf(bob); n != 2 {
		t.Errorf("BalanceOf(bob) = %d, want 2", n)
	}
	if n, _ := r.BalanceOf(carol); n != 0 {
		t.Errorf("BalanceOf(carol) = %d, want 0", n)
	}

	held, err := r.TokensOf(bob)
	if err != nil {
		t.Fatalf("TokensOf: %v", err)
	}
	if len(held) != 2 || held[0].ID != 0 || held[1].ID != 2 {
		t.Errorf("TokensOf(bob) = %+v", held)
	}

	all, _ := r.List()
	if len(all) != 3 {
		t.Fatalf("List len = %d, want 3", len(all))
	}
	for i, tok := range all {
		if tok.ID != types.TokenID(i) {
			t.Errorf("List[%d].ID = %d", i, tok.ID)
		}
	}
}

// lockCheckingReader approves carol for every token and records whether the
// registry lock was free while it was asked.
type lockCheckingReader struct {
	approvals
	r        *Registry
	unlocked bool
}

func (a *lockCheckingReader) GetApproved(types.TokenID) (types.Address, error) {
	if a.r.mu.TryLock() {
		a.r.mu.Unlock()
		a.unlocked = true
	}
	return carol, nil
}

func TestViews(t *testing.T) {
	reader := &lockCheckingReader{approvals: approvals{}}
	r, err := New(storage.NewMemory(), Config{
		Minters: minterSet{admin: true},
		Owners:  reader,
		Metadata: uriFunc(func(id types.TokenID) string {
			return "ipfs://meta/" + id.String()
		}),
		Clock: NewManualClock(epoch),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reader.r = r
	r.Mint(admin, alice, nil)
	r.Mint(admin, bob, lockedFor(time.Hour, "test"))

	if _, err := r.View(9); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("View(9): err = %v, want ErrUnknownToken", err)
	}
	v, err := r.View(1)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Owner != bob || v.Lock == nil || v.URI != "ipfs://meta/1" || v.Approved != carol {
		t.Errorf("View(1) = %+v", v)
	}

	all, err := r.Views(nil)
	if err != nil {
		t.Fatalf("Views: %v", err)
	}
	if len(all) != 2 || all[0].URI != "ipfs://meta/0" || all[1].URI != "ipfs://meta/1" {
		t.Errorf("Views(nil) = %+v", all)
	}
	held, err := r.Views(&alice)
	if err != nil {
		t.Fatalf("Views(alice): %v", err)
	}
	if len(held) != 1 || held[0].ID != 0 || held[0].Owner != alice {
		t.Errorf("Views(alice) = %+v", held)
	}
	if reader.unlocked {
		t.Error("approval read without the registry lock held")
	}
}

func TestObserver_ReceivesCommittedEvents(t *testing.T) {
	r, clock := newTestRegistry(t)
	var events []Event
	r.Subscribe(ObserverFunc(func(e Event) { events = append(events, e) }))

	id, _ := r.Mint(admin, alice, lockedFor(time.Hour, "test"))
	r.Transfer(alice, alice, bob, id) // rejected: locked
	r.Unlock(alice, id, reveal("test"))
	clock.Advance(time.Minute)
	r.Transfer(alice, alice, bob, id)

	want := []EventKind{EventMint, EventUnlock, EventTransfer}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d = %s, want %s", i, events[i].Kind, k)
		}
	}
	last := events[2]
	if last.From != alice || last.To != bob || !last.Time.Equal(epoch.Add(time.Minute)) {
		t.Errorf("transfer event = %+v", last)
	}
}

// Locked mint, early transfer attempts, then both release paths.
func TestScenario_LockedMintTransferUnlock(t *testing.T) {
	r, clock := newTestRegistry(t)

	id, err := r.Mint(admin, alice, lockedFor(3*time.Second, "test"))
	if err != nil || id != 0 {
		t.Fatalf("Mint = %d, %v", id, err)
	}

	if err := r.Transfer(alice, alice, bob, 0); !errors.Is(err, ErrTokenLocked) {
		t.Fatalf("immediate transfer: err = %v, want ErrTokenLocked", err)
	}
	if err := r.Unlock(bob, 0, reveal("test")); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("unlock by non-owner: err = %v", err)
	}
	if err := r.Unlock(alice, 0, reveal("Santa Lucia")); !errors.Is(err, ErrInvalidUnlockCode) {
		t.Fatalf("unlock with wrong code: err = %v", err)
	}

	clock.Advance(4 * time.Second)
	if err := r.Transfer(alice, alice, bob, 0); err != nil {
		t.Fatalf("transfer after unlock time: %v", err)
	}
	if err := r.Transfer(bob, bob, alice, 0); err != nil {
		t.Fatalf("transfer back: %v", err)
	}
	if err := r.Unlock(alice, 0, reveal("test")); err != nil {
		t.Fatalf("unlock with correct code: %v", err)
	}
}

func TestConcurrentTransfersSerialize(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Mint(admin, alice, nil)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Transfer(alice, alice, bob, id)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrNotOwnerOrApproved) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d transfers succeeded, want exactly 1", ok)
	}
	if n, _ := r.BalanceOf(bob); n != 1 {
		t.Errorf("BalanceOf(bob) = %d, want 1", n)
	}
}
