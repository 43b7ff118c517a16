package wallet

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func testSeedBytes(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func TestKeystore_CreateAndLoad(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)
	password := []byte("test-password")

	if err := ks.Create("collector", seed, password, fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	loaded, err := ks.Load("collector", password)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed does not match original")
	}

	if err := ks.Create("collector", seed, password, fastParams()); !errors.Is(err, ErrWalletExists) {
		t.Errorf("duplicate Create() error = %v, want ErrWalletExists", err)
	}
}

func TestKeystore_LoadErrors(t *testing.T) {
	ks := testKeystore(t)
	if err := ks.Create("w", testSeedBytes(t), []byte("right"), fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := ks.Load("w", []byte("wrong")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
	}
	if _, err := ks.Load("missing", []byte("right")); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("missing wallet error = %v, want ErrWalletNotFound", err)
	}
	if _, err := ks.Load("../escape", []byte("right")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("path name error = %v, want ErrInvalidName", err)
	}
}

func TestKeystore_ListAndDelete(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeedBytes(t)

	for _, name := range []string{"beta", "alpha"} {
		if err := ks.Create(name, seed, []byte("pw"), fastParams()); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
	}
	// Stray files are ignored.
	os.WriteFile(filepath.Join(ks.path, "notes.txt"), []byte("x"), 0600)

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("List() = %v, want [alpha beta]", names)
	}

	if err := ks.Delete("alpha"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := ks.Delete("alpha"); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("second Delete() error = %v, want ErrWalletNotFound", err)
	}
	names, _ = ks.List()
	if len(names) != 1 || names[0] != "beta" {
		t.Errorf("List() after delete = %v, want [beta]", names)
	}
}

func TestKeystore_FilePermissions(t *testing.T) {
	ks := testKeystore(t)
	if err := ks.Create("secure", testSeedBytes(t), []byte("pw"), fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(ks.path, "secure.wallet"))
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("wallet file permissions = %o, want 0600", perm)
	}
}

func TestKeystore_Identities(t *testing.T) {
	ks := testKeystore(t)
	password := []byte("pw")
	if err := ks.Create("admin", testSeedBytes(t), password, fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	first, err := ks.NewIdentity("admin", password, "registry admin")
	if err != nil {
		t.Fatalf("NewIdentity() error: %v", err)
	}
	if first.Index != 0 || first.PubKey != config.TestnetAdminPubKey {
		t.Fatalf("first identity = %+v, want index 0 with the testnet admin key", first)
	}

	second, err := ks.NewIdentity("admin", password, "gallery")
	if err != nil {
		t.Fatalf("NewIdentity() error: %v", err)
	}
	if second.Index != 1 || second.Address == first.Address {
		t.Fatalf("second identity = %+v", second)
	}

	ids, err := ks.Identities("admin")
	if err != nil {
		t.Fatalf("Identities() error: %v", err)
	}
	if len(ids) != 2 || ids[1].Name != "gallery" {
		t.Fatalf("Identities() = %+v", ids)
	}

	if _, err := ks.NewIdentity("admin", []byte("wrong"), "x"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("NewIdentity() with wrong password error = %v", err)
	}
	if ids, _ := ks.Identities("admin"); len(ids) != 2 {
		t.Errorf("failed derivation should not record an identity, have %d", len(ids))
	}
}

func TestKeystore_Signer(t *testing.T) {
	ks := testKeystore(t)
	password := []byte("pw")
	if err := ks.Create("w", testSeedBytes(t), password, fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	id, err := ks.NewIdentity("w", password, "")
	if err != nil {
		t.Fatalf("NewIdentity() error: %v", err)
	}

	signer, err := ks.Signer("w", password, id.Index)
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if got := crypto.AddressFromPubKey(signer.PublicKey()).String(); got != id.Address {
		t.Errorf("signer address = %s, want %s", got, id.Address)
	}

	if _, err := ks.Signer("w", []byte("nope"), 0); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Signer() with wrong password error = %v", err)
	}
}
