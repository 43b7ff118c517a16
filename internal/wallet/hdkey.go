package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/aisthisi-art/aisthisi/pkg/crypto"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// Identity keys live at m/44'/CoinTypeAisthisi'/account'/0/index.
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeAisthisi is the coin type of registry identities (hardened).
	// The value is shared with the testnet genesis identity.
	CoinTypeAisthisi = bip32.FirstHardenedChild + 8888

	// identityChain is the BIP-44 external chain. Registry identities have
	// no change addresses.
	identityChain = 0
)

// HDKey is a BIP-32 extended key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of child indices. Add
// bip32.FirstHardenedChild to an index for hardened derivation.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveIdentity derives identity index of account.
func (k *HDKey) DeriveIdentity(account, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeAisthisi,
		bip32.FirstHardenedChild+account,
		identityChain,
		index,
	)
}

// IdentityPath returns the derivation path of an identity as text.
func IdentityPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/%d/%d",
		CoinTypeAisthisi-bip32.FirstHardenedChild, account, identityChain, index)
}

// PrivateKeyBytes returns the raw 32-byte private key, nil for a
// public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 stores private keys as 33 bytes with a leading zero.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// Signer returns the request signer of this key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot sign with a public-only key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// Address returns the registry address of this key.
func (k *HDKey) Address() types.Address {
	return crypto.AddressFromPubKey(k.PublicKeyBytes())
}

// IsPrivate reports whether the key holds a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth, 0 for the master key.
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-only copy.
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}
