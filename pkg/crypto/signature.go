package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// PubKeySize is the length of a compressed secp256k1 public key.
const PubKeySize = 33

// Signer signs request digests on behalf of a registry account.
type Signer interface {
	// Sign produces a Schnorr signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed public key.
	PublicKey() []byte
}

// PrivateKey is an account key. Keys are created by the wallet or
// restored from a keystore and never leave the process.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random account key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes restores an account key from its 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Sign produces a Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Address returns the registry account controlled by the key.
func (pk *PrivateKey) Address() types.Address {
	return AddressFromPubKey(pk.PublicKey())
}

// Zero wipes the key. The key is unusable afterwards.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// SignRequest authorizes a registry request: s signs the digest binding
// method, payload and nonce.
func SignRequest(s Signer, method string, payload []byte, nonce uint64) ([]byte, error) {
	digest := RequestDigest(method, payload, nonce)
	sig, err := s.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", method, err)
	}
	return sig, nil
}

// VerifyRequest checks a request signature and returns the account that
// produced it. ok is false on any malformed input.
func VerifyRequest(method string, payload []byte, nonce uint64, signature, pubKey []byte) (caller types.Address, ok bool) {
	if len(pubKey) != PubKeySize {
		return types.Address{}, false
	}
	digest := RequestDigest(method, payload, nonce)
	if !VerifySignature(digest[:], signature, pubKey) {
		return types.Address{}, false
	}
	return AddressFromPubKey(pubKey), true
}

// VerifySignature checks a Schnorr signature against a 32-byte hash
// and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}
