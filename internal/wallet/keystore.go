package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
)

const (
	keystoreVersion = 1
	walletExt       = ".wallet"
)

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrInvalidName    = errors.New("invalid wallet name")
)

// keystoreFile is the on-disk JSON form of a wallet.
type keystoreFile struct {
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	EncryptedSeed []byte     `json:"encrypted_seed"`
	Identities    []Identity `json:"identities"`
	NextIndex     uint32     `json:"next_index"`
}

// Identity is a derived registry identity recorded in a wallet.
type Identity struct {
	Index   uint32 `json:"index"`
	Name    string `json:"name"`
	Address string `json:"address"`
	PubKey  string `json:"pubkey"` // Compressed, hex.
}

// Keystore stores encrypted wallets as files in one directory.
type Keystore struct {
	path   string
	logger zerolog.Logger
}

// NewKeystore opens the keystore at path, creating the directory.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path, logger: alog.WithComponent("wallet")}, nil
}

func (ks *Keystore) walletPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(ks.path, name+walletExt), nil
}

// Create stores seed encrypted under password as a new wallet.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}

	sealed, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}
	kf := &keystoreFile{
		Version:       keystoreVersion,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: sealed,
		Identities:    []Identity{},
	}
	if err := writeKeystore(path, kf); err != nil {
		return err
	}
	ks.logger.Info().Str("wallet", name).Msg("Wallet created")
	return nil
}

// Load decrypts the seed of a wallet.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, _, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	return seed, nil
}

// NewIdentity derives the next identity of a wallet, records it under
// label and returns it.
func (ks *Keystore) NewIdentity(name string, password []byte, label string) (*Identity, error) {
	kf, path, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	key, err := ks.derive(kf, password, kf.NextIndex)
	if err != nil {
		return nil, err
	}

	id := Identity{
		Index:   kf.NextIndex,
		Name:    label,
		Address: key.Address().String(),
		PubKey:  hex.EncodeToString(key.PublicKeyBytes()),
	}
	kf.Identities = append(kf.Identities, id)
	kf.NextIndex++
	if err := writeKeystore(path, kf); err != nil {
		return nil, err
	}
	ks.logger.Info().
		Str("wallet", name).
		Uint32("index", id.Index).
		Str("address", id.Address).
		Msg("Identity derived")
	return &id, nil
}

// Identities lists the identities recorded in a wallet.
func (ks *Keystore) Identities(name string) ([]Identity, error) {
	kf, _, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	return kf.Identities, nil
}

// Signer decrypts a wallet and returns the signing key of identity index.
func (ks *Keystore) Signer(name string, password []byte, index uint32) (*crypto.PrivateKey, error) {
	kf, _, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	key, err := ks.derive(kf, password, index)
	if err != nil {
		return nil, err
	}
	return key.Signer()
}

func (ks *Keystore) derive(kf *keystoreFile, password []byte, index uint32) (*HDKey, error) {
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	defer clear(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return master.DeriveIdentity(0, index)
}

// List returns the wallet names in the keystore, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != walletExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), walletExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return err
	}
	return nil
}

func (ks *Keystore) read(name string) (*keystoreFile, string, error) {
	path, err := ks.walletPath(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, "", fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, "", fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, path, nil
}

func writeKeystore(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}
