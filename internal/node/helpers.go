package node

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/access"
	"github.com/aisthisi-art/aisthisi/internal/storage"
)

var keyGenesisHash = []byte("genesis")

// bindGenesis records the genesis hash on first start and rejects a
// different genesis afterwards. It reports whether the database was fresh.
func bindGenesis(meta storage.DB, genesis *config.Genesis) (bool, error) {
	h, err := genesis.Hash()
	if err != nil {
		return false, fmt.Errorf("hash genesis: %w", err)
	}
	stored, err := meta.Get(keyGenesisHash)
	if errors.Is(err, storage.ErrNotFound) {
		if err := meta.Put(keyGenesisHash, h[:]); err != nil {
			return false, fmt.Errorf("store genesis hash: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read genesis hash: %w", err)
	}
	if !bytes.Equal(stored, h[:]) {
		return false, fmt.Errorf("%w: stored %x, config %s", ErrGenesisMismatch, stored, h)
	}
	return false, nil
}

// seedRoles stores the genesis admin and minters once.
func seedRoles(roles *access.Roles, genesis *config.Genesis) error {
	admin, err := genesis.AdminAddress()
	if err != nil {
		return err
	}
	minters, err := genesis.MinterAddresses()
	if err != nil {
		return err
	}
	if err := roles.Seed(admin, minters); err != nil && !errors.Is(err, access.ErrAlreadySeeded) {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
