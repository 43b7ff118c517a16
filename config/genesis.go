package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/aisthisi-art/aisthisi/internal/lock"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// =============================================================================
// Registry Rules (fixed at launch, defined in genesis)
// =============================================================================

// DefaultMetadataBaseURI is the metadata location of the Aisthisi collection.
const DefaultMetadataBaseURI = "https://aisthisi.art/metadata/"

// Genesis holds the registry identity and the rules that may not change
// once the registry has been initialized.
type Genesis struct {
	// Registry identity
	RegistryID string `json:"registry_id"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	Timestamp  uint64 `json:"timestamp"`

	// Roles. The admin grants and revokes minters; both may be any
	// address form accepted by types.ParseAddress.
	Admin   string   `json:"admin"`
	Minters []string `json:"minters,omitempty"`

	// Registry rules
	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig holds the registry rules.
type ProtocolConfig struct {
	Metadata MetadataRules `json:"metadata"`
	Lock     LockRules     `json:"lock"`
	Token    TokenRules    `json:"token"`
}

// MetadataRules define how token URIs are formed.
type MetadataRules struct {
	BaseURI string `json:"base_uri"`
}

// LockRules define the commitment scheme.
type LockRules struct {
	// Hash names the commitment hash: keccak256, blake3 or sha256.
	// Minting clients must use the same function.
	Hash string `json:"hash"`
}

// TokenRules define token id allocation.
type TokenRules struct {
	// AllowExplicitIDs lets minters choose token ids instead of taking
	// the next sequential one.
	AllowExplicitIDs bool `json:"allow_explicit_ids"`
}

// =============================================================================
// Well-known testnet identity
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet admin.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetAdminPubKey is the compressed public key (hex) derived from TestnetMnemonic.
	TestnetAdminPubKey = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"

	// TestnetAdmin is the address (hex) derived from TestnetMnemonic.
	// Address = BLAKE3(pubkey)[:20]
	TestnetAdmin = "0x8f3a44b8056cafec368dea0cbe0ad1d9bc3f4305"

	// MainnetAdmin is the launch admin of the mainnet registry.
	MainnetAdmin = "0xe9d69ff8b240f30f2caf5ad76c788b96ef0a7c2d"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		RegistryID: "aisthisi-mainnet-1",
		Name:       "Aisthisi",
		Symbol:     "AIS",
		Timestamp:  1770734103, // 2026-02-10
		Admin:      MainnetAdmin,
		Protocol: ProtocolConfig{
			Metadata: MetadataRules{BaseURI: DefaultMetadataBaseURI},
			Lock:     LockRules{Hash: lock.AlgKeccak256},
			Token:    TokenRules{AllowExplicitIDs: false},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.RegistryID = "aisthisi-testnet-1"
	g.Name = "Aisthisi Testnet"
	g.Admin = TestnetAdmin
	g.Minters = []string{TestnetAdmin}
	g.Protocol.Token.AllowExplicitIDs = true
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// ResolveGenesis returns the genesis named by cfg.Genesis, or the
// built-in one for cfg.Network.
func ResolveGenesis(cfg *Config) (*Genesis, error) {
	if cfg.Genesis != "" {
		return LoadGenesis(cfg.Genesis)
	}
	g := GenesisFor(cfg.Network)
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid built-in genesis: %w", err)
	}
	return g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.RegistryID == "" {
		return fmt.Errorf("registry_id is required")
	}

	if _, err := g.AdminAddress(); err != nil {
		return err
	}
	if _, err := g.MinterAddresses(); err != nil {
		return err
	}

	if _, err := lock.HasherByName(g.Protocol.Lock.Hash); err != nil {
		return fmt.Errorf("lock.hash: %w", err)
	}

	if base := g.Protocol.Metadata.BaseURI; base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("metadata.base_uri %q must be an absolute URI", base)
		}
	}

	return nil
}

// AdminAddress parses the admin address.
func (g *Genesis) AdminAddress() (types.Address, error) {
	if g.Admin == "" {
		return types.Address{}, fmt.Errorf("admin is required")
	}
	a, err := types.ParseAddress(g.Admin)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid admin address %q: %w", g.Admin, err)
	}
	if a.IsZero() {
		return types.Address{}, fmt.Errorf("admin must not be the zero address")
	}
	return a, nil
}

// MinterAddresses parses the initial minters, rejecting duplicates.
func (g *Genesis) MinterAddresses() ([]types.Address, error) {
	out := make([]types.Address, 0, len(g.Minters))
	seen := make(map[types.Address]struct{}, len(g.Minters))
	for i, s := range g.Minters {
		a, err := types.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("invalid minters[%d] %q: %w", i, s, err)
		}
		if a.IsZero() {
			return nil, fmt.Errorf("minters[%d] is the zero address", i)
		}
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("minters has duplicate address %q", s)
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// Hasher returns the commitment hash selected by the genesis.
func (g *Genesis) Hasher() (lock.Hasher, error) {
	return lock.HasherByName(g.Protocol.Lock.Hash)
}

// MetadataBaseURI returns the configured base URI or the default.
func (g *Genesis) MetadataBaseURI() string {
	if g.Protocol.Metadata.BaseURI == "" {
		return DefaultMetadataBaseURI
	}
	return g.Protocol.Metadata.BaseURI
}

// HashAlgorithm returns the commitment hash name, defaulting to keccak256.
func (g *Genesis) HashAlgorithm() string {
	if g.Protocol.Lock.Hash == "" {
		return lock.AlgKeccak256
	}
	return g.Protocol.Lock.Hash
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to detect a node reopening its database under a different genesis.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
