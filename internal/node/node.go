// Package node assembles a registry node: storage, registry, access
// roles, approvals and the RPC server. It can be embedded in any binary.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/access"
	"github.com/aisthisi-art/aisthisi/internal/approval"
	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/metadata"
	"github.com/aisthisi-art/aisthisi/internal/registry"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// Key spaces inside the node database.
var (
	prefixTokens = []byte("reg/") // tokens and approvals
	prefixRoles  = []byte("acl/")
	prefixNonces = []byte("rpc/")
	prefixMeta   = []byte("meta/")
)

// Node is a fully-initialized registry node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	// Core
	db        storage.DB
	registry  *registry.Registry
	roles     *access.Roles
	approvals *approval.Book

	// RPC
	rpcServer *rpc.Server
}

// New creates and initializes a node. It opens storage and builds every
// component but does not listen; call Start for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Set address HRP ──────────────────────────────────────────
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(cfg.LogsDir(), "aisthisi.log")
	}
	if err := alog.Init(alog.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: logFile}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := alog.WithComponent("node")

	// ── 3. Genesis ──────────────────────────────────────────────────
	cfg.Genesis = expandHome(cfg.Genesis)
	genesis, err := config.ResolveGenesis(cfg)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}

	logger.Info().
		Str("registry_id", genesis.RegistryID).
		Str("network", string(cfg.Network)).
		Str("hash", genesis.HashAlgorithm()).
		Str("metadata", genesis.MetadataBaseURI()).
		Msg("Starting Aisthisi registry node")

	// ── 4. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.RegistryDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.RegistryDir(), err)
	}
	logger.Info().Str("path", cfg.RegistryDir()).Msg("Database opened")

	n, err := assemble(cfg, genesis, db, registry.SystemClock{}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

// assemble builds the node components over an open database.
func assemble(cfg *config.Config, genesis *config.Genesis, db storage.DB, clock registry.Clock, logger zerolog.Logger) (*Node, error) {
	// ── 5. Genesis binding ──────────────────────────────────────────
	fresh, err := bindGenesis(storage.NewPrefixDB(db, prefixMeta), genesis)
	if err != nil {
		return nil, err
	}

	// ── 6. Roles ────────────────────────────────────────────────────
	roles := access.NewRoles(storage.NewPrefixDB(db, prefixRoles))
	if err := seedRoles(roles, genesis); err != nil {
		return nil, err
	}
	admin, err := roles.Admin()
	if err != nil {
		return nil, fmt.Errorf("read admin: %w", err)
	}
	if fresh {
		logger.Info().Str("admin", admin.String()).Int("minters", len(genesis.Minters)).Msg("Registry initialized from genesis")
	}

	// ── 7. Registry ─────────────────────────────────────────────────
	hasher, err := genesis.Hasher()
	if err != nil {
		return nil, fmt.Errorf("commitment hash: %w", err)
	}
	tokensDB := storage.NewPrefixDB(db, prefixTokens)
	book := approval.NewBook(tokensDB, registry.NewStore(tokensDB))

	reg, err := registry.New(tokensDB, registry.Config{
		Minters:  roles,
		Owners:   book,
		Metadata: metadata.NewResolver(genesis.MetadataBaseURI()),
		Clock:    clock,
		Hasher:   hasher,
	})
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	reg.Subscribe(registry.ObserverFunc(func(e registry.Event) {
		logger.Info().
			Str("event", e.Kind.String()).
			Str("id", e.ID.String()).
			Str("from", e.From.String()).
			Str("to", e.To.String()).
			Msg("Registry event")
	}))

	count, err := reg.Count()
	if err != nil {
		return nil, fmt.Errorf("read token count: %w", err)
	}
	logger.Info().Uint64("tokens", count).Msg("Registry ready")

	n := &Node{
		cfg:       cfg,
		genesis:   genesis,
		logger:    logger,
		db:        db,
		registry:  reg,
		roles:     roles,
		approvals: book,
	}

	// ── 8. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		n.rpcServer = rpc.New(cfg.RPCListenAddr(), rpc.Backend{
			Registry:  reg,
			Roles:     roles,
			Approvals: book,
			Nonces:    rpc.NewNonceStore(storage.NewPrefixDB(db, prefixNonces)),
		}, genesis, cfg.RPC)
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	return n, nil
}

// Start begins serving RPC requests.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		n.logger.Info().
			Str("addr", n.rpcServer.Addr()).
			Strs("allowed", n.cfg.RPC.AllowedIPs).
			Msg("RPC server listening")
	}
	n.logger.Info().Str("registry_id", n.genesis.RegistryID).Msg("Node started successfully")
	return nil
}

// Stop shuts down the RPC server and closes storage.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Database close")
		}
	}
	n.logger.Info().Msg("Goodbye!")
	if err := alog.Close(); err != nil {
		n.logger.Warn().Err(err).Msg("Log file close")
	}
}

// RPCAddr returns the address the RPC server listens on, or "" when RPC
// is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Registry returns the token registry.
func (n *Node) Registry() *registry.Registry { return n.registry }

// Roles returns the minter role table.
func (n *Node) Roles() *access.Roles { return n.roles }

// Approvals returns the approval book.
func (n *Node) Approvals() *approval.Book { return n.approvals }

// Genesis returns the genesis the node runs under.
func (n *Node) Genesis() *config.Genesis { return n.genesis }

// ErrGenesisMismatch is returned when the database was initialized under
// a different genesis.
var ErrGenesisMismatch = errors.New("database belongs to a different genesis")
