package node

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/registry"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
	"github.com/aisthisi-art/aisthisi/internal/rpcclient"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.RPC.Port = 0
	cfg.Log.Level = "error"
	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	return cfg
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.aisthisi/genesis.json", filepath.Join(home, ".aisthisi/genesis.json")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNodeLifecycle(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		n.Stop()
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	addr := n.RPCAddr()
	if addr == "" {
		t.Fatal("RPCAddr is empty")
	}

	client := rpcclient.New("http://" + addr)
	var info rpc.RegistryInfoResult
	if err := client.Call("registry_getInfo", nil, &info); err != nil {
		t.Fatalf("registry_getInfo: %v", err)
	}
	if info.RegistryID != n.Genesis().RegistryID {
		t.Errorf("registry_id = %q, want %q", info.RegistryID, n.Genesis().RegistryID)
	}
	if info.TokenCount != 0 {
		t.Errorf("token_count = %d, want 0", info.TokenCount)
	}

	admin, err := n.Genesis().AdminAddress()
	if err != nil {
		t.Fatalf("AdminAddress: %v", err)
	}
	if info.Admin != admin.String() {
		t.Errorf("admin = %q, want %q", info.Admin, admin.String())
	}
}

func TestNode_RPCDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n.RPCAddr() != "" {
		t.Errorf("RPCAddr = %q, want empty", n.RPCAddr())
	}
}

func TestNode_SeedsRolesFromGenesis(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	admin, _ := n.Genesis().AdminAddress()
	got, err := n.Roles().Admin()
	if err != nil {
		t.Fatalf("Admin: %v", err)
	}
	if got != admin {
		t.Errorf("admin = %s, want %s", got, admin)
	}
	ok, err := n.Roles().IsMinter(admin)
	if err != nil {
		t.Fatalf("IsMinter: %v", err)
	}
	if !ok {
		t.Error("testnet admin should be a genesis minter")
	}
}

func TestNode_ReopenKeepsState(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	admin, _ := n.Genesis().AdminAddress()
	holder := types.Address{0x42}

	id, err := n.Registry().Mint(admin, holder, nil)
	if err != nil {
		n.Stop()
		t.Fatalf("Mint: %v", err)
	}
	// Extra minter granted at runtime must survive the restart
	// even though the genesis seed is skipped.
	if err := n.Roles().GrantMinter(admin, holder); err != nil {
		n.Stop()
		t.Fatalf("GrantMinter: %v", err)
	}
	n.Stop()

	n2, err := New(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer n2.Stop()

	count, err := n2.Registry().Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	owner, err := n2.Registry().OwnerOf(id)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if owner != holder {
		t.Errorf("owner = %s, want %s", owner, holder)
	}
	ok, err := n2.Roles().IsMinter(holder)
	if err != nil {
		t.Fatalf("IsMinter: %v", err)
	}
	if !ok {
		t.Error("runtime minter grant lost on reopen")
	}
}

func TestNode_GenesisMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Stop()

	g := config.TestnetGenesis()
	g.RegistryID = "aisthisi-other"
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg.Genesis = path

	_, err = New(cfg)
	if !errors.Is(err, ErrGenesisMismatch) {
		t.Fatalf("err = %v, want ErrGenesisMismatch", err)
	}
}

func TestAssemble_TransferClearsApproval(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = false
	genesis := config.TestnetGenesis()

	clock := registry.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var logs bytes.Buffer
	n, err := assemble(cfg, genesis, storage.NewMemory(), clock, zerolog.New(&logs))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	admin, _ := genesis.AdminAddress()
	holder := types.Address{0x01}
	spender := types.Address{0x02}
	buyer := types.Address{0x03}

	id, err := n.Registry().Mint(admin, holder, nil)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := n.Approvals().Approve(holder, spender, id); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := n.Registry().Transfer(spender, holder, buyer, id); err != nil {
		t.Fatalf("Transfer by approved: %v", err)
	}
	approved, err := n.Approvals().GetApproved(id)
	if err != nil {
		t.Fatalf("GetApproved: %v", err)
	}
	if !approved.IsZero() {
		t.Errorf("approval survived transfer: %s", approved)
	}

	for _, want := range []string{`"event":"mint"`, `"event":"transfer"`, `"to":"` + buyer.String() + `"`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("node log missing %s", want)
		}
	}
}

func TestBindGenesis(t *testing.T) {
	meta := storage.NewMemory()
	g := config.TestnetGenesis()

	fresh, err := bindGenesis(meta, g)
	if err != nil || !fresh {
		t.Fatalf("first bind = (%v, %v), want (true, nil)", fresh, err)
	}
	fresh, err = bindGenesis(meta, g)
	if err != nil || fresh {
		t.Fatalf("second bind = (%v, %v), want (false, nil)", fresh, err)
	}

	other := config.TestnetGenesis()
	other.Name = "Different"
	if _, err := bindGenesis(meta, other); !errors.Is(err, ErrGenesisMismatch) {
		t.Fatalf("err = %v, want ErrGenesisMismatch", err)
	}
}
