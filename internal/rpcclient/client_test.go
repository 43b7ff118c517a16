package rpcclient

import (
	"errors"
	"testing"
	"time"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/access"
	"github.com/aisthisi-art/aisthisi/internal/approval"
	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/metadata"
	"github.com/aisthisi-art/aisthisi/internal/registry"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
	"github.com/aisthisi-art/aisthisi/internal/storage"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
)

type testEnv struct {
	client  *Client
	admin   *crypto.PrivateKey
	clock   *registry.ManualClock
	genesis *config.Genesis
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	alog.Init(alog.Options{Level: "error"})

	adminKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	adminAddr := adminKey.Address()

	gen := config.TestnetGenesis()
	gen.RegistryID = "aisthisi-test-client"
	gen.Admin = adminAddr.String()
	gen.Minters = nil

	db := storage.NewMemory()
	tokens := storage.NewPrefixDB(db, []byte("r/"))
	roles := access.NewRoles(storage.NewPrefixDB(db, []byte("a/")))
	if err := roles.Seed(adminAddr, nil); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	book := approval.NewBook(tokens, registry.NewStore(tokens))

	clock := registry.NewManualClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	reg, err := registry.New(tokens, registry.Config{
		Minters:  roles,
		Owners:   book,
		Metadata: metadata.NewResolver(gen.MetadataBaseURI()),
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}

	// Create and start RPC server on random port.
	srv := rpc.New("127.0.0.1:0", rpc.Backend{
		Registry:  reg,
		Roles:     roles,
		Approvals: book,
		Nonces:    rpc.NewNonceStore(storage.NewPrefixDB(db, []byte("n/"))),
	}, gen)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		client:  New("http://" + srv.Addr() + "/"),
		admin:   adminKey,
		clock:   clock,
		genesis: gen,
	}
}

func TestClient_RegistryGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.RegistryInfoResult
	if err := env.client.Call("registry_getInfo", nil, &result); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if result.RegistryID != "aisthisi-test-client" {
		t.Errorf("registry_id = %q, want %q", result.RegistryID, "aisthisi-test-client")
	}
	if result.TokenCount != 0 {
		t.Errorf("token_count = %d, want 0", result.TokenCount)
	}
}

func TestClient_SignedCall(t *testing.T) {
	env := setupTestEnv(t)

	owner, _ := crypto.GenerateKey()
	ownerAddr := owner.Address()

	for want := uint64(0); want < 3; want++ {
		var minted rpc.MintResult
		err := env.client.SignedCall("token_mint", rpc.MintPayload{Recipient: ownerAddr.String()}, env.admin, &minted)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if minted.TokenID != want {
			t.Fatalf("token_id = %d, want %d", minted.TokenID, want)
		}
	}

	next, err := env.client.NextNonce(env.admin.PublicKey())
	if err != nil {
		t.Fatalf("NextNonce: %v", err)
	}
	if next != 4 {
		t.Errorf("next nonce = %d, want 4", next)
	}

	var balance rpc.BalanceResult
	if err := env.client.Call("token_balanceOf", rpc.AddressParam{Address: ownerAddr.String()}, &balance); err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 3 {
		t.Errorf("balance = %d, want 3", balance.Balance)
	}
}

func TestClient_SignedCall_StaleNonce(t *testing.T) {
	env := setupTestEnv(t)

	payload := rpc.MintPayload{Recipient: env.admin.Address().String()}
	if err := env.client.SignedCallWithNonce("token_mint", payload, env.admin, 7, nil); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := env.client.SignedCallWithNonce("token_mint", payload, env.admin, 7, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != rpc.CodeStaleNonce {
		t.Errorf("error code = %d, want %d", rpcErr.Code, rpc.CodeStaleNonce)
	}
}

func TestClient_OwnerOf_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	var result rpc.OwnerResult
	err := env.client.Call("token_ownerOf", rpc.TokenIDParam{TokenID: 5}, &result)
	if err == nil {
		t.Fatal("expected error for non-existent token")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != rpc.CodeUnknownToken {
		t.Errorf("error code = %d, want %d", rpcErr.Code, rpc.CodeUnknownToken)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/") // nothing listens on port 1

	var result rpc.RegistryInfoResult
	err := client.Call("registry_getInfo", nil, &result)
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	err := env.client.Call("nonexistent_method", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}
