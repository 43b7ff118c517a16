// Command testnet boots a local testnet registry node and walks a token
// through both lock release paths.
//
// Usage: go run ./cmd/testnet/
//
// It derives the well-known testnet admin from the testnet mnemonic,
// starts an in-process node with its RPC server on a random port, mints
// two locked tokens, releases one with its unlock password and the other
// by waiting out its lock, and transfers both. Ctrl+C for early shutdown.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/lock"
	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/node"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
	"github.com/aisthisi-art/aisthisi/internal/rpcclient"
	"github.com/aisthisi-art/aisthisi/internal/wallet"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
)

const (
	lockDuration   = 5 * time.Second
	unlockPassword = "aisthisi testnet password"
)

func main() {
	alog.Init(alog.Options{Level: "info"})
	logger := alog.WithComponent("testnet")

	logger.Info().Msg("=== Aisthisi Local Testnet ===")

	// ── Phase 1: Well-known testnet identity ────────────────────────────

	seed, err := wallet.SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("derive testnet seed")
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("derive master key")
	}
	adminKey, err := master.DeriveIdentity(0, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("derive admin identity")
	}
	admin, err := adminKey.Signer()
	if err != nil {
		logger.Fatal().Err(err).Msg("load admin key")
	}
	defer admin.Zero()

	collector, err := crypto.GenerateKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("generate collector key")
	}
	defer collector.Zero()
	collectorAddr := collector.Address()

	logger.Info().
		Str("admin", adminKey.Address().String()).
		Str("path", wallet.IdentityPath(0, 0)).
		Str("collector", collectorAddr.String()).
		Msg("Using well-known testnet identity")

	// ── Phase 2: Boot node ──────────────────────────────────────────────

	dataDir, err := os.MkdirTemp("", "aisthisi-testnet-*")
	if err != nil {
		logger.Fatal().Err(err).Msg("create data dir")
	}
	defer os.RemoveAll(dataDir)

	cfg := config.Default(config.Testnet)
	cfg.DataDir = dataDir
	cfg.RPC.Port = 0
	if err := config.EnsureDataDirs(cfg); err != nil {
		logger.Fatal().Err(err).Msg("prepare data dir")
	}

	n, err := node.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build node")
	}
	if err := n.Start(); err != nil {
		n.Stop()
		logger.Fatal().Err(err).Msg("start node")
	}
	defer n.Stop()

	client := rpcclient.New("http://" + n.RPCAddr())

	// ── Phase 3: Signal handling ────────────────────────────────────────

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("Shutdown signal received")
		cancel()
	}()

	// ── Phase 4: Mint locked tokens ─────────────────────────────────────

	var info rpc.RegistryInfoResult
	if err := client.Call("registry_getInfo", nil, &info); err != nil {
		logger.Fatal().Err(err).Msg("registry_getInfo")
	}
	h, err := lock.HasherByName(info.HashAlgorithm)
	if err != nil {
		logger.Fatal().Err(err).Msg("commitment hash")
	}
	verifier := lock.NewVerifier(h)
	commitment := verifier.NewCommitment([]byte(unlockPassword))
	reveal := verifier.RevealOf([]byte(unlockPassword))
	releaseAt := time.Unix(info.Time, 0).Add(lockDuration)

	mint := func() uint64 {
		var res rpc.MintResult
		err := client.SignedCall("token_mint", rpc.MintPayload{
			Recipient:      adminKey.Address().String(),
			UnlockableFrom: releaseAt.Unix(),
			Commitment:     hex.EncodeToString(commitment[:]),
		}, admin, &res)
		if err != nil {
			logger.Fatal().Err(err).Msg("token_mint")
		}
		return res.TokenID
	}
	bySecret := mint()
	byTime := mint()

	logger.Info().
		Uint64("secret_token", bySecret).
		Uint64("time_token", byTime).
		Time("unlockable_from", releaseAt).
		Msg("Locked tokens minted")

	transfer := func(id uint64) error {
		return client.SignedCall("token_transfer", rpc.TransferPayload{
			From:    adminKey.Address().String(),
			To:      collectorAddr.String(),
			TokenID: id,
		}, admin, nil)
	}

	var rpcErr *rpcclient.RPCError
	if err := transfer(bySecret); !errors.As(err, &rpcErr) || rpcErr.Code != rpc.CodeTokenLocked {
		logger.Fatal().Err(err).Msg("FAILURE: transfer of a pending lock was not refused")
	}
	logger.Info().Uint64("token", bySecret).Msg("Transfer refused while locked")

	// ── Phase 5: Release by secret ──────────────────────────────────────

	err = client.SignedCall("token_unlock", rpc.UnlockPayload{
		TokenID: bySecret,
		Reveal:  hex.EncodeToString(reveal[:]),
	}, admin, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("token_unlock")
	}
	if err := transfer(bySecret); err != nil {
		logger.Fatal().Err(err).Msg("transfer after unlock")
	}
	logger.Info().Uint64("token", bySecret).Msg("Released by secret and transferred")

	// ── Phase 6: Release by time ────────────────────────────────────────

	wait := time.Until(releaseAt) + time.Second
	logger.Info().Dur("wait", wait).Msg("Waiting for the time lock")
	select {
	case <-ctx.Done():
		logger.Info().Msg("Interrupted")
		return
	case <-time.After(wait):
	}
	if err := transfer(byTime); err != nil {
		logger.Fatal().Err(err).Msg("transfer after lock expiry")
	}
	logger.Info().Uint64("token", byTime).Msg("Released by time and transferred")

	// ── Phase 7: Verification ───────────────────────────────────────────

	var bal rpc.BalanceResult
	if err := client.Call("token_balanceOf", rpc.AddressParam{Address: collectorAddr.String()}, &bal); err != nil {
		logger.Fatal().Err(err).Msg("token_balanceOf")
	}
	if bal.Balance != 2 {
		logger.Error().Uint64("balance", bal.Balance).Msg("FAILURE: collector should hold both tokens")
		os.Exit(1)
	}

	logger.Info().Msg("SUCCESS: both release paths work")
	fmt.Println()
	fmt.Printf("  Registry:        %s\n", info.RegistryID)
	fmt.Printf("  Commitment hash: %s\n", info.HashAlgorithm)
	fmt.Printf("  Collector holds: %d tokens\n", bal.Balance)
	fmt.Println()
}
