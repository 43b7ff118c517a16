// aisthisi-cli is a command-line client for interacting with an aisthisid node.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/aisthisi-art/aisthisi/config"
	alog "github.com/aisthisi-art/aisthisi/internal/log"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
	"github.com/aisthisi-art/aisthisi/internal/rpcclient"
	"github.com/aisthisi-art/aisthisi/internal/wallet"
	"github.com/aisthisi-art/aisthisi/pkg/crypto"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// keystoreDir returns the keystore path matching aisthisid's layout:
// <datadir>/<network>/keystore
func keystoreDir(dataDir, network string) string {
	return filepath.Join(dataDir, network, "keystore")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := ""
	dataDir := config.DefaultDataDir()
	network := "mainnet"

	// Scan for --rpc, --datadir and --network before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--testnet":
			network = "testnet"
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if err := alog.Init(alog.Options{Level: "warn"}); err != nil {
		fatal("init logger: %v", err)
	}
	if network == string(config.Testnet) {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}
	if rpcURL == "" {
		rpcURL = config.DefaultRPCURL(config.NetworkType(network))
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	c := &cli{
		client: rpcclient.New(rpcURL),
		ksDir:  keystoreDir(dataDir, network),
	}
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		c.status()
	case "wallet":
		c.wallet(cmdArgs)
	case "token":
		c.token(cmdArgs)
	case "minter":
		c.minter(cmdArgs)
	case "commitment":
		c.commitment(cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

// cli carries what every command needs.
type cli struct {
	client *rpcclient.Client
	ksDir  string
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: aisthisi-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8745, testnet 8845)
  --datadir <path>    Data directory (default: ~/.aisthisi)
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network testnet

Commands:
  status                              Show registry status

  wallet create --name <w>            Create a wallet (prints mnemonic)
  wallet import --name <w> --mnemonic "..."
                                      Import a wallet from a mnemonic
  wallet list                         List wallets
  wallet address --wallet <w>         List identities of a wallet
  wallet new-address --wallet <w> [--label <l>]
                                      Derive a new identity

  token mint --wallet <w> --to <addr> [--id <n>] [--unlockable-from <time>]
             [--commitment <hex> | --lock]
                                      Mint a token, optionally locked
  token transfer --wallet <w> --to <addr> --id <n> [--from <addr>]
                                      Transfer a token
  token unlock --wallet <w> --id <n> [--reveal <hex>]
                                      Release a lock with the unlock password
  token approve --wallet <w> --id <n> [--spender <addr>]
                                      Approve (or clear) a spender
  token approve-all --wallet <w> --operator <addr> [--revoke]
                                      Approve an operator for all tokens
  token owner <id>                    Show the owner of a token
  token info <id>                     Show token details
  token uri <id>                      Show the metadata URI
  token eligible <id>                 Show whether a token can move now
  token balance <addr>                Count tokens held by an account
  token list [--owner <addr>]         List tokens

  minter grant --wallet <w> --account <addr>
  minter revoke --wallet <w> --account <addr>
  minter check <addr>

  commitment [--hash <alg>]           Derive a lock commitment from a password

Signing commands accept --index <n> to pick the wallet identity (default 0).
Times are RFC 3339 or unix seconds.
`)
}

// ── status ──────────────────────────────────────────────────────────────

func (c *cli) status() {
	var info rpc.RegistryInfoResult
	if err := c.client.Call("registry_getInfo", nil, &info); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Registry:   %s (%s)\n", info.Name, info.Symbol)
	fmt.Printf("ID:         %s\n", info.RegistryID)
	fmt.Printf("Admin:      %s\n", info.Admin)
	fmt.Printf("Tokens:     %d\n", info.TokenCount)
	fmt.Printf("Lock hash:  %s\n", info.HashAlgorithm)
	fmt.Printf("Metadata:   %s\n", info.MetadataBaseURI)
	fmt.Printf("Node time:  %s\n", time.Unix(info.Time, 0).UTC().Format(time.RFC3339))
}

// ── Signing ─────────────────────────────────────────────────────────────

// signer decrypts identity index of a wallet. The caller must Zero it.
func (c *cli) signer(walletName string, index uint32) *crypto.PrivateKey {
	if walletName == "" {
		fatal("--wallet is required")
	}
	ks, err := wallet.NewKeystore(c.ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	password, err := readPassword(fmt.Sprintf("Password for wallet %q: ", walletName))
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)

	key, err := ks.Signer(walletName, password, index)
	if errors.Is(err, wallet.ErrWrongPassword) {
		fatal("wrong password")
	}
	if err != nil {
		fatal("load signer: %v", err)
	}
	return key
}

// signedCall signs payload with a wallet identity and sends it.
func (c *cli) signedCall(method, walletName string, index uint32, payload, result interface{}) {
	key := c.signer(walletName, index)
	defer key.Zero()
	if err := c.client.SignedCall(method, payload, key, result); err != nil {
		fatal("%v", err)
	}
}

// ── Parsing helpers ─────────────────────────────────────────────────────

// parseTime accepts RFC 3339 or unix seconds.
func parseTime(s string) (int64, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want RFC 3339 or unix seconds", s)
	}
	return t.Unix(), nil
}

func parseTokenID(s string) uint64 {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fatal("invalid token id %q", s)
	}
	return id
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(string(data))
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword(prompt string) []byte {
	password, err := readPassword(prompt)
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	clear(confirm)
	return password
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
