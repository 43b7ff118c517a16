// derive_identity.go prints the path, pubkey and address of a wallet identity.
// Usage: go run scripts/derive_identity.go [--testnet] [--account n] [--index n] [mnemonic]
//
// With no mnemonic it derives from the well-known testnet mnemonic.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aisthisi-art/aisthisi/config"
	"github.com/aisthisi-art/aisthisi/internal/wallet"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

func main() {
	testnet := flag.Bool("testnet", false, "Print a testnet address")
	account := flag.Uint("account", 0, "Account number")
	index := flag.Uint("index", 0, "Identity index")
	flag.Parse()

	if *testnet {
		types.SetAddressHRP(types.TestnetHRP)
	}

	mnemonic := config.TestnetMnemonic
	if flag.NArg() > 0 {
		mnemonic = strings.Join(flag.Args(), " ")
	}
	if !wallet.ValidateMnemonic(mnemonic) {
		fmt.Fprintln(os.Stderr, "invalid mnemonic")
		os.Exit(1)
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	key, err := master.DeriveIdentity(uint32(*account), uint32(*index))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	addr := key.Address()

	fmt.Printf("Path:    %s\n", wallet.IdentityPath(uint32(*account), uint32(*index)))
	fmt.Printf("PubKey:  %s\n", hex.EncodeToString(key.PublicKeyBytes()))
	fmt.Printf("Address: %s\n", addr.String())
	fmt.Printf("Hex:     0x%s\n", addr.Hex())
}
