package main

import (
	"flag"
	"fmt"

	"github.com/aisthisi-art/aisthisi/internal/wallet"
)

func (c *cli) wallet(args []string) {
	const sub = "Usage: aisthisi-cli wallet <create|import|list|address|new-address> [flags]"
	if len(args) < 1 {
		fatal(sub)
	}

	switch args[0] {
	case "create":
		c.walletCreate(args[1:])
	case "import":
		c.walletImport(args[1:])
	case "list":
		c.walletList()
	case "address":
		c.walletAddress(args[1:])
	case "new-address":
		c.walletNewAddress(args[1:])
	default:
		fatal("Unknown wallet command: %s\n%s", args[0], sub)
	}
}

func (c *cli) walletCreate(args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: aisthisi-cli wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	c.storeWallet(*name, mnemonic)
}

func (c *cli) walletImport(args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (24 words)")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: aisthisi-cli wallet import --name <name> --mnemonic \"word1 word2 ...\"")
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	c.storeWallet(*name, *mnemonic)
}

// storeWallet encrypts the seed of mnemonic as a new wallet and derives
// its first identity.
func (c *cli) storeWallet(name, mnemonic string) {
	password := readNewPassword("Enter password: ")
	defer clear(password)

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed)

	ks, err := wallet.NewKeystore(c.ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	if err := ks.Create(name, seed, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	id, err := ks.NewIdentity(name, password, "Default")
	if err != nil {
		fatal("derive identity: %v", err)
	}

	fmt.Printf("Wallet created: %s\n", name)
	fmt.Printf("Address [%d]: %s\n", id.Index, id.Address)
	fmt.Printf("Path:        %s\n", wallet.IdentityPath(0, id.Index))
}

func (c *cli) walletList() {
	ks, err := wallet.NewKeystore(c.ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}

	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}

	for _, name := range names {
		fmt.Println(name)
	}
}

func (c *cli) walletAddress(args []string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: aisthisi-cli wallet address --wallet <name>")
	}

	ks, err := wallet.NewKeystore(c.ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	ids, err := ks.Identities(*walletName)
	if err != nil {
		fatal("list identities: %v", err)
	}

	if len(ids) == 0 {
		fmt.Println("No identities found.")
		return
	}

	for _, id := range ids {
		fmt.Printf("  [%d] %s  %s\n", id.Index, id.Address, id.Name)
	}
}

func (c *cli) walletNewAddress(args []string) {
	fs := flag.NewFlagSet("wallet new-address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	label := fs.String("label", "", "Identity label")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: aisthisi-cli wallet new-address --wallet <name> [--label <label>]")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)

	ks, err := wallet.NewKeystore(c.ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	name := *label
	if name == "" {
		ids, err := ks.Identities(*walletName)
		if err != nil {
			fatal("list identities: %v", err)
		}
		name = fmt.Sprintf("Identity %d", len(ids))
	}

	id, err := ks.NewIdentity(*walletName, password, name)
	if err != nil {
		fatal("derive identity: %v", err)
	}
	fmt.Printf("New address [%d]: %s\n", id.Index, id.Address)
}
