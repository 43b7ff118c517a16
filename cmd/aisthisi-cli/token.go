package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"time"

	"github.com/aisthisi-art/aisthisi/internal/lock"
	"github.com/aisthisi-art/aisthisi/internal/rpc"
)

func (c *cli) token(args []string) {
	const sub = "Usage: aisthisi-cli token <mint|transfer|unlock|approve|approve-all|owner|info|uri|eligible|balance|list> [flags]"
	if len(args) < 1 {
		fatal(sub)
	}

	switch args[0] {
	case "mint":
		c.tokenMint(args[1:])
	case "transfer":
		c.tokenTransfer(args[1:])
	case "unlock":
		c.tokenUnlock(args[1:])
	case "approve":
		c.tokenApprove(args[1:])
	case "approve-all":
		c.tokenApproveAll(args[1:])
	case "owner", "info", "uri", "eligible":
		if len(args) < 2 {
			fatal("Usage: aisthisi-cli token %s <token-id>", args[0])
		}
		c.tokenQuery(args[0], parseTokenID(args[1]))
	case "balance":
		if len(args) < 2 {
			fatal("Usage: aisthisi-cli token balance <address>")
		}
		c.tokenBalance(args[1])
	case "list":
		c.tokenList(args[1:])
	default:
		fatal("Unknown token command: %s\n%s", args[0], sub)
	}
}

// verifier returns a verifier using the node's commitment hash.
func (c *cli) verifier() *lock.Verifier {
	var info rpc.RegistryInfoResult
	if err := c.client.Call("registry_getInfo", nil, &info); err != nil {
		fatal("%v", err)
	}
	h, err := lock.HasherByName(info.HashAlgorithm)
	if err != nil {
		fatal("%v", err)
	}
	return lock.NewVerifier(h)
}

func (c *cli) tokenMint(args []string) {
	fs := flag.NewFlagSet("token mint", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Minter wallet")
	index := fs.Uint("index", 0, "Wallet identity index")
	to := fs.String("to", "", "Recipient address")
	id := fs.Int64("id", -1, "Explicit token id (when the registry allows it)")
	from := fs.String("unlockable-from", "", "Lock release time (RFC 3339 or unix seconds)")
	commitment := fs.String("commitment", "", "Lock commitment, hex")
	withLock := fs.Bool("lock", false, "Prompt for an unlock password and derive the commitment")
	fs.Parse(args)

	if *to == "" {
		fatal("Usage: aisthisi-cli token mint --wallet <w> --to <addr> [--id <n>] [--unlockable-from <time>] [--commitment <hex> | --lock]")
	}

	payload := rpc.MintPayload{Recipient: *to}
	if *id >= 0 {
		v := uint64(*id)
		payload.TokenID = &v
	}

	locked := *commitment != "" || *withLock
	if locked != (*from != "") {
		fatal("a lock needs both --unlockable-from and --commitment (or --lock)")
	}
	if locked {
		ts, err := parseTime(*from)
		if err != nil {
			fatal("%v", err)
		}
		payload.UnlockableFrom = ts
		payload.Commitment = *commitment
		if *withLock {
			password := readNewPassword("Unlock password: ")
			h := c.verifier().NewCommitment(password)
			clear(password)
			payload.Commitment = hex.EncodeToString(h[:])
		}
	}

	var res rpc.MintResult
	c.signedCall("token_mint", *walletName, uint32(*index), payload, &res)
	fmt.Printf("Minted token %d to %s\n", res.TokenID, *to)
	if locked {
		fmt.Printf("Locked until %s or until the unlock password is revealed\n",
			time.Unix(payload.UnlockableFrom, 0).UTC().Format(time.RFC3339))
	}
}

func (c *cli) tokenTransfer(args []string) {
	fs := flag.NewFlagSet("token transfer", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Sender wallet")
	index := fs.Uint("index", 0, "Wallet identity index")
	from := fs.String("from", "", "Current owner (default: the current owner)")
	to := fs.String("to", "", "Recipient address")
	id := fs.Int64("id", -1, "Token id")
	fs.Parse(args)

	if *to == "" || *id < 0 {
		fatal("Usage: aisthisi-cli token transfer --wallet <w> --to <addr> --id <n> [--from <addr>]")
	}

	owner := *from
	if owner == "" {
		var res rpc.OwnerResult
		if err := c.client.Call("token_ownerOf", rpc.TokenIDParam{TokenID: uint64(*id)}, &res); err != nil {
			fatal("%v", err)
		}
		owner = res.Owner
	}

	c.signedCall("token_transfer", *walletName, uint32(*index), rpc.TransferPayload{
		From:    owner,
		To:      *to,
		TokenID: uint64(*id),
	}, nil)
	fmt.Printf("Transferred token %d: %s -> %s\n", *id, owner, *to)
}

func (c *cli) tokenUnlock(args []string) {
	fs := flag.NewFlagSet("token unlock", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Owner wallet")
	index := fs.Uint("index", 0, "Wallet identity index")
	id := fs.Int64("id", -1, "Token id")
	reveal := fs.String("reveal", "", "Reveal value, hex (default: prompt for the unlock password)")
	fs.Parse(args)

	if *id < 0 {
		fatal("Usage: aisthisi-cli token unlock --wallet <w> --id <n> [--reveal <hex>]")
	}

	r := *reveal
	if r == "" {
		password, err := readPassword("Unlock password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		h := c.verifier().RevealOf(password)
		clear(password)
		r = hex.EncodeToString(h[:])
	}

	c.signedCall("token_unlock", *walletName, uint32(*index), rpc.UnlockPayload{
		TokenID: uint64(*id),
		Reveal:  r,
	}, nil)
	fmt.Printf("Token %d unlocked\n", *id)
}

func (c *cli) tokenApprove(args []string) {
	fs := flag.NewFlagSet("token approve", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Owner wallet")
	index := fs.Uint("index", 0, "Wallet identity index")
	id := fs.Int64("id", -1, "Token id")
	spender := fs.String("spender", "", "Approved address (empty clears)")
	fs.Parse(args)

	if *id < 0 {
		fatal("Usage: aisthisi-cli token approve --wallet <w> --id <n> [--spender <addr>]")
	}

	c.signedCall("token_approve", *walletName, uint32(*index), rpc.ApprovePayload{
		Approved: *spender,
		TokenID:  uint64(*id),
	}, nil)
	if *spender == "" {
		fmt.Printf("Approval cleared for token %d\n", *id)
		return
	}
	fmt.Printf("Approved %s for token %d\n", *spender, *id)
}

func (c *cli) tokenApproveAll(args []string) {
	fs := flag.NewFlagSet("token approve-all", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Owner wallet")
	index := fs.Uint("index", 0, "Wallet identity index")
	operator := fs.String("operator", "", "Operator address")
	revoke := fs.Bool("revoke", false, "Revoke instead of approve")
	fs.Parse(args)

	if *operator == "" {
		fatal("Usage: aisthisi-cli token approve-all --wallet <w> --operator <addr> [--revoke]")
	}

	c.signedCall("token_setApprovalForAll", *walletName, uint32(*index), rpc.ApprovalForAllPayload{
		Operator: *operator,
		Approved: !*revoke,
	}, nil)
	if *revoke {
		fmt.Printf("Operator %s revoked\n", *operator)
		return
	}
	fmt.Printf("Operator %s approved for all tokens\n", *operator)
}

func (c *cli) tokenQuery(kind string, id uint64) {
	param := rpc.TokenIDParam{TokenID: id}
	switch kind {
	case "owner":
		var res rpc.OwnerResult
		if err := c.client.Call("token_ownerOf", param, &res); err != nil {
			fatal("%v", err)
		}
		fmt.Println(res.Owner)
	case "info":
		var res rpc.TokenInfoResult
		if err := c.client.Call("token_getInfo", param, &res); err != nil {
			fatal("%v", err)
		}
		printJSON(res)
	case "uri":
		var res rpc.URIResult
		if err := c.client.Call("token_tokenURI", param, &res); err != nil {
			fatal("%v", err)
		}
		fmt.Println(res.URI)
	case "eligible":
		var res rpc.EligibilityResult
		if err := c.client.Call("token_isTransferEligible", param, &res); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Token %d: %s, transfer eligible: %v\n", res.TokenID, res.State, res.Eligible)
	}
}

func (c *cli) tokenBalance(addr string) {
	var res rpc.BalanceResult
	if err := c.client.Call("token_balanceOf", rpc.AddressParam{Address: addr}, &res); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s holds %d token(s)\n", res.Address, res.Balance)
}

func (c *cli) tokenList(args []string) {
	fs := flag.NewFlagSet("token list", flag.ExitOnError)
	owner := fs.String("owner", "", "Only tokens held by this address")
	fs.Parse(args)

	var res rpc.TokenListResult
	if err := c.client.Call("token_list", rpc.ListParam{Owner: *owner}, &res); err != nil {
		fatal("%v", err)
	}
	if len(res.Tokens) == 0 {
		fmt.Println("No tokens.")
		return
	}
	fmt.Printf("%-8s %-46s %-18s %s\n", "ID", "OWNER", "STATE", "ELIGIBLE")
	for _, t := range res.Tokens {
		fmt.Printf("%-8d %-46s %-18s %v\n", t.TokenID, t.Owner, t.State, t.TransferEligible)
	}
}

// ── minter ──────────────────────────────────────────────────────────────

func (c *cli) minter(args []string) {
	const sub = "Usage: aisthisi-cli minter <grant|revoke|check> [flags]"
	if len(args) < 1 {
		fatal(sub)
	}

	switch args[0] {
	case "grant", "revoke":
		fs := flag.NewFlagSet("minter "+args[0], flag.ExitOnError)
		walletName := fs.String("wallet", "", "Admin wallet")
		index := fs.Uint("index", 0, "Wallet identity index")
		account := fs.String("account", "", "Account to update")
		fs.Parse(args[1:])
		if *account == "" {
			fatal("Usage: aisthisi-cli minter %s --wallet <w> --account <addr>", args[0])
		}
		method, done := "access_grantMinter", "granted"
		if args[0] == "revoke" {
			method, done = "access_revokeMinter", "revoked"
		}
		c.signedCall(method, *walletName, uint32(*index), rpc.AccountPayload{Account: *account}, nil)
		fmt.Printf("Minter %s: %s\n", done, *account)
	case "check":
		if len(args) < 2 {
			fatal("Usage: aisthisi-cli minter check <address>")
		}
		var res rpc.MinterResult
		if err := c.client.Call("access_isMinter", rpc.AddressParam{Address: args[1]}, &res); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s: minter=%v admin=%v\n", res.Address, res.IsMinter, res.IsAdmin)
	default:
		fatal("Unknown minter command: %s\n%s", args[0], sub)
	}
}

// ── commitment ──────────────────────────────────────────────────────────

// commitment derives a commitment offline. With no --hash it asks the
// node which hash the registry uses.
func (c *cli) commitment(args []string) {
	fs := flag.NewFlagSet("commitment", flag.ExitOnError)
	alg := fs.String("hash", "", "Hash algorithm: keccak256, blake3, sha256 (default: the node's)")
	fs.Parse(args)

	var v *lock.Verifier
	if *alg == "" {
		v = c.verifier()
	} else {
		h, err := lock.HasherByName(*alg)
		if err != nil {
			fatal("%v", err)
		}
		v = lock.NewVerifier(h)
	}

	password := readNewPassword("Unlock password: ")
	reveal := v.RevealOf(password)
	commitment := v.CommitmentOf(reveal[:])
	clear(password)

	fmt.Printf("Commitment: %s\n", hex.EncodeToString(commitment[:]))
	fmt.Printf("Reveal:     %s\n", hex.EncodeToString(reveal[:]))
	fmt.Println("Keep the password or the reveal secret until the token should unlock.")
}
