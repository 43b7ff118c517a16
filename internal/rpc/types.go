package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUnauthorized   = -32001 // Bad or missing request signature.
	CodeStaleNonce     = -32002 // Nonce not above the caller's last nonce.
)

// Registry error codes. Each registry error kind has its own stable code.
const (
	CodePermissionDenied   = -32010
	CodeDuplicateID        = -32011
	CodeNotOwnerOrApproved = -32012
	CodeTokenLocked        = -32013
	CodeNotTokenOwner      = -32014
	CodeNoActiveLock       = -32015
	CodeInvalidUnlockCode  = -32016
	CodeUnknownToken       = -32017
	CodeInvalidRecipient   = -32018
)

// Request is a JSON-RPC 2.0 request. Params are kept raw so that signed
// payloads are verified over the exact bytes the caller signed.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ── Signed requests ─────────────────────────────────────────────────────

// Auth authenticates a state-changing request. Signature is a Schnorr
// signature by PubKey over crypto.RequestDigest(method, payload, nonce).
type Auth struct {
	PubKey    string `json:"pubkey"`    // Compressed secp256k1, hex.
	Nonce     uint64 `json:"nonce"`     // Strictly increasing per caller.
	Signature string `json:"signature"` // Hex.
}

// SignedParams wraps the payload of a state-changing method.
type SignedParams struct {
	Payload json.RawMessage `json:"payload"`
	Auth    Auth            `json:"auth"`
}

// ── Param types ─────────────────────────────────────────────────────────

// TokenIDParam is used by endpoints that take a single token.
type TokenIDParam struct {
	TokenID uint64 `json:"token_id"`
}

// AddressParam is used by endpoints that take a single account.
type AddressParam struct {
	Address string `json:"address"`
}

// ListParam is used by token_list. An empty owner lists every token.
type ListParam struct {
	Owner string `json:"owner,omitempty"`
}

// OperatorParam is used by token_isApprovedForAll.
type OperatorParam struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
}

// ── Signed payload types ────────────────────────────────────────────────

// MintPayload is the payload of token_mint. A lock is created only when
// both UnlockableFrom (unix seconds) and Commitment (hex) are set.
type MintPayload struct {
	Recipient      string  `json:"recipient"`
	TokenID        *uint64 `json:"token_id,omitempty"`
	UnlockableFrom int64   `json:"unlockable_from,omitempty"`
	Commitment     string  `json:"commitment,omitempty"`
}

// TransferPayload is the payload of token_transfer.
type TransferPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

// UnlockPayload is the payload of token_unlock. Reveal is H(password), hex.
type UnlockPayload struct {
	TokenID uint64 `json:"token_id"`
	Reveal  string `json:"reveal"`
}

// ApprovePayload is the payload of token_approve. An empty Approved
// clears the approval.
type ApprovePayload struct {
	Approved string `json:"approved"`
	TokenID  uint64 `json:"token_id"`
}

// ApprovalForAllPayload is the payload of token_setApprovalForAll.
type ApprovalForAllPayload struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// AccountPayload is the payload of access_grantMinter and
// access_revokeMinter.
type AccountPayload struct {
	Account string `json:"account"`
}

// ── Result types ────────────────────────────────────────────────────────

// RegistryInfoResult is returned by registry_getInfo.
type RegistryInfoResult struct {
	RegistryID       string `json:"registry_id"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	Admin            string `json:"admin"`
	TokenCount       uint64 `json:"token_count"`
	HashAlgorithm    string `json:"hash_algorithm"`
	MetadataBaseURI  string `json:"metadata_base_uri"`
	AllowExplicitIDs bool   `json:"allow_explicit_ids"`
	Time             int64  `json:"time"`
}

// NonceResult is returned by account_getNonce.
type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"` // Last accepted nonce; sign with Nonce+1.
}

// MintResult is returned by token_mint.
type MintResult struct {
	TokenID uint64 `json:"token_id"`
}

// SuccessResult is returned by state-changing methods without a value.
type SuccessResult struct {
	Success bool `json:"success"`
}

// OwnerResult is returned by token_ownerOf.
type OwnerResult struct {
	TokenID uint64 `json:"token_id"`
	Owner   string `json:"owner"`
}

// LockResult describes a token's lock record.
type LockResult struct {
	UnlockableFrom int64  `json:"unlockable_from"`
	Commitment     string `json:"commitment"`
	Unlocked       bool   `json:"unlocked"`
}

// TokenInfoResult is returned by token_getInfo and token_list.
type TokenInfoResult struct {
	TokenID          uint64      `json:"token_id"`
	Owner            string      `json:"owner"`
	State            string      `json:"state"`
	TransferEligible bool        `json:"transfer_eligible"`
	Lock             *LockResult `json:"lock,omitempty"`
	URI              string      `json:"uri"`
	Approved         string      `json:"approved,omitempty"`
}

// EligibilityResult is returned by token_isTransferEligible.
type EligibilityResult struct {
	TokenID  uint64 `json:"token_id"`
	Eligible bool   `json:"eligible"`
	State    string `json:"state"`
	Time     int64  `json:"time"`
}

// URIResult is returned by token_tokenURI.
type URIResult struct {
	TokenID uint64 `json:"token_id"`
	URI     string `json:"uri"`
}

// BalanceResult is returned by token_balanceOf.
type BalanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// TokenListResult is returned by token_list.
type TokenListResult struct {
	Tokens []TokenInfoResult `json:"tokens"`
}

// ApprovedForAllResult is returned by token_isApprovedForAll.
type ApprovedForAllResult struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// MinterResult is returned by access_isMinter.
type MinterResult struct {
	Address  string `json:"address"`
	IsMinter bool   `json:"is_minter"`
	IsAdmin  bool   `json:"is_admin"`
}
