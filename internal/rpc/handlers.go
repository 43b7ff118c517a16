package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aisthisi-art/aisthisi/internal/access"
	"github.com/aisthisi-art/aisthisi/internal/approval"
	"github.com/aisthisi-art/aisthisi/internal/registry"
	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// registryCodes maps registry sentinel errors to JSON-RPC codes.
var registryCodes = []struct {
	err  error
	code int
}{
	{registry.ErrPermissionDenied, CodePermissionDenied},
	{registry.ErrDuplicateID, CodeDuplicateID},
	{registry.ErrNotOwnerOrApproved, CodeNotOwnerOrApproved},
	{registry.ErrTokenLocked, CodeTokenLocked},
	{registry.ErrNotTokenOwner, CodeNotTokenOwner},
	{registry.ErrNoActiveLock, CodeNoActiveLock},
	{registry.ErrInvalidUnlockCode, CodeInvalidUnlockCode},
	{registry.ErrUnknownToken, CodeUnknownToken},
	{registry.ErrInvalidRecipient, CodeInvalidRecipient},
}

// registryError converts an error from the registry or its collaborators
// into a JSON-RPC error.
func registryError(err error) *Error {
	for _, rc := range registryCodes {
		if errors.Is(err, rc.err) {
			return &Error{Code: rc.code, Message: err.Error()}
		}
	}
	switch {
	case errors.Is(err, approval.ErrApproveToOwner),
		errors.Is(err, approval.ErrApproveToCaller),
		errors.Is(err, access.ErrInvalidAccount),
		errors.Is(err, registry.ErrInvalidLockTerms):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// ── Registry endpoints ──────────────────────────────────────────────────

func (s *Server) handleRegistryGetInfo(_ *Request) (interface{}, *Error) {
	count, err := s.registry.Count()
	if err != nil {
		return nil, registryError(err)
	}
	admin, err := s.roles.Admin()
	if err != nil {
		return nil, registryError(err)
	}
	return &RegistryInfoResult{
		RegistryID:       s.genesis.RegistryID,
		Name:             s.genesis.Name,
		Symbol:           s.genesis.Symbol,
		Admin:            admin.String(),
		TokenCount:       count,
		HashAlgorithm:    s.genesis.HashAlgorithm(),
		MetadataBaseURI:  s.genesis.MetadataBaseURI(),
		AllowExplicitIDs: s.genesis.Protocol.Token.AllowExplicitIDs,
		Time:             s.registry.Now().Unix(),
	}, nil
}

func (s *Server) handleAccountGetNonce(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := decodeAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.nonces.Last(addr)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &NonceResult{Address: addr.String(), Nonce: nonce}, nil
}

// ── Token mutations ─────────────────────────────────────────────────────

func (s *Server) handleTokenMint(req *Request) (interface{}, *Error) {
	var p MintPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := decodeAddress(p.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var terms *registry.LockTerms
	if p.UnlockableFrom != 0 || p.Commitment != "" {
		if p.UnlockableFrom < 0 {
			return nil, &Error{Code: CodeInvalidParams, Message: "unlockable_from must be positive"}
		}
		terms = &registry.LockTerms{}
		if p.UnlockableFrom != 0 {
			terms.UnlockableFrom = time.Unix(p.UnlockableFrom, 0).UTC()
		}
		if p.Commitment != "" {
			c, rpcErr := decodeHash("commitment", p.Commitment)
			if rpcErr != nil {
				return nil, rpcErr
			}
			terms.Commitment = &c
		}
	}

	if p.TokenID != nil {
		if !s.genesis.Protocol.Token.AllowExplicitIDs {
			return nil, &Error{Code: CodeInvalidParams, Message: "explicit token ids are not allowed on this registry"}
		}
		id := types.TokenID(*p.TokenID)
		if err := s.registry.MintWithID(caller, to, id, terms); err != nil {
			return nil, registryError(err)
		}
		return &MintResult{TokenID: uint64(id)}, nil
	}

	id, err := s.registry.Mint(caller, to, terms)
	if err != nil {
		return nil, registryError(err)
	}
	return &MintResult{TokenID: uint64(id)}, nil
}

func (s *Server) handleTokenTransfer(req *Request) (interface{}, *Error) {
	var p TransferPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := decodeAddress(p.From)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := decodeAddress(p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.registry.Transfer(caller, from, to, types.TokenID(p.TokenID)); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

func (s *Server) handleTokenUnlock(req *Request) (interface{}, *Error) {
	var p UnlockPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if p.Reveal == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "reveal is required"}
	}
	reveal, err := hex.DecodeString(trimHex(p.Reveal))
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid reveal: must be hex"}
	}
	if err := s.registry.Unlock(caller, types.TokenID(p.TokenID), reveal); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

func (s *Server) handleTokenApprove(req *Request) (interface{}, *Error) {
	var p ApprovePayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var approved types.Address
	if p.Approved != "" {
		approved, rpcErr = decodeAddress(p.Approved)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}
	if err := s.approvals.Approve(caller, approved, types.TokenID(p.TokenID)); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

func (s *Server) handleTokenSetApprovalForAll(req *Request) (interface{}, *Error) {
	var p ApprovalForAllPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	operator, rpcErr := decodeAddress(p.Operator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.approvals.SetApprovalForAll(caller, operator, p.Approved); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

// ── Token queries ───────────────────────────────────────────────────────

func (s *Server) handleTokenOwnerOf(req *Request) (interface{}, *Error) {
	var params TokenIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := s.registry.OwnerOf(types.TokenID(params.TokenID))
	if err != nil {
		return nil, registryError(err)
	}
	return &OwnerResult{TokenID: params.TokenID, Owner: owner.String()}, nil
}

func (s *Server) handleTokenGetInfo(req *Request) (interface{}, *Error) {
	var params TokenIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	v, err := s.registry.View(types.TokenID(params.TokenID))
	if err != nil {
		return nil, registryError(err)
	}
	return tokenInfo(v, s.registry.Now()), nil
}

func (s *Server) handleTokenIsTransferEligible(req *Request) (interface{}, *Error) {
	var params TokenIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	now := s.registry.Now()
	tok, err := s.registry.Token(types.TokenID(params.TokenID))
	if err != nil {
		return nil, registryError(err)
	}
	return &EligibilityResult{
		TokenID:  params.TokenID,
		Eligible: tok.TransferEligible(now),
		State:    tok.StateAt(now).String(),
		Time:     now.Unix(),
	}, nil
}

func (s *Server) handleTokenURI(req *Request) (interface{}, *Error) {
	var params TokenIDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	uri, err := s.registry.TokenURI(types.TokenID(params.TokenID))
	if err != nil {
		return nil, registryError(err)
	}
	return &URIResult{TokenID: params.TokenID, URI: uri}, nil
}

func (s *Server) handleTokenBalanceOf(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := decodeAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.registry.BalanceOf(addr)
	if err != nil {
		return nil, registryError(err)
	}
	return &BalanceResult{Address: addr.String(), Balance: balance}, nil
}

func (s *Server) handleTokenList(req *Request) (interface{}, *Error) {
	var params ListParam
	if hasParams(req) {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}

	var owner *types.Address
	if params.Owner != "" {
		addr, rpcErr := decodeAddress(params.Owner)
		if rpcErr != nil {
			return nil, rpcErr
		}
		owner = &addr
	}
	views, err := s.registry.Views(owner)
	if err != nil {
		return nil, registryError(err)
	}

	now := s.registry.Now()
	result := &TokenListResult{Tokens: make([]TokenInfoResult, 0, len(views))}
	for _, v := range views {
		result.Tokens = append(result.Tokens, *tokenInfo(v, now))
	}
	return result, nil
}

func (s *Server) handleTokenIsApprovedForAll(req *Request) (interface{}, *Error) {
	var params OperatorParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	owner, rpcErr := decodeAddress(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	operator, rpcErr := decodeAddress(params.Operator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.approvals.IsApprovedForAll(owner, operator)
	if err != nil {
		return nil, registryError(err)
	}
	return &ApprovedForAllResult{Owner: owner.String(), Operator: operator.String(), Approved: ok}, nil
}

// tokenInfo builds the RPC view of v as of now.
func tokenInfo(v *registry.TokenView, now time.Time) *TokenInfoResult {
	tok := v.Token
	info := &TokenInfoResult{
		TokenID:          uint64(tok.ID),
		Owner:            tok.Owner.String(),
		State:            tok.StateAt(now).String(),
		TransferEligible: tok.TransferEligible(now),
		URI:              v.URI,
	}
	if tok.Lock != nil {
		info.Lock = &LockResult{
			UnlockableFrom: tok.Lock.UnlockableFrom.Unix(),
			Commitment:     tok.Lock.Commitment.String(),
			Unlocked:       tok.Lock.Unlocked,
		}
	}
	if !v.Approved.IsZero() {
		info.Approved = v.Approved.String()
	}
	return info
}

// ── Access endpoints ────────────────────────────────────────────────────

func (s *Server) handleAccessGrantMinter(req *Request) (interface{}, *Error) {
	var p AccountPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := decodeAddress(p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.roles.GrantMinter(caller, account); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

func (s *Server) handleAccessRevokeMinter(req *Request) (interface{}, *Error) {
	var p AccountPayload
	caller, rpcErr := s.authenticate(req, &p)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := decodeAddress(p.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.roles.RevokeMinter(caller, account); err != nil {
		return nil, registryError(err)
	}
	return &SuccessResult{Success: true}, nil
}

func (s *Server) handleAccessIsMinter(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := decodeAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	isMinter, err := s.roles.IsMinter(addr)
	if err != nil {
		return nil, registryError(err)
	}
	admin, err := s.roles.Admin()
	if err != nil {
		return nil, registryError(err)
	}
	return &MinterResult{Address: addr.String(), IsMinter: isMinter, IsAdmin: addr == admin}, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

func decodeAddress(s string) (types.Address, *Error) {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: "invalid address: " + err.Error()}
	}
	return addr, nil
}

func decodeHash(field, s string) (types.Hash, *Error) {
	b, err := hex.DecodeString(trimHex(s))
	if err != nil || len(b) != types.HashSize {
		return types.Hash{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid %s: must be 32-byte hex", field)}
	}
	var h types.Hash
	copy(h[:], b)
	return h, nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
