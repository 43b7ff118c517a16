package registry

import "errors"

// Registry errors. Every rejected operation returns exactly one of these
// (possibly wrapped), and leaves registry state unchanged.
var (
	ErrPermissionDenied   = errors.New("caller is not allowed to mint")
	ErrDuplicateID        = errors.New("token id already exists")
	ErrNotOwnerOrApproved = errors.New("caller is not owner nor approved")
	ErrTokenLocked        = errors.New("token is locked")
	ErrNotTokenOwner      = errors.New("caller is not the token owner")
	ErrNoActiveLock       = errors.New("token has no lock")
	ErrInvalidUnlockCode  = errors.New("invalid unlock code")
	ErrUnknownToken       = errors.New("unknown token")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrInvalidLockTerms   = errors.New("invalid lock terms")
)
