package domain

import "errors"

// Checkout failure taxonomy. The HTTP layer maps these onto status codes;
// nothing is retried automatically.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrUpstream       = errors.New("payment gateway error")
	ErrBadSignature   = errors.New("signature mismatch")
	ErrTokenExpired   = errors.New("download link expired")
	ErrTokenUsed      = errors.New("download link already used")
	ErrConflict       = errors.New("conflicting ledger state")
)
