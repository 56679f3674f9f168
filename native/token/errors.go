package token

import "errors"

var (
	ErrMintNotFound        = errors.New("token ledger: mint not found")
	ErrMintExists          = errors.New("token ledger: mint already registered")
	ErrInvalidDecimals     = errors.New("token ledger: decimals out of range")
	ErrInvalidAmount       = errors.New("token ledger: amount must be positive")
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	ErrNoDelegation        = errors.New("token ledger: no delegation on holding")
	ErrDelegateMismatch    = errors.New("token ledger: delegate mismatch")
	ErrDelegationExceeded  = errors.New("token ledger: transfer exceeds delegation")
	ErrUnauthorized        = errors.New("token ledger: unauthorized")

	errNilState = errors.New("token ledger: state not configured")
)
