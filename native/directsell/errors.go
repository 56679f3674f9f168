package directsell

import "errors"

var (
	// Authorization errors.
	ErrUnauthorized      = errors.New("directsell: unauthorized signer")
	ErrAuthorityMismatch = errors.New("directsell: escrow authority mismatch")
	ErrInvalidBump       = errors.New("directsell: non-canonical derivation bump")

	// State errors.
	ErrRecordAlreadyExists = errors.New("directsell: sale record already exists")
	ErrRecordNotFound      = errors.New("directsell: sale record not found")
	ErrPriceNotLower       = errors.New("directsell: price can only be lowered")

	// Value errors.
	ErrInvalidAmount       = errors.New("directsell: price must be positive")
	ErrInsufficientBalance = errors.New("directsell: holding cannot cover listed unit")
	ErrInsufficientFunds   = errors.New("directsell: buyer cannot cover price")
	ErrArithmeticOverflow  = errors.New("directsell: arithmetic overflow")

	// Consistency errors.
	ErrPriceMismatch       = errors.New("directsell: price mismatch")
	ErrMetadataMismatch    = errors.New("directsell: metadata mismatch")
	ErrCreatorListMismatch = errors.New("directsell: creator list mismatch")
	ErrMintNotFound        = errors.New("directsell: unknown mint")

	errNilState   = errors.New("directsell: state not configured")
	errNilTokens  = errors.New("directsell: token ledger not configured")
	errNoTaxSink  = errors.New("directsell: sales tax recipient not configured")
	errNoAdmin    = errors.New("directsell: admin identity not configured")
	errShareTotal = errors.New("directsell: creator shares must sum to 100")
)
