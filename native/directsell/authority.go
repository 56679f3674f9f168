package directsell

import (
	"errors"

	"saleledger/crypto"
)

// AuthorityScheme identifies which derivation produced an escrow authority.
// Two schemes coexist: the current shared authority serves every listing,
// the per-seller scheme survives for listings created before the shared
// authority existed. A listing never records which scheme approved it; the
// scheme is discovered structurally by re-deriving against the delegate
// actually granted on the holding.
type AuthorityScheme uint8

const (
	AuthorityShared AuthorityScheme = iota
	AuthorityPerSeller
)

func (s AuthorityScheme) String() string {
	switch s {
	case AuthorityShared:
		return "shared"
	case AuthorityPerSeller:
		return "per-seller"
	default:
		return "unknown"
	}
}

// SharedAuthority returns the canonical address and bump of the current
// shared escrow authority.
func SharedAuthority() ([20]byte, uint8, error) {
	return crypto.FindKeylessAddress([]byte(saleSeed))
}

// SellerAuthority returns the canonical address and bump of the legacy
// per-seller escrow authority.
func SellerAuthority(seller [20]byte) ([20]byte, uint8, error) {
	return crypto.FindKeylessAddress([]byte(saleSeed), seller[:])
}

// ResolveAuthority probes the supplied bump against both derivation schemes
// and returns the scheme that reproduces the supplied authority address.
// The shared scheme is probed first; the legacy derivation only wins when
// the shared one does not reproduce the address. Matching the authority to
// the delegation actually granted on the holding is the caller's job.
func ResolveAuthority(bump uint8, seller, authority [20]byte) (AuthorityScheme, error) {
	if addr, err := crypto.DeriveKeylessAddress(bump, []byte(saleSeed)); err == nil && addr == authority {
		return AuthorityShared, nil
	} else if err != nil && !errors.Is(err, crypto.ErrPointOnCurve) {
		return 0, err
	}
	if addr, err := crypto.DeriveKeylessAddress(bump, []byte(saleSeed), seller[:]); err == nil && addr == authority {
		return AuthorityPerSeller, nil
	} else if err != nil && !errors.Is(err, crypto.ErrPointOnCurve) {
		return 0, err
	}
	return 0, ErrAuthorityMismatch
}
