package crypto

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Derived addresses are keyless signing identities: the digest behind the
// address must not correspond to a secp256k1 point, so no private key can
// ever sign for it. A bump byte is appended to the seeds until the digest
// falls off the curve; the first bump accepted while scanning downward from
// 255 is the canonical one.

const derivationDomain = "saleledger/derived/v1"

// MaxSeedLen bounds individual derivation seeds. Seeds are length-framed in
// the digest input, so a bound keeps the framing to a single byte and stops
// seed-boundary grinding.
const MaxSeedLen = 32

var (
	// ErrPointOnCurve reports that the candidate digest maps to a valid
	// secp256k1 point and therefore cannot serve as a keyless address.
	ErrPointOnCurve = errors.New("derived candidate maps to a signing key")
	// ErrNoCanonicalBump reports that no bump in 0..255 produced a keyless
	// address for the given seeds.
	ErrNoCanonicalBump = errors.New("no canonical bump for seeds")
)

// DeriveKeylessAddress computes the derived address for the seeds and an
// explicit bump. It fails with ErrPointOnCurve when the bump is not usable,
// which is how callers detect spoofed or stale bumps.
func DeriveKeylessAddress(bump uint8, seeds ...[]byte) ([20]byte, error) {
	digest, err := deriveDigest(bump, seeds)
	if err != nil {
		return [20]byte{}, err
	}
	candidate := make([]byte, 0, 33)
	candidate = append(candidate, 0x02)
	candidate = append(candidate, digest...)
	if _, err := ethcrypto.DecompressPubkey(candidate); err == nil {
		return [20]byte{}, ErrPointOnCurve
	}
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr, nil
}

// FindKeylessAddress scans bumps from 255 downward and returns the first
// keyless address together with its canonical bump.
func FindKeylessAddress(seeds ...[]byte) ([20]byte, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := DeriveKeylessAddress(uint8(bump), seeds...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrPointOnCurve) {
			return [20]byte{}, 0, err
		}
	}
	return [20]byte{}, 0, ErrNoCanonicalBump
}

func deriveDigest(bump uint8, seeds [][]byte) ([]byte, error) {
	input := make([]byte, 0, len(derivationDomain)+len(seeds)*(MaxSeedLen+1)+1)
	input = append(input, derivationDomain...)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return nil, fmt.Errorf("derivation seed exceeds %d bytes", MaxSeedLen)
		}
		input = append(input, byte(len(seed)))
		input = append(input, seed...)
	}
	input = append(input, bump)
	return ethcrypto.Keccak256(input), nil
}
