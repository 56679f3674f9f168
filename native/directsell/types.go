package directsell

import (
	"saleledger/crypto"
)

// Seed prefixes for derived addresses. saleSeed anchors both the sale
// record address and the escrow authority, metadataSeed anchors the
// metadata registry address for a mint.
const (
	saleSeed     = "directsale"
	metadataSeed = "metadata"
)

// DefaultTaxBps is the fixed platform sales tax in basis points.
const DefaultTaxBps uint32 = 99

// bps denominator for all fee arithmetic.
const bpsDenominator = 10_000

// SaleRecord is the per-listing state entry. It lives at the canonical
// derived address for (seller, mint) and is deleted by exactly one of buy,
// cancel or admin cancel.
type SaleRecord struct {
	Seller         [20]byte
	Mint           [20]byte
	ExpectedAmount uint64
	Bump           uint8
}

// Clone returns a copy of the record.
func (r *SaleRecord) Clone() *SaleRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Creator is one royalty recipient declared by an asset's metadata. Share
// is a percentage of the royalty pool; shares across the list sum to 100.
// Unverified creators are still paid, the flag only marks the payout for
// audit.
type Creator struct {
	Address  [20]byte
	Share    uint8
	Verified bool
}

// AssetMetadata mirrors the off-chain-created metadata consumed at buy
// time: the royalty rate in basis points and the ordered creator list.
type AssetMetadata struct {
	Mint         [20]byte
	SellerFeeBps uint32
	Creators     []Creator
}

// Clone returns a deep copy of the metadata.
func (m *AssetMetadata) Clone() *AssetMetadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Creators = append([]Creator(nil), m.Creators...)
	return &clone
}

// Validate checks the structural invariants: royalty rate within the bps
// range and creator shares summing to exactly 100 when any are declared.
func (m *AssetMetadata) Validate() error {
	if m == nil {
		return ErrMetadataMismatch
	}
	if m.SellerFeeBps > bpsDenominator {
		return ErrArithmeticOverflow
	}
	if len(m.Creators) == 0 {
		return nil
	}
	total := 0
	for _, c := range m.Creators {
		total += int(c.Share)
	}
	if total != 100 {
		return errShareTotal
	}
	return nil
}

// CreatorPayout is one royalty credit inside a settlement.
type CreatorPayout struct {
	Address  [20]byte
	Amount   uint64
	Verified bool
}

// Settlement is the payout breakdown of a completed buy. Scheme records
// which authority derivation settled the listing so the audit trail can
// tell legacy listings apart.
type Settlement struct {
	Record         *SaleRecord
	Buyer          [20]byte
	Scheme         AuthorityScheme
	Tax            uint64
	RoyaltyPool    uint64
	SellerProceeds uint64
	CreatorPayouts []CreatorPayout
}

// SaleAddress returns the canonical derived address and bump for the
// listing of (seller, mint).
func SaleAddress(seller, mint [20]byte) ([20]byte, uint8, error) {
	return crypto.FindKeylessAddress([]byte(saleSeed), seller[:], mint[:])
}

// MetadataAddress returns the canonical derived address for the metadata of
// a mint.
func MetadataAddress(mint [20]byte) ([20]byte, uint8, error) {
	addr, bump, err := crypto.FindKeylessAddress([]byte(metadataSeed), mint[:])
	return addr, bump, err
}
