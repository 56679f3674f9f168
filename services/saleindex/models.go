package saleindex

import "time"

// Listing statuses mirror the sale record lifecycle. A row is never
// deleted; terminal transitions only flip the status so the index keeps a
// full audit trail.
const (
	StatusActive         = "active"
	StatusCancelled      = "cancelled"
	StatusAdminCancelled = "admin_cancelled"
	StatusSettled        = "settled"
)

type Listing struct {
	ID        string `gorm:"primaryKey"`
	Seller    string `gorm:"index"`
	Mint      string `gorm:"index"`
	Price     uint64
	Status    string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settlement records one completed buy. AuthorityScheme names the escrow
// derivation that settled the listing so legacy listings stay auditable.
type Settlement struct {
	ID              string `gorm:"primaryKey"`
	Seller          string `gorm:"index"`
	Buyer           string `gorm:"index"`
	Mint            string `gorm:"index"`
	Price           uint64
	Tax             uint64
	RoyaltyPool     uint64
	SellerProceeds  uint64
	AuthorityScheme string `gorm:"index"`
	CreatedAt       time.Time
}

// CreatorPayout records one royalty credit inside a settlement. Unverified
// creators are paid like any other; the flag exists exactly so this table
// can answer audit queries about them.
type CreatorPayout struct {
	ID           string `gorm:"primaryKey"`
	SettlementID string `gorm:"index"`
	Creator      string `gorm:"index"`
	Amount       uint64
	Verified     bool
}
