package saleindex

import (
	"log/slog"
	"strconv"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"saleledger/core/events"
	"saleledger/core/types"
	"saleledger/native/directsell"
)

// Indexer persists marketplace events into a relational store for audit
// and query. It implements events.Emitter so the node can wire it straight
// into the engine; indexing failures are logged, never propagated back
// into the settlement path.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open creates or opens the SQLite index at path and migrates the schema.
// Use ":memory:" for tests.
func Open(path string, log *slog.Logger) (*Indexer, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Listing{}, &Settlement{}, &CreatorPayout{}); err != nil {
		return nil, err
	}
	return &Indexer{db: db, logger: log}, nil
}

type payloadCarrier interface {
	Event() *types.Event
}

// Emit implements events.Emitter.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil {
		return
	}
	carrier, ok := evt.(payloadCarrier)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	var err error
	switch payload.Type {
	case directsell.EventTypeListed:
		err = ix.indexListed(payload.Attributes)
	case directsell.EventTypePriceLowered:
		err = ix.indexPriceLowered(payload.Attributes)
	case directsell.EventTypeCancelled:
		err = ix.indexCancelled(payload.Attributes, StatusCancelled)
	case directsell.EventTypeAdminCancelled:
		err = ix.indexCancelled(payload.Attributes, StatusAdminCancelled)
	case directsell.EventTypeSettled:
		err = ix.indexSettled(payload.Attributes)
	}
	if err != nil {
		ix.logger.Error("saleindex: failed to index event", "type", payload.Type, "err", err)
	}
}

func (ix *Indexer) indexListed(attrs map[string]string) error {
	price, _ := strconv.ParseUint(attrs["expectedAmount"], 10, 64)
	return ix.db.Create(&Listing{
		ID:     uuid.NewString(),
		Seller: attrs["seller"],
		Mint:   attrs["mint"],
		Price:  price,
		Status: StatusActive,
	}).Error
}

func (ix *Indexer) indexPriceLowered(attrs map[string]string) error {
	price, _ := strconv.ParseUint(attrs["expectedAmount"], 10, 64)
	return ix.db.Model(&Listing{}).
		Where("seller = ? AND mint = ? AND status = ?", attrs["seller"], attrs["mint"], StatusActive).
		Update("price", price).Error
}

func (ix *Indexer) indexCancelled(attrs map[string]string, status string) error {
	return ix.db.Model(&Listing{}).
		Where("seller = ? AND mint = ? AND status = ?", attrs["seller"], attrs["mint"], StatusActive).
		Update("status", status).Error
}

func (ix *Indexer) indexSettled(attrs map[string]string) error {
	price, _ := strconv.ParseUint(attrs["expectedAmount"], 10, 64)
	tax, _ := strconv.ParseUint(attrs["tax"], 10, 64)
	pool, _ := strconv.ParseUint(attrs["royaltyPool"], 10, 64)
	proceeds, _ := strconv.ParseUint(attrs["sellerProceeds"], 10, 64)
	settlement := &Settlement{
		ID:              uuid.NewString(),
		Seller:          attrs["seller"],
		Buyer:           attrs["buyer"],
		Mint:            attrs["mint"],
		Price:           price,
		Tax:             tax,
		RoyaltyPool:     pool,
		SellerProceeds:  proceeds,
		AuthorityScheme: attrs["authorityScheme"],
	}
	count, _ := strconv.Atoi(attrs["creatorCount"])
	payouts := make([]*CreatorPayout, 0, count)
	for i := 0; i < count; i++ {
		prefix := "creator." + strconv.Itoa(i) + "."
		amount, _ := strconv.ParseUint(attrs[prefix+"amount"], 10, 64)
		payouts = append(payouts, &CreatorPayout{
			ID:           uuid.NewString(),
			SettlementID: settlement.ID,
			Creator:      attrs[prefix+"address"],
			Amount:       amount,
			Verified:     attrs[prefix+"verified"] == "true",
		})
	}
	return ix.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(settlement).Error; err != nil {
			return err
		}
		for _, payout := range payouts {
			if err := tx.Create(payout).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Listing{}).
			Where("seller = ? AND mint = ? AND status = ?", attrs["seller"], attrs["mint"], StatusActive).
			Update("status", StatusSettled).Error
	})
}

// ActiveListings returns all listings that have not reached a terminal
// status.
func (ix *Indexer) ActiveListings() ([]Listing, error) {
	var listings []Listing
	err := ix.db.Where("status = ?", StatusActive).Order("created_at").Find(&listings).Error
	return listings, err
}

// SettlementsForSeller returns settlements credited to a seller, newest
// first.
func (ix *Indexer) SettlementsForSeller(seller string) ([]Settlement, error) {
	var settlements []Settlement
	err := ix.db.Where("seller = ?", seller).Order("created_at desc").Find(&settlements).Error
	return settlements, err
}

// UnverifiedPayouts returns royalty payouts whose creator was not verified
// on the asset metadata at settlement time.
func (ix *Indexer) UnverifiedPayouts() ([]CreatorPayout, error) {
	var payouts []CreatorPayout
	err := ix.db.Where("verified = ?", false).Find(&payouts).Error
	return payouts, err
}
