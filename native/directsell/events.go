package directsell

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"saleledger/core/types"
)

const (
	EventTypeListed         = "directsell.listed"
	EventTypePriceLowered   = "directsell.price_lowered"
	EventTypeCancelled      = "directsell.cancelled"
	EventTypeAdminCancelled = "directsell.admin_cancelled"
	EventTypeSettled        = "directsell.settled"
)

// NewListedEvent returns the canonical event payload for a new listing.
func NewListedEvent(rec *SaleRecord) *types.Event {
	return newSaleEvent(EventTypeListed, rec, nil)
}

// NewPriceLoweredEvent returns the payload for a price adjustment. The
// previous price rides along so consumers can audit the monotonic decrease.
func NewPriceLoweredEvent(rec *SaleRecord, previous uint64) *types.Event {
	return newSaleEvent(EventTypePriceLowered, rec, map[string]string{
		"previousAmount": strconv.FormatUint(previous, 10),
	})
}

// NewCancelledEvent returns the payload for a seller-initiated cancel.
func NewCancelledEvent(rec *SaleRecord) *types.Event {
	return newSaleEvent(EventTypeCancelled, rec, nil)
}

// NewAdminCancelledEvent returns the payload for a forced cancel.
func NewAdminCancelledEvent(rec *SaleRecord, admin [20]byte) *types.Event {
	return newSaleEvent(EventTypeAdminCancelled, rec, map[string]string{
		"admin": hex.EncodeToString(admin[:]),
	})
}

// NewSettledEvent returns the payload for a completed buy, including the
// full payout breakdown. Creator payouts are flattened as indexed
// attributes, zero-amount payouts included, so auditors see unverified and
// dustless creators alike.
func NewSettledEvent(s *Settlement) *types.Event {
	if s == nil || s.Record == nil {
		return &types.Event{Type: EventTypeSettled, Attributes: map[string]string{}}
	}
	extra := map[string]string{
		"buyer":           hex.EncodeToString(s.Buyer[:]),
		"authorityScheme": s.Scheme.String(),
		"tax":             strconv.FormatUint(s.Tax, 10),
		"royaltyPool":     strconv.FormatUint(s.RoyaltyPool, 10),
		"sellerProceeds":  strconv.FormatUint(s.SellerProceeds, 10),
		"creatorCount":    strconv.Itoa(len(s.CreatorPayouts)),
	}
	for i, payout := range s.CreatorPayouts {
		prefix := fmt.Sprintf("creator.%d.", i)
		extra[prefix+"address"] = hex.EncodeToString(payout.Address[:])
		extra[prefix+"amount"] = strconv.FormatUint(payout.Amount, 10)
		extra[prefix+"verified"] = strconv.FormatBool(payout.Verified)
	}
	return newSaleEvent(EventTypeSettled, s.Record, extra)
}

func newSaleEvent(eventType string, rec *SaleRecord, extra map[string]string) *types.Event {
	attrs := make(map[string]string, len(extra)+4)
	if rec != nil {
		attrs["seller"] = hex.EncodeToString(rec.Seller[:])
		attrs["mint"] = hex.EncodeToString(rec.Mint[:])
		attrs["expectedAmount"] = strconv.FormatUint(rec.ExpectedAmount, 10)
		attrs["bump"] = strconv.FormatUint(uint64(rec.Bump), 10)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
