package directsell

import (
	"math/big"
	"math/bits"
)

// mulBps computes amount * bps / 10000 with a 128-bit intermediate so the
// multiplication cannot silently wrap. The rate itself must stay within the
// bps range; results above the uint64 range fail with ErrArithmeticOverflow.
func mulBps(amount uint64, bps uint32) (uint64, error) {
	if bps > bpsDenominator {
		return 0, ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(amount, uint64(bps))
	if hi >= bpsDenominator {
		return 0, ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, bpsDenominator)
	return quo, nil
}

// SplitRoyalties divides pool across the creator shares proportionally
// using integer division, with the rounding remainder assigned to the first
// creator so no dust is lost. Shares must sum to exactly 100. The returned
// payouts always sum to pool.
func SplitRoyalties(pool uint64, shares []uint8) ([]uint64, error) {
	if len(shares) == 0 {
		return nil, nil
	}
	total := 0
	for _, share := range shares {
		total += int(share)
	}
	if total != 100 {
		return nil, errShareTotal
	}
	payouts := make([]uint64, len(shares))
	var paid uint64
	for i, share := range shares {
		hi, lo := bits.Mul64(pool, uint64(share))
		quo, _ := bits.Div64(hi, lo, 100)
		payouts[i] = quo
		paid += quo
	}
	payouts[0] += pool - paid
	return payouts, nil
}

// scaledUnit returns 10^decimals as a big integer: the full transferable
// balance of one asset unit under the mint's decimal configuration.
func scaledUnit(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// balanceDelta is one entry of a payout plan: a positive amount credits the
// address, a negative amount debits it.
type balanceDelta struct {
	addr   [20]byte
	amount *big.Int
}

// buildPayoutPlan turns a settlement breakdown into an ordered list of
// balance deltas and verifies the list sums to zero before anything is
// applied. Zero-amount entries are dropped so no zero-value credits hit the
// state.
func buildPayoutPlan(buyer [20]byte, s *Settlement, taxRecipient [20]byte) ([]balanceDelta, error) {
	price := s.Record.ExpectedAmount
	deltas := make([]balanceDelta, 0, len(s.CreatorPayouts)+3)
	deltas = append(deltas, balanceDelta{addr: buyer, amount: new(big.Int).Neg(new(big.Int).SetUint64(price))})
	if s.Tax > 0 {
		deltas = append(deltas, balanceDelta{addr: taxRecipient, amount: new(big.Int).SetUint64(s.Tax)})
	}
	for _, payout := range s.CreatorPayouts {
		if payout.Amount == 0 {
			continue
		}
		deltas = append(deltas, balanceDelta{addr: payout.Address, amount: new(big.Int).SetUint64(payout.Amount)})
	}
	if s.SellerProceeds > 0 {
		deltas = append(deltas, balanceDelta{addr: s.Record.Seller, amount: new(big.Int).SetUint64(s.SellerProceeds)})
	}
	sum := big.NewInt(0)
	for _, d := range deltas {
		sum.Add(sum, d.amount)
	}
	if sum.Sign() != 0 {
		return nil, ErrArithmeticOverflow
	}
	return deltas, nil
}
