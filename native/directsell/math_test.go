package directsell

import (
	"errors"
	"math"
	"testing"
)

func TestMulBps(t *testing.T) {
	cases := []struct {
		name   string
		amount uint64
		bps    uint32
		want   uint64
	}{
		{"tax on round price", 10_000, 99, 99},
		{"tax on million", 1_000_000, 99, 9_900},
		{"rounds down to zero", 101, 99, 0},
		{"zero amount", 0, 5_000, 0},
		{"full rate is identity", 123_456_789, 10_000, 123_456_789},
		{"max amount full rate", math.MaxUint64, 10_000, math.MaxUint64},
		{"max amount half rate", math.MaxUint64, 5_000, math.MaxUint64 / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := mulBps(tc.amount, tc.bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("mulBps(%d, %d) = %d, want %d", tc.amount, tc.bps, got, tc.want)
			}
		})
	}
}

func TestMulBpsRejectsRateAboveDenominator(t *testing.T) {
	if _, err := mulBps(100, 10_001); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestSplitRoyaltiesConservesThePool(t *testing.T) {
	cases := []struct {
		name   string
		pool   uint64
		shares []uint8
		want   []uint64
	}{
		{"even split", 100, []uint8{50, 50}, []uint64{50, 50}},
		{"uneven shares", 500, []uint8{60, 40}, []uint64{300, 200}},
		{"remainder to first", 10, []uint8{33, 33, 34}, []uint64{4, 3, 3}},
		{"single creator", 777, []uint8{100}, []uint64{777}},
		{"zero pool", 0, []uint8{70, 30}, []uint64{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRoyalties(tc.pool, tc.shares)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d payouts, got %d", len(tc.want), len(got))
			}
			var sum uint64
			for i, amount := range got {
				if amount != tc.want[i] {
					t.Fatalf("payout %d = %d, want %d", i, amount, tc.want[i])
				}
				sum += amount
			}
			if sum != tc.pool {
				t.Fatalf("payouts sum to %d, pool is %d", sum, tc.pool)
			}
		})
	}
}

func TestSplitRoyaltiesRejectsBadShareTotal(t *testing.T) {
	if _, err := SplitRoyalties(100, []uint8{50, 49}); err == nil {
		t.Fatalf("expected rejection of shares summing to 99")
	}
	if _, err := SplitRoyalties(100, []uint8{60, 60}); err == nil {
		t.Fatalf("expected rejection of shares summing to 120")
	}
}

func TestSplitRoyaltiesEmptyShares(t *testing.T) {
	got, err := SplitRoyalties(100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil payouts, got %v", got)
	}
}

func TestBuildPayoutPlanDropsZeroEntries(t *testing.T) {
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	taxSink := newTestAddress(0x03)
	creator := newTestAddress(0x04)
	s := &Settlement{
		Record:         &SaleRecord{Seller: seller, ExpectedAmount: 1_000},
		Buyer:          buyer,
		Tax:            0,
		RoyaltyPool:    100,
		SellerProceeds: 900,
		CreatorPayouts: []CreatorPayout{
			{Address: creator, Amount: 100},
			{Address: newTestAddress(0x05), Amount: 0},
		},
	}
	plan, err := buildPayoutPlan(buyer, s, taxSink)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	// Buyer debit, creator credit, seller credit; zero tax and zero payout
	// are dropped.
	if len(plan) != 3 {
		t.Fatalf("expected 3 deltas, got %d", len(plan))
	}
	for _, d := range plan {
		if d.addr == taxSink || d.addr == newTestAddress(0x05) {
			t.Fatalf("expected zero-amount entries dropped, found %x", d.addr)
		}
	}
}

func TestBuildPayoutPlanRejectsUnbalancedBreakdown(t *testing.T) {
	buyer := newTestAddress(0x11)
	s := &Settlement{
		Record:         &SaleRecord{Seller: newTestAddress(0x12), ExpectedAmount: 1_000},
		Buyer:          buyer,
		Tax:            99,
		SellerProceeds: 900, // 99 + 900 != 1000
	}
	if _, err := buildPayoutPlan(buyer, s, newTestAddress(0x13)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}
