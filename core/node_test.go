package core

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"saleledger/core/types"
	"saleledger/native/directsell"
	"saleledger/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestNode(t *testing.T) (*Node, [20]byte, [20]byte, [20]byte) {
	t.Helper()
	seller := testAddr(0x01)
	buyer := testAddr(0x02)
	mint := testAddr(0x03)
	issuer := testAddr(0x04)

	node := NewNode(storage.NewMemDB(),
		WithTaxRecipient(testAddr(0x05)),
		WithAdmin(testAddr(0x06)),
	)
	if _, err := node.Tokens().RegisterMint(mint, 0, issuer); err != nil {
		t.Fatalf("register mint: %v", err)
	}
	if err := node.Tokens().MintTo(mint, issuer, seller, big.NewInt(1)); err != nil {
		t.Fatalf("mint to: %v", err)
	}
	if err := node.RegisterMetadata(issuer, &directsell.AssetMetadata{Mint: mint}); err != nil {
		t.Fatalf("register metadata: %v", err)
	}
	if err := node.State().PutAccount(buyer, &types.Account{Balance: big.NewInt(10_000)}); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}
	return node, seller, buyer, mint
}

func listThroughNode(t *testing.T, node *Node, seller, mint [20]byte, price uint64) {
	t.Helper()
	_, bump, err := directsell.SaleAddress(seller, mint)
	if err != nil {
		t.Fatalf("sale address: %v", err)
	}
	_, authorityBump, err := directsell.SharedAuthority()
	if err != nil {
		t.Fatalf("shared authority: %v", err)
	}
	if _, err := node.Sell(seller, mint, price, bump, authorityBump); err != nil {
		t.Fatalf("sell: %v", err)
	}
}

// The full lifecycle against the persistent state manager: the engine tests
// cover the transition semantics, this covers the storage wiring.
func TestNodeSellAndBuyLifecycle(t *testing.T) {
	node, seller, buyer, mint := newTestNode(t)
	listThroughNode(t, node, seller, mint, 10_000)

	rec, err := node.Listing(seller, mint)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if rec.ExpectedAmount != 10_000 {
		t.Fatalf("expected price 10000, got %d", rec.ExpectedAmount)
	}

	authority, authorityBump, err := directsell.SharedAuthority()
	if err != nil {
		t.Fatalf("shared authority: %v", err)
	}
	settlement, err := node.Buy(buyer, seller, mint, 10_000, authority, authorityBump, nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if settlement.Tax != 99 {
		t.Fatalf("expected tax 99, got %d", settlement.Tax)
	}

	sellerBalance, err := node.Balance(seller)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if sellerBalance.Cmp(big.NewInt(9_901)) != 0 {
		t.Fatalf("expected seller 9901, got %s", sellerBalance)
	}
	buyerBalance, err := node.Balance(buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if buyerBalance.Sign() != 0 {
		t.Fatalf("expected buyer drained, got %s", buyerBalance)
	}
	if node.HoldingBalance(buyer, mint).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected buyer to own the asset")
	}
	if _, err := node.Listing(seller, mint); !errors.Is(err, directsell.ErrRecordNotFound) {
		t.Fatalf("expected listing gone, got %v", err)
	}
}

// Racing buys serialize on the node's writer lock: exactly one settles,
// every other buyer observes a deleted record and keeps its funds, and the
// asset ends up in exactly one holding.
func TestNodeConcurrentBuyersSettleAtMostOnce(t *testing.T) {
	node, seller, _, mint := newTestNode(t)
	listThroughNode(t, node, seller, mint, 1_000)

	authority, authorityBump, err := directsell.SharedAuthority()
	if err != nil {
		t.Fatalf("shared authority: %v", err)
	}

	const buyers = 8
	addrs := make([][20]byte, buyers)
	for i := range addrs {
		addrs[i] = testAddr(byte(0x20 + i))
		if err := node.State().PutAccount(addrs[i], &types.Account{Balance: big.NewInt(1_000)}); err != nil {
			t.Fatalf("fund buyer %d: %v", i, err)
		}
	}

	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := range addrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = node.Buy(addrs[i], seller, mint, 1_000, authority, authorityBump, nil)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, buyErr := range errs {
		switch {
		case buyErr == nil:
			winners++
		case errors.Is(buyErr, directsell.ErrRecordNotFound):
		default:
			t.Fatalf("buyer %d: unexpected error %v", i, buyErr)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one settlement, got %d", winners)
	}

	holders := 0
	for i, addr := range addrs {
		balance := node.HoldingBalance(addr, mint)
		if balance.Sign() == 0 {
			continue
		}
		holders++
		if balance.Cmp(big.NewInt(1)) != 0 {
			t.Fatalf("buyer %d holds %s units", i, balance)
		}
		if errs[i] != nil {
			t.Fatalf("asset ended up with a failed buyer %d", i)
		}
	}
	if holders != 1 {
		t.Fatalf("expected the asset in exactly one holding, got %d", holders)
	}
	if node.HoldingBalance(seller, mint).Sign() != 0 {
		t.Fatalf("expected seller holding drained")
	}
}

func TestNodeLowerPriceAndCancel(t *testing.T) {
	node, seller, _, mint := newTestNode(t)
	listThroughNode(t, node, seller, mint, 1_000)

	rec, err := node.LowerPrice(seller, seller, mint, 400)
	if err != nil {
		t.Fatalf("lower price: %v", err)
	}
	if rec.ExpectedAmount != 400 {
		t.Fatalf("expected price 400, got %d", rec.ExpectedAmount)
	}

	if err := node.Cancel(seller, seller, mint); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := node.Listing(seller, mint); !errors.Is(err, directsell.ErrRecordNotFound) {
		t.Fatalf("expected listing gone, got %v", err)
	}
	if node.HoldingBalance(seller, mint).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected asset retained by seller")
	}
}

func TestNodeAdminCancel(t *testing.T) {
	node, seller, _, mint := newTestNode(t)
	listThroughNode(t, node, seller, mint, 1_000)

	if err := node.CancelWithAuthority(testAddr(0x07), seller, mint); !errors.Is(err, directsell.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
	if err := node.CancelWithAuthority(testAddr(0x06), seller, mint); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if _, err := node.Listing(seller, mint); !errors.Is(err, directsell.ErrRecordNotFound) {
		t.Fatalf("expected listing gone, got %v", err)
	}
}
