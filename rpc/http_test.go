package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"saleledger/core"
	"saleledger/core/types"
	"saleledger/crypto"
	"saleledger/native/directsell"
	"saleledger/storage"
)

type fixture struct {
	node   *core.Node
	rpc    *Server
	server *httptest.Server

	seller [20]byte
	buyer  [20]byte
	mint   [20]byte
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech(addr [20]byte) string {
	return crypto.MustAddress(addr).String()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		seller: testAddr(0x01),
		buyer:  testAddr(0x02),
		mint:   testAddr(0x03),
	}
	issuer := testAddr(0x04)
	node := core.NewNode(storage.NewMemDB(),
		core.WithTaxRecipient(testAddr(0x05)),
		core.WithAdmin(testAddr(0x06)),
	)
	_, err := node.Tokens().RegisterMint(f.mint, 0, issuer)
	require.NoError(t, err)
	require.NoError(t, node.Tokens().MintTo(f.mint, issuer, f.seller, big.NewInt(1)))
	require.NoError(t, node.RegisterMetadata(issuer, &directsell.AssetMetadata{Mint: f.mint}))
	require.NoError(t, node.State().PutAccount(f.buyer, &types.Account{Balance: big.NewInt(10_000)}))

	server := NewServer(node, nil)
	f.node = node
	f.rpc = server
	f.server = httptest.NewServer(server.Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) call(t *testing.T, method string, params interface{}, headers map[string]string) (*http.Response, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/", bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return resp, rpcResp
}

func (f *fixture) sell(t *testing.T, price uint64) {
	t.Helper()
	_, bump, err := directsell.SaleAddress(f.seller, f.mint)
	require.NoError(t, err)
	_, authorityBump, err := directsell.SharedAuthority()
	require.NoError(t, err)
	resp, rpcResp := f.call(t, "directsell_sell", map[string]interface{}{
		"seller":        bech(f.seller),
		"mint":          bech(f.mint),
		"price":         price,
		"bump":          bump,
		"authorityBump": authorityBump,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	httpResp, rpcResp := f.call(t, "directsell_unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, httpResp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeMethodNotFound, rpcResp.Error.Code)
}

func TestSellAndGetListing(t *testing.T) {
	f := newFixture(t)
	f.sell(t, 1_000)

	resp, rpcResp := f.call(t, "directsell_getListing", map[string]interface{}{
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)

	encoded, err := json.Marshal(rpcResp.Result)
	require.NoError(t, err)
	var listing listingJSON
	require.NoError(t, json.Unmarshal(encoded, &listing))
	require.Equal(t, bech(f.seller), listing.Seller)
	require.Equal(t, bech(f.mint), listing.Mint)
	require.Equal(t, uint64(1_000), listing.ExpectedAmount)
	require.NotEmpty(t, listing.Address)
}

func TestGetListingNotFound(t *testing.T) {
	f := newFixture(t)
	resp, rpcResp := f.call(t, "directsell_getListing", map[string]interface{}{
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeNotFound, rpcResp.Error.Code)
}

func TestBuySettlesOverRPC(t *testing.T) {
	f := newFixture(t)
	f.sell(t, 1_000)

	authority, authorityBump, err := directsell.SharedAuthority()
	require.NoError(t, err)
	resp, rpcResp := f.call(t, "directsell_buy", map[string]interface{}{
		"buyer":         bech(f.buyer),
		"seller":        bech(f.seller),
		"mint":          bech(f.mint),
		"price":         1_000,
		"authority":     bech(authority),
		"authorityBump": authorityBump,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)

	encoded, err := json.Marshal(rpcResp.Result)
	require.NoError(t, err)
	var settlement settlementJSON
	require.NoError(t, json.Unmarshal(encoded, &settlement))
	require.Equal(t, bech(f.buyer), settlement.Buyer)
	require.Equal(t, uint64(9), settlement.Tax)
	require.Equal(t, uint64(991), settlement.SellerProceeds)

	// The seller's proceeds are visible through the balance query.
	balResp, balRPC := f.call(t, "directsell_balance", map[string]interface{}{
		"address": bech(f.seller),
	}, nil)
	require.Equal(t, http.StatusOK, balResp.StatusCode)
	require.Nil(t, balRPC.Error)
}

func TestBuyPriceMismatchMapsToValueError(t *testing.T) {
	f := newFixture(t)
	f.sell(t, 1_000)

	authority, authorityBump, err := directsell.SharedAuthority()
	require.NoError(t, err)
	resp, rpcResp := f.call(t, "directsell_buy", map[string]interface{}{
		"buyer":         bech(f.buyer),
		"seller":        bech(f.seller),
		"mint":          bech(f.mint),
		"price":         900,
		"authority":     bech(authority),
		"authorityBump": authorityBump,
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeValueError, rpcResp.Error.Code)
}

func TestCancelOverRPC(t *testing.T) {
	f := newFixture(t)
	f.sell(t, 1_000)

	resp, rpcResp := f.call(t, "directsell_cancel", map[string]interface{}{
		"caller": bech(f.buyer),
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeForbidden, rpcResp.Error.Code)

	resp, rpcResp = f.call(t, "directsell_cancel", map[string]interface{}{
		"caller": bech(f.seller),
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)
}

func TestCancelWithAuthorityOverRPC(t *testing.T) {
	f := newFixture(t)
	f.sell(t, 1_000)

	resp, rpcResp := f.call(t, "directsell_cancelWithAuthority", map[string]interface{}{
		"caller": bech(testAddr(0x06)),
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	t.Setenv("SALE_RPC_TOKEN", "secret-token")
	f := newFixture(t)

	_, bump, err := directsell.SaleAddress(f.seller, f.mint)
	require.NoError(t, err)
	_, authorityBump, err := directsell.SharedAuthority()
	require.NoError(t, err)
	params := map[string]interface{}{
		"seller":        bech(f.seller),
		"mint":          bech(f.mint),
		"price":         1_000,
		"bump":          bump,
		"authorityBump": authorityBump,
	}

	resp, rpcResp := f.call(t, "directsell_sell", params, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeUnauthorized, rpcResp.Error.Code)

	resp, rpcResp = f.call(t, "directsell_sell", params, map[string]string{
		"Authorization": "Bearer wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, rpcResp = f.call(t, "directsell_sell", params, map[string]string{
		"Authorization": "Bearer secret-token",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)

	// Reads stay open regardless of the token.
	resp, rpcResp = f.call(t, "directsell_getListing", map[string]interface{}{
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)
}

func TestMutatingMethodsAreRateLimited(t *testing.T) {
	f := newFixture(t)
	f.rpc.SetRateLimit(6, 2)

	_, bump, err := directsell.SaleAddress(f.seller, f.mint)
	require.NoError(t, err)
	_, authorityBump, err := directsell.SharedAuthority()
	require.NoError(t, err)
	params := map[string]interface{}{
		"seller":        bech(f.seller),
		"mint":          bech(f.mint),
		"price":         1_000,
		"bump":          bump,
		"authorityBump": authorityBump,
	}

	resp, rpcResp := f.call(t, "directsell_sell", params, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)

	// A duplicate listing still spends the second token of the burst.
	resp, rpcResp = f.call(t, "directsell_sell", params, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeConflict, rpcResp.Error.Code)

	resp, rpcResp = f.call(t, "directsell_sell", params, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, codeRateLimited, rpcResp.Error.Code)

	// Reads are never throttled.
	resp, rpcResp = f.call(t, "directsell_getListing", map[string]interface{}{
		"seller": bech(f.seller),
		"mint":   bech(f.mint),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, rpcResp.Error)
}
