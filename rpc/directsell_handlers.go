package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"saleledger/crypto"
	"saleledger/native/directsell"
)

type sellParams struct {
	Seller        string `json:"seller"`
	Mint          string `json:"mint"`
	Price         uint64 `json:"price"`
	Bump          uint8  `json:"bump"`
	AuthorityBump uint8  `json:"authorityBump"`
}

type lowerPriceParams struct {
	Caller string `json:"caller"`
	Seller string `json:"seller"`
	Mint   string `json:"mint"`
	Price  uint64 `json:"price"`
}

type buyParams struct {
	Buyer         string   `json:"buyer"`
	Seller        string   `json:"seller"`
	Mint          string   `json:"mint"`
	Price         uint64   `json:"price"`
	Authority     string   `json:"authority"`
	AuthorityBump uint8    `json:"authorityBump"`
	Creators      []string `json:"creators"`
}

type cancelParams struct {
	Caller string `json:"caller"`
	Seller string `json:"seller"`
	Mint   string `json:"mint"`
}

type listingParams struct {
	Seller string `json:"seller"`
	Mint   string `json:"mint"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type listingJSON struct {
	Seller         string `json:"seller"`
	Mint           string `json:"mint"`
	ExpectedAmount uint64 `json:"expectedAmount"`
	Bump           uint8  `json:"bump"`
	Address        string `json:"address"`
}

type creatorPayoutJSON struct {
	Address  string `json:"address"`
	Amount   uint64 `json:"amount"`
	Verified bool   `json:"verified"`
}

type settlementJSON struct {
	Listing        listingJSON         `json:"listing"`
	Buyer          string              `json:"buyer"`
	Tax            uint64              `json:"tax"`
	RoyaltyPool    uint64              `json:"royaltyPool"`
	SellerProceeds uint64              `json:"sellerProceeds"`
	CreatorPayouts []creatorPayoutJSON `json:"creatorPayouts"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func decodeAddr(s string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(s)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func listingToJSON(rec *directsell.SaleRecord) listingJSON {
	out := listingJSON{
		Seller:         crypto.MustAddress(rec.Seller).String(),
		Mint:           crypto.MustAddress(rec.Mint).String(),
		ExpectedAmount: rec.ExpectedAmount,
		Bump:           rec.Bump,
	}
	if addr, _, err := directsell.SaleAddress(rec.Seller, rec.Mint); err == nil {
		out.Address = crypto.MustAddress(addr).String()
	}
	return out
}

func (s *Server) handleSell(w http.ResponseWriter, req *RPCRequest) {
	var params sellParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	seller, err := decodeAddr(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("seller: %v", err))
		return
	}
	mint, err := decodeAddr(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("mint: %v", err))
		return
	}
	rec, err := s.node.Sell(seller, mint, params.Price, params.Bump, params.AuthorityBump)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(rec))
}

func (s *Server) handleLowerPrice(w http.ResponseWriter, req *RPCRequest) {
	var params lowerPriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	seller, err := decodeAddr(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("seller: %v", err))
		return
	}
	mint, err := decodeAddr(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("mint: %v", err))
		return
	}
	rec, err := s.node.LowerPrice(caller, seller, mint, params.Price)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(rec))
}

func (s *Server) handleBuy(w http.ResponseWriter, req *RPCRequest) {
	var params buyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	buyer, err := decodeAddr(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("buyer: %v", err))
		return
	}
	seller, err := decodeAddr(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("seller: %v", err))
		return
	}
	mint, err := decodeAddr(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("mint: %v", err))
		return
	}
	authority, err := decodeAddr(params.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("authority: %v", err))
		return
	}
	creators := make([][20]byte, len(params.Creators))
	for i, c := range params.Creators {
		creators[i], err = decodeAddr(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("creators[%d]: %v", i, err))
			return
		}
	}
	settlement, err := s.node.Buy(buyer, seller, mint, params.Price, authority, params.AuthorityBump, creators)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	payouts := make([]creatorPayoutJSON, len(settlement.CreatorPayouts))
	for i, payout := range settlement.CreatorPayouts {
		payouts[i] = creatorPayoutJSON{
			Address:  crypto.MustAddress(payout.Address).String(),
			Amount:   payout.Amount,
			Verified: payout.Verified,
		}
	}
	writeResult(w, req.ID, settlementJSON{
		Listing:        listingToJSON(settlement.Record),
		Buyer:          crypto.MustAddress(settlement.Buyer).String(),
		Tax:            settlement.Tax,
		RoyaltyPool:    settlement.RoyaltyPool,
		SellerProceeds: settlement.SellerProceeds,
		CreatorPayouts: payouts,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, req *RPCRequest) {
	s.cancelCommon(w, req, false)
}

func (s *Server) handleCancelWithAuthority(w http.ResponseWriter, req *RPCRequest) {
	s.cancelCommon(w, req, true)
}

func (s *Server) cancelCommon(w http.ResponseWriter, req *RPCRequest, admin bool) {
	var params cancelParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("caller: %v", err))
		return
	}
	seller, err := decodeAddr(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("seller: %v", err))
		return
	}
	mint, err := decodeAddr(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("mint: %v", err))
		return
	}
	if admin {
		err = s.node.CancelWithAuthority(caller, seller, mint)
	} else {
		err = s.node.Cancel(caller, seller, mint)
	}
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) {
	var params listingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	seller, err := decodeAddr(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("seller: %v", err))
		return
	}
	mint, err := decodeAddr(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("mint: %v", err))
		return
	}
	rec, err := s.node.Listing(seller, mint)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(rec))
}

func (s *Server) handleBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := decodeAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("address: %v", err))
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}
