package directsell

import (
	"math/big"

	"saleledger/core/events"
	"saleledger/core/types"
)

type engineState interface {
	SaleGet(addr [20]byte) (*SaleRecord, bool)
	SalePut(addr [20]byte, rec *SaleRecord) error
	SaleDelete(addr [20]byte) error
	MetadataGet(addr [20]byte) (*AssetMetadata, bool)
	MetadataPut(addr [20]byte, meta *AssetMetadata) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// TokenLedger is the asset-side surface the engine needs: mint lookups,
// balances, and the delegation primitives that implement escrow.
type TokenLedger interface {
	MintDecimals(id [20]byte) (uint8, bool)
	MintAuthority(id [20]byte) ([20]byte, bool)
	BalanceOf(owner, mint [20]byte) *big.Int
	DelegateOf(owner, mint [20]byte) ([20]byte, *big.Int, bool)
	Approve(owner, mint, delegate [20]byte, amount *big.Int) error
	Revoke(owner, mint [20]byte) error
	DelegatedTransfer(delegate, from, to, mint [20]byte, amount *big.Int) error
}

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// Engine owns the direct-sale state machine: listing creation and
// maintenance, the atomic buy transition with tax and royalty fan-out, and
// the admin override. Every transition validates fully before it applies
// anything; a failed transition leaves state untouched.
type Engine struct {
	state        engineState
	tokens       TokenLedger
	emitter      events.Emitter
	taxRecipient [20]byte
	admin        [20]byte
	taxBps       uint32
}

// NewEngine creates an engine with a no-op emitter and the default platform
// tax rate. State, token ledger, tax recipient and admin are wired by the
// node at boot and never change afterwards.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		taxBps:  DefaultTaxBps,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens configures the token ledger used for escrow and transfers.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetTaxRecipient configures the fixed platform tax sink.
func (e *Engine) SetTaxRecipient(addr [20]byte) { e.taxRecipient = addr }

// SetAdmin configures the fixed admin identity for forced cancellation.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetTaxBps overrides the platform tax rate. Boot-time wiring only; no
// transaction path can reach it.
func (e *Engine) SetTaxBps(bps uint32) { e.taxBps = bps }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(saleEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Sell creates the sale record for (seller, mint) and escrows one scaled
// asset unit by delegating transfer rights to the shared escrow authority.
// Both bumps must be the canonical ones for their derivations.
func (e *Engine) Sell(seller, mint [20]byte, price uint64, bump, authorityBump uint8) (*SaleRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, ErrInvalidAmount
	}
	decimals, ok := e.tokens.MintDecimals(mint)
	if !ok {
		return nil, ErrMintNotFound
	}
	recordAddr, canonicalBump, err := SaleAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	if bump != canonicalBump {
		return nil, ErrInvalidBump
	}
	if _, exists := e.state.SaleGet(recordAddr); exists {
		return nil, ErrRecordAlreadyExists
	}
	authority, canonicalAuthorityBump, err := SharedAuthority()
	if err != nil {
		return nil, err
	}
	if authorityBump != canonicalAuthorityBump {
		return nil, ErrAuthorityMismatch
	}
	unit := scaledUnit(decimals)
	if e.tokens.BalanceOf(seller, mint).Cmp(unit) < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := e.tokens.Approve(seller, mint, authority, unit); err != nil {
		return nil, err
	}
	rec := &SaleRecord{Seller: seller, Mint: mint, ExpectedAmount: price, Bump: bump}
	if err := e.state.SalePut(recordAddr, rec); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(rec))
	return rec.Clone(), nil
}

// LowerPrice replaces the expected amount with a strictly lower one. The
// operation is directional: it can never raise the price.
func (e *Engine) LowerPrice(caller, seller, mint [20]byte, newPrice uint64) (*SaleRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	recordAddr, _, err := SaleAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	rec, ok := e.state.SaleGet(recordAddr)
	if !ok {
		return nil, ErrRecordNotFound
	}
	if caller != rec.Seller {
		return nil, ErrUnauthorized
	}
	if newPrice == 0 {
		return nil, ErrInvalidAmount
	}
	if newPrice >= rec.ExpectedAmount {
		return nil, ErrPriceNotLower
	}
	previous := rec.ExpectedAmount
	rec = rec.Clone()
	rec.ExpectedAmount = newPrice
	if err := e.state.SalePut(recordAddr, rec); err != nil {
		return nil, err
	}
	e.emit(NewPriceLoweredEvent(rec, previous))
	return rec.Clone(), nil
}

// Cancel unwinds a listing on the seller's own authority: the escrow
// delegation is revoked and the record deleted, restoring sole seller
// control over the asset.
func (e *Engine) Cancel(caller, seller, mint [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	recordAddr, _, err := SaleAddress(seller, mint)
	if err != nil {
		return err
	}
	rec, ok := e.state.SaleGet(recordAddr)
	if !ok {
		return ErrRecordNotFound
	}
	if caller != rec.Seller {
		return ErrUnauthorized
	}
	if err := e.tokens.Revoke(seller, mint); err != nil {
		return err
	}
	if err := e.state.SaleDelete(recordAddr); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(rec))
	return nil
}

// CancelWithAuthority performs the same cleanup as Cancel but on the fixed
// admin identity, bypassing seller consent. The asset always returns to the
// seller; the admin can neither redirect it nor touch any funds.
func (e *Engine) CancelWithAuthority(caller, seller, mint [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.admin == ([20]byte{}) {
		return errNoAdmin
	}
	if caller != e.admin {
		return ErrUnauthorized
	}
	recordAddr, _, err := SaleAddress(seller, mint)
	if err != nil {
		return err
	}
	rec, ok := e.state.SaleGet(recordAddr)
	if !ok {
		return ErrRecordNotFound
	}
	if err := e.tokens.Revoke(seller, mint); err != nil {
		return err
	}
	if err := e.state.SaleDelete(recordAddr); err != nil {
		return err
	}
	e.emit(NewAdminCancelledEvent(rec, caller))
	return nil
}

// Buy executes the atomic settlement: it validates the record, the escrow
// authority derivation, the metadata and the supplied creator list, then
// moves the asset to the buyer and fans the payment out to tax recipient,
// creators and seller in one transition. Any validation failure aborts with
// no partial effect.
//
// The supplied authority must re-derive under one of the two schemes with
// the supplied bump AND be the delegate actually granted at listing time;
// the engine never stores which scheme a listing used.
func (e *Engine) Buy(buyer, seller, mint [20]byte, price uint64, authority [20]byte, authorityBump uint8, creators [][20]byte) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.taxRecipient == ([20]byte{}) {
		return nil, errNoTaxSink
	}
	recordAddr, _, err := SaleAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	rec, ok := e.state.SaleGet(recordAddr)
	if !ok {
		return nil, ErrRecordNotFound
	}
	if price != rec.ExpectedAmount {
		return nil, ErrPriceMismatch
	}
	scheme, err := ResolveAuthority(authorityBump, seller, authority)
	if err != nil {
		return nil, err
	}
	delegate, delegated, ok := e.tokens.DelegateOf(seller, mint)
	if !ok {
		return nil, ErrAuthorityMismatch
	}
	if authority != delegate {
		return nil, ErrAuthorityMismatch
	}
	metaAddr, _, err := MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	meta, ok := e.state.MetadataGet(metaAddr)
	if !ok {
		return nil, ErrMetadataMismatch
	}
	if meta.Mint != mint {
		return nil, ErrMetadataMismatch
	}
	if len(creators) != len(meta.Creators) {
		return nil, ErrCreatorListMismatch
	}
	for i, declared := range meta.Creators {
		if creators[i] != declared.Address {
			return nil, ErrCreatorListMismatch
		}
	}
	decimals, ok := e.tokens.MintDecimals(mint)
	if !ok {
		return nil, ErrMintNotFound
	}
	unit := scaledUnit(decimals)
	if delegated.Cmp(unit) < 0 {
		return nil, ErrAuthorityMismatch
	}
	// The holding must still cover the escrowed unit before any balance
	// moves; a drained holding with a surviving delegation must not let
	// the currency fan-out commit ahead of a doomed asset transfer.
	if e.tokens.BalanceOf(seller, mint).Cmp(unit) < 0 {
		return nil, ErrInsufficientBalance
	}
	settlement, err := e.computeSettlement(rec, buyer, meta)
	if err != nil {
		return nil, err
	}
	settlement.Scheme = scheme
	plan, err := buildPayoutPlan(buyer, settlement, e.taxRecipient)
	if err != nil {
		return nil, err
	}
	if err := e.applyDeltas(plan); err != nil {
		return nil, err
	}
	if err := e.tokens.DelegatedTransfer(delegate, seller, buyer, mint, unit); err != nil {
		return nil, err
	}
	if err := e.state.SaleDelete(recordAddr); err != nil {
		return nil, err
	}
	e.emit(NewSettledEvent(settlement))
	return settlement, nil
}

// RegisterMetadata installs the royalty metadata for a mint at its derived
// address. Only the mint authority may install or replace it; the core
// never constructs metadata itself.
func (e *Engine) RegisterMetadata(caller [20]byte, meta *AssetMetadata) error {
	if err := e.ready(); err != nil {
		return err
	}
	if meta == nil {
		return ErrMetadataMismatch
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	authority, ok := e.tokens.MintAuthority(meta.Mint)
	if !ok {
		return ErrMintNotFound
	}
	if caller != authority {
		return ErrUnauthorized
	}
	metaAddr, _, err := MetadataAddress(meta.Mint)
	if err != nil {
		return err
	}
	return e.state.MetadataPut(metaAddr, meta.Clone())
}

// Listing returns the sale record for (seller, mint) if one exists.
func (e *Engine) Listing(seller, mint [20]byte) (*SaleRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	recordAddr, _, err := SaleAddress(seller, mint)
	if err != nil {
		return nil, err
	}
	rec, ok := e.state.SaleGet(recordAddr)
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (e *Engine) computeSettlement(rec *SaleRecord, buyer [20]byte, meta *AssetMetadata) (*Settlement, error) {
	price := rec.ExpectedAmount
	tax, err := mulBps(price, e.taxBps)
	if err != nil {
		return nil, err
	}
	var pool uint64
	var payouts []CreatorPayout
	if len(meta.Creators) > 0 {
		pool, err = mulBps(price, meta.SellerFeeBps)
		if err != nil {
			return nil, err
		}
		shares := make([]uint8, len(meta.Creators))
		for i, c := range meta.Creators {
			shares[i] = c.Share
		}
		amounts, err := SplitRoyalties(pool, shares)
		if err != nil {
			return nil, err
		}
		payouts = make([]CreatorPayout, len(meta.Creators))
		for i, c := range meta.Creators {
			payouts[i] = CreatorPayout{Address: c.Address, Amount: amounts[i], Verified: c.Verified}
		}
	}
	if tax+pool < tax || tax+pool > price {
		return nil, ErrArithmeticOverflow
	}
	return &Settlement{
		Record:         rec.Clone(),
		Buyer:          buyer,
		Tax:            tax,
		RoyaltyPool:    pool,
		SellerProceeds: price - tax - pool,
		CreatorPayouts: payouts,
	}, nil
}

// applyDeltas settles a zero-sum payout plan against the account store. It
// first verifies every aggregated debit is covered, then applies all
// deltas; nothing is written until the whole plan is known to succeed.
func (e *Engine) applyDeltas(deltas []balanceDelta) error {
	aggregated := make(map[[20]byte]*big.Int, len(deltas))
	order := make([][20]byte, 0, len(deltas))
	for _, d := range deltas {
		if _, seen := aggregated[d.addr]; !seen {
			aggregated[d.addr] = big.NewInt(0)
			order = append(order, d.addr)
		}
		aggregated[d.addr].Add(aggregated[d.addr], d.amount)
	}
	accounts := make(map[[20]byte]*types.Account, len(order))
	for _, addr := range order {
		acc, err := e.state.GetAccount(addr)
		if err != nil {
			return err
		}
		acc = ensureAccount(acc)
		next := new(big.Int).Add(acc.Balance, aggregated[addr])
		if next.Sign() < 0 {
			return ErrInsufficientFunds
		}
		acc.Balance = next
		accounts[addr] = acc
	}
	for _, addr := range order {
		if err := e.state.PutAccount(addr, accounts[addr]); err != nil {
			return err
		}
	}
	return nil
}
