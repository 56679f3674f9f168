package core

import (
	"math/big"
	"sync"

	"saleledger/core/events"
	"saleledger/core/state"
	"saleledger/native/directsell"
	"saleledger/native/token"
	"saleledger/storage"
)

// Node owns the settlement state machine. Transitions execute under a
// single writer lock: each one either commits fully or leaves state
// untouched, and two racing buys for the same listing serialize here so at
// most one observes a live record.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	state  *state.Manager
	tokens *token.Ledger
	engine *directsell.Engine
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithTaxRecipient sets the fixed platform tax sink.
func WithTaxRecipient(addr [20]byte) Option {
	return func(n *Node) { n.engine.SetTaxRecipient(addr) }
}

// WithAdmin sets the fixed admin identity.
func WithAdmin(addr [20]byte) Option {
	return func(n *Node) { n.engine.SetAdmin(addr) }
}

// WithTaxBps overrides the platform tax rate.
func WithTaxBps(bps uint32) Option {
	return func(n *Node) { n.engine.SetTaxBps(bps) }
}

// WithEmitter wires downstream event consumers (metrics, indexers).
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) { n.engine.SetEmitter(emitter) }
}

// NewNode assembles state manager, token ledger and settlement engine over
// the given database.
func NewNode(db storage.Database, opts ...Option) *Node {
	manager := state.NewManager(db)
	tokens := token.NewLedger(manager)
	engine := directsell.NewEngine()
	engine.SetState(manager)
	engine.SetTokens(tokens)
	n := &Node{db: db, state: manager, tokens: tokens, engine: engine}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State exposes the state manager for genesis initialisation.
func (n *Node) State() *state.Manager { return n.state }

// Tokens exposes the token ledger for genesis initialisation and queries.
func (n *Node) Tokens() *token.Ledger { return n.tokens }

// Sell creates a listing.
func (n *Node) Sell(seller, mint [20]byte, price uint64, bump, authorityBump uint8) (*directsell.SaleRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Sell(seller, mint, price, bump, authorityBump)
}

// LowerPrice adjusts a listing's price downward.
func (n *Node) LowerPrice(caller, seller, mint [20]byte, newPrice uint64) (*directsell.SaleRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.LowerPrice(caller, seller, mint, newPrice)
}

// Buy settles a listing.
func (n *Node) Buy(buyer, seller, mint [20]byte, price uint64, authority [20]byte, authorityBump uint8, creators [][20]byte) (*directsell.Settlement, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Buy(buyer, seller, mint, price, authority, authorityBump, creators)
}

// Cancel unwinds a listing on seller authority.
func (n *Node) Cancel(caller, seller, mint [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Cancel(caller, seller, mint)
}

// CancelWithAuthority unwinds a listing on admin authority.
func (n *Node) CancelWithAuthority(caller, seller, mint [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.CancelWithAuthority(caller, seller, mint)
}

// RegisterMetadata installs royalty metadata for a mint.
func (n *Node) RegisterMetadata(caller [20]byte, meta *directsell.AssetMetadata) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.RegisterMetadata(caller, meta)
}

// Listing returns the sale record for (seller, mint).
func (n *Node) Listing(seller, mint [20]byte) (*directsell.SaleRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Listing(seller, mint)
}

// Balance returns the settlement-currency balance of an address.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// HoldingBalance returns the asset balance of (owner, mint).
func (n *Node) HoldingBalance(owner, mint [20]byte) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.BalanceOf(owner, mint)
}

// Close releases the underlying database.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.db != nil {
		n.db.Close()
	}
}
