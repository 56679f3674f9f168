package token

import "math/big"

type ledgerState interface {
	MintGet(id [20]byte) (*Mint, bool)
	MintPut(m *Mint) error
	HoldingGet(owner, mint [20]byte) (*Holding, bool)
	HoldingPut(owner, mint [20]byte, h *Holding) error
}

// Ledger implements the asset side of the state machine: mints, holding
// balances and delegations. All mutations go through the configured state
// backend so the ledger itself stays free of storage concerns.
type Ledger struct {
	state ledgerState
}

// NewLedger creates a ledger over the provided state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

func (l *Ledger) holding(owner, mint [20]byte) *Holding {
	h, ok := l.state.HoldingGet(owner, mint)
	if !ok {
		return &Holding{Balance: big.NewInt(0)}
	}
	return h.Clone()
}

// RegisterMint records a new asset class. The identifier must be unused and
// decimals must not exceed MaxDecimals.
func (l *Ledger) RegisterMint(id [20]byte, decimals uint8, authority [20]byte) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if decimals > MaxDecimals {
		return nil, ErrInvalidDecimals
	}
	if _, exists := l.state.MintGet(id); exists {
		return nil, ErrMintExists
	}
	m := &Mint{ID: id, Decimals: decimals, Authority: authority}
	if err := l.state.MintPut(m); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// MintDecimals reports the decimal scaling of a mint.
func (l *Ledger) MintDecimals(id [20]byte) (uint8, bool) {
	if l == nil || l.state == nil {
		return 0, false
	}
	m, ok := l.state.MintGet(id)
	if !ok {
		return 0, false
	}
	return m.Decimals, true
}

// MintAuthority reports the issuing authority of a mint.
func (l *Ledger) MintAuthority(id [20]byte) ([20]byte, bool) {
	if l == nil || l.state == nil {
		return [20]byte{}, false
	}
	m, ok := l.state.MintGet(id)
	if !ok {
		return [20]byte{}, false
	}
	return m.Authority, true
}

// MintTo issues new units into the owner's holding. Only the mint authority
// may issue.
func (l *Ledger) MintTo(mint, caller, owner [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	m, ok := l.state.MintGet(mint)
	if !ok {
		return ErrMintNotFound
	}
	if m.Authority != caller {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	h := l.holding(owner, mint)
	h.Balance = new(big.Int).Add(h.Balance, amount)
	return l.state.HoldingPut(owner, mint, h)
}

// BalanceOf returns the holding balance for (owner, mint). The result is a
// copy; mutating it does not affect state.
func (l *Ledger) BalanceOf(owner, mint [20]byte) *big.Int {
	if l == nil || l.state == nil {
		return big.NewInt(0)
	}
	return l.holding(owner, mint).Balance
}

// DelegateOf reports the active delegation on (owner, mint), if any.
func (l *Ledger) DelegateOf(owner, mint [20]byte) ([20]byte, *big.Int, bool) {
	if l == nil || l.state == nil {
		return [20]byte{}, nil, false
	}
	h := l.holding(owner, mint)
	if h.Delegate == nil {
		return [20]byte{}, nil, false
	}
	return h.Delegate.Delegate, new(big.Int).Set(h.Delegate.Amount), true
}

// Approve grants a delegation over the owner's holding, replacing any
// existing delegation. The delegated amount must be positive and covered by
// the current balance.
func (l *Ledger) Approve(owner, mint, delegate [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if _, ok := l.state.MintGet(mint); !ok {
		return ErrMintNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	h := l.holding(owner, mint)
	if h.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	h.Delegate = &Delegation{Delegate: delegate, Amount: new(big.Int).Set(amount)}
	return l.state.HoldingPut(owner, mint, h)
}

// Revoke clears any delegation on the owner's holding. Revoking an
// undelegated holding is a no-op.
func (l *Ledger) Revoke(owner, mint [20]byte) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	h := l.holding(owner, mint)
	if h.Delegate == nil {
		return nil
	}
	h.Delegate = nil
	return l.state.HoldingPut(owner, mint, h)
}

// Transfer moves units between holdings on the owner's own authority.
func (l *Ledger) Transfer(from, to, mint [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return l.move(from, to, mint, amount)
}

// DelegatedTransfer moves units out of a delegated holding. The caller must
// be the recorded delegate and the amount must fit the delegation. The
// delegation is consumed entirely: one delegated transfer, then it is gone.
func (l *Ledger) DelegatedTransfer(delegate, from, to, mint [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	h := l.holding(from, mint)
	if h.Delegate == nil {
		return ErrNoDelegation
	}
	if h.Delegate.Delegate != delegate {
		return ErrDelegateMismatch
	}
	if h.Delegate.Amount.Cmp(amount) < 0 {
		return ErrDelegationExceeded
	}
	if h.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	h.Balance = new(big.Int).Sub(h.Balance, amount)
	h.Delegate = nil
	if err := l.state.HoldingPut(from, mint, h); err != nil {
		return err
	}
	dest := l.holding(to, mint)
	dest.Balance = new(big.Int).Add(dest.Balance, amount)
	return l.state.HoldingPut(to, mint, dest)
}

func (l *Ledger) move(from, to, mint [20]byte, amount *big.Int) error {
	src := l.holding(from, mint)
	if src.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Balance = new(big.Int).Sub(src.Balance, amount)
	if err := l.state.HoldingPut(from, mint, src); err != nil {
		return err
	}
	dest := l.holding(to, mint)
	dest.Balance = new(big.Int).Add(dest.Balance, amount)
	return l.state.HoldingPut(to, mint, dest)
}
