package token

import "math/big"

// MaxDecimals bounds the decimal scaling of a mint. 18 keeps 10^decimals
// comfortably inside a uint64 word and matches the widest scaling the
// settlement engine will escrow.
const MaxDecimals = 18

// Mint describes an asset class: a unique identifier, its decimal scaling
// and the identity allowed to issue units of it.
type Mint struct {
	ID        [20]byte
	Decimals  uint8
	Authority [20]byte
}

// Clone returns a copy of the mint definition.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Delegation grants a third party the right to move up to Amount units out
// of a holding. The settlement engine uses it to escrow listed assets: the
// delegation is spent in full by a single delegated transfer.
type Delegation struct {
	Delegate [20]byte
	Amount   *big.Int
}

// Holding custodies a balance of one mint for one owner, together with an
// optional delegation over that balance.
type Holding struct {
	Balance  *big.Int
	Delegate *Delegation
}

// Clone returns a deep copy of the holding.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return &Holding{Balance: big.NewInt(0)}
	}
	clone := &Holding{Balance: big.NewInt(0)}
	if h.Balance != nil {
		clone.Balance = new(big.Int).Set(h.Balance)
	}
	if h.Delegate != nil {
		amount := big.NewInt(0)
		if h.Delegate.Amount != nil {
			amount = new(big.Int).Set(h.Delegate.Amount)
		}
		clone.Delegate = &Delegation{Delegate: h.Delegate.Delegate, Amount: amount}
	}
	return clone
}

// UnitAmount returns 10^decimals, the smallest-unit balance representing one
// whole unit of a mint.
func UnitAmount(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
