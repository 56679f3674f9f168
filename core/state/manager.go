package state

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"saleledger/core/types"
	"saleledger/native/directsell"
	"saleledger/native/token"
	"saleledger/storage"
)

// Manager persists ledger records in a key-value database. Keys are
// keccak-hashed prefixed byte strings, values are RLP. It implements the
// state interfaces of both the token ledger and the settlement engine.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	accountPrefix  = []byte("directsale/account/")
	mintPrefix     = []byte("directsale/mint/")
	holdingPrefix  = []byte("directsale/holding/")
	salePrefix     = []byte("directsale/sale/")
	metadataPrefix = []byte("directsale/metadata/")
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(parts)*21)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
		buf = append(buf, ':')
	}
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr [20]byte) []byte { return prefixedKey(accountPrefix, addr[:]) }
func mintKey(id [20]byte) []byte      { return prefixedKey(mintPrefix, id[:]) }
func holdingKey(owner, mint [20]byte) []byte {
	return prefixedKey(holdingPrefix, owner[:], mint[:])
}
func saleKey(addr [20]byte) []byte     { return prefixedKey(salePrefix, addr[:]) }
func metadataKey(addr [20]byte) []byte { return prefixedKey(metadataPrefix, addr[:]) }

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

type storedHolding struct {
	Balance        *big.Int
	Delegated      bool
	Delegate       [20]byte
	DelegateAmount *big.Int
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// GetAccount loads the settlement-currency account for an address,
// returning a zeroed account when none is stored yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.getRLP(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	balance := stored.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists the account for an address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	account = account.Clone()
	return m.putRLP(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: account.Balance})
}

// MintGet loads a mint definition.
func (m *Manager) MintGet(id [20]byte) (*token.Mint, bool) {
	var mint token.Mint
	ok, err := m.getRLP(mintKey(id), &mint)
	if err != nil || !ok {
		return nil, false
	}
	return &mint, true
}

// MintPut persists a mint definition.
func (m *Manager) MintPut(mint *token.Mint) error {
	return m.putRLP(mintKey(mint.ID), mint)
}

// HoldingGet loads the holding for (owner, mint).
func (m *Manager) HoldingGet(owner, mint [20]byte) (*token.Holding, bool) {
	var stored storedHolding
	ok, err := m.getRLP(holdingKey(owner, mint), &stored)
	if err != nil || !ok {
		return nil, false
	}
	h := &token.Holding{Balance: stored.Balance}
	if h.Balance == nil {
		h.Balance = big.NewInt(0)
	}
	if stored.Delegated {
		amount := stored.DelegateAmount
		if amount == nil {
			amount = big.NewInt(0)
		}
		h.Delegate = &token.Delegation{Delegate: stored.Delegate, Amount: amount}
	}
	return h, true
}

// HoldingPut persists the holding for (owner, mint).
func (m *Manager) HoldingPut(owner, mint [20]byte, h *token.Holding) error {
	h = h.Clone()
	stored := storedHolding{Balance: h.Balance, DelegateAmount: big.NewInt(0)}
	if h.Delegate != nil {
		stored.Delegated = true
		stored.Delegate = h.Delegate.Delegate
		stored.DelegateAmount = h.Delegate.Amount
	}
	return m.putRLP(holdingKey(owner, mint), &stored)
}

// SaleGet loads the sale record stored at a derived address.
func (m *Manager) SaleGet(addr [20]byte) (*directsell.SaleRecord, bool) {
	var rec directsell.SaleRecord
	ok, err := m.getRLP(saleKey(addr), &rec)
	if err != nil || !ok {
		return nil, false
	}
	return &rec, true
}

// SalePut persists a sale record at its derived address.
func (m *Manager) SalePut(addr [20]byte, rec *directsell.SaleRecord) error {
	return m.putRLP(saleKey(addr), rec.Clone())
}

// SaleDelete removes the sale record at a derived address.
func (m *Manager) SaleDelete(addr [20]byte) error {
	return m.db.Delete(saleKey(addr))
}

// MetadataGet loads asset metadata from its derived address.
func (m *Manager) MetadataGet(addr [20]byte) (*directsell.AssetMetadata, bool) {
	var meta directsell.AssetMetadata
	ok, err := m.getRLP(metadataKey(addr), &meta)
	if err != nil || !ok {
		return nil, false
	}
	return &meta, true
}

// MetadataPut persists asset metadata at its derived address.
func (m *Manager) MetadataPut(addr [20]byte, meta *directsell.AssetMetadata) error {
	return m.putRLP(metadataKey(addr), meta.Clone())
}
