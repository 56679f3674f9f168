package genesis

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"saleledger/core"
	"saleledger/crypto"
	"saleledger/native/directsell"
)

// Spec is the YAML boot allocation for a fresh ledger: currency balances,
// asset mints, initial holdings and royalty metadata.
type Spec struct {
	Accounts []AccountSpec  `yaml:"accounts"`
	Mints    []MintSpec     `yaml:"mints"`
	Holdings []HoldingSpec  `yaml:"holdings"`
	Metadata []MetadataSpec `yaml:"metadata"`
}

type AccountSpec struct {
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

type MintSpec struct {
	ID        string `yaml:"id"`
	Decimals  uint8  `yaml:"decimals"`
	Authority string `yaml:"authority"`
}

type HoldingSpec struct {
	Owner  string `yaml:"owner"`
	Mint   string `yaml:"mint"`
	Amount string `yaml:"amount"`
}

type MetadataSpec struct {
	Mint         string        `yaml:"mint"`
	SellerFeeBps uint32        `yaml:"sellerFeeBps"`
	Creators     []CreatorSpec `yaml:"creators"`
}

type CreatorSpec struct {
	Address  string `yaml:"address"`
	Share    uint8  `yaml:"share"`
	Verified bool   `yaml:"verified"`
}

// LoadFile parses a genesis spec from disk.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return spec, nil
}

// Apply initialises a node from the spec. Mints are registered before
// holdings are issued and metadata installed, so specs can reference them
// in any order.
func Apply(node *core.Node, spec *Spec) error {
	if spec == nil {
		return nil
	}
	for _, acc := range spec.Accounts {
		addr, err := decodeAddr(acc.Address)
		if err != nil {
			return err
		}
		balance, err := parseAmount(acc.Balance)
		if err != nil {
			return fmt.Errorf("genesis: account %s: %w", acc.Address, err)
		}
		account, err := node.State().GetAccount(addr)
		if err != nil {
			return err
		}
		account.Balance = balance
		if err := node.State().PutAccount(addr, account); err != nil {
			return err
		}
	}
	authorities := make(map[string][20]byte, len(spec.Mints))
	for _, mint := range spec.Mints {
		id, err := decodeAddr(mint.ID)
		if err != nil {
			return err
		}
		authority, err := decodeAddr(mint.Authority)
		if err != nil {
			return err
		}
		if _, err := node.Tokens().RegisterMint(id, mint.Decimals, authority); err != nil {
			return fmt.Errorf("genesis: mint %s: %w", mint.ID, err)
		}
		authorities[mint.ID] = authority
	}
	for _, holding := range spec.Holdings {
		owner, err := decodeAddr(holding.Owner)
		if err != nil {
			return err
		}
		mint, err := decodeAddr(holding.Mint)
		if err != nil {
			return err
		}
		amount, err := parseAmount(holding.Amount)
		if err != nil {
			return fmt.Errorf("genesis: holding %s/%s: %w", holding.Owner, holding.Mint, err)
		}
		authority, ok := authorities[holding.Mint]
		if !ok {
			return fmt.Errorf("genesis: holding references unknown mint %s", holding.Mint)
		}
		if err := node.Tokens().MintTo(mint, authority, owner, amount); err != nil {
			return err
		}
	}
	for _, meta := range spec.Metadata {
		mint, err := decodeAddr(meta.Mint)
		if err != nil {
			return err
		}
		authority, ok := authorities[meta.Mint]
		if !ok {
			return fmt.Errorf("genesis: metadata references unknown mint %s", meta.Mint)
		}
		creators := make([]directsell.Creator, len(meta.Creators))
		for i, c := range meta.Creators {
			addr, err := decodeAddr(c.Address)
			if err != nil {
				return err
			}
			creators[i] = directsell.Creator{Address: addr, Share: c.Share, Verified: c.Verified}
		}
		asset := &directsell.AssetMetadata{Mint: mint, SellerFeeBps: meta.SellerFeeBps, Creators: creators}
		if err := node.RegisterMetadata(authority, asset); err != nil {
			return fmt.Errorf("genesis: metadata %s: %w", meta.Mint, err)
		}
	}
	return nil
}

func decodeAddr(s string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(s)
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: %w", err)
	}
	return addr.Raw(), nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}
