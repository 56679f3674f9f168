package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"saleledger/core"
	"saleledger/crypto"
	"saleledger/storage"
)

func testBech32(fill byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.MustAddress(raw).String()
}

func testRaw(fill byte) [20]byte {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return raw
}

func testSpec() *Spec {
	return &Spec{
		Accounts: []AccountSpec{
			{Address: testBech32(0x01), Balance: "1000000"},
		},
		Mints: []MintSpec{
			{ID: testBech32(0x02), Decimals: 9, Authority: testBech32(0x03)},
		},
		Holdings: []HoldingSpec{
			{Owner: testBech32(0x04), Mint: testBech32(0x02), Amount: "1000000000"},
		},
		Metadata: []MetadataSpec{
			{
				Mint:         testBech32(0x02),
				SellerFeeBps: 500,
				Creators: []CreatorSpec{
					{Address: testBech32(0x05), Share: 100, Verified: true},
				},
			},
		},
	}
}

func TestApplyInitialisesNode(t *testing.T) {
	node := core.NewNode(storage.NewMemDB())
	require.NoError(t, Apply(node, testSpec()))

	balance, err := node.Balance(testRaw(0x01))
	require.NoError(t, err)
	require.Equal(t, "1000000", balance.String())

	decimals, ok := node.Tokens().MintDecimals(testRaw(0x02))
	require.True(t, ok)
	require.Equal(t, uint8(9), decimals)

	holding := node.HoldingBalance(testRaw(0x04), testRaw(0x02))
	require.Equal(t, 0, holding.Cmp(big.NewInt(1_000_000_000)))
}

func TestApplyRejectsUnknownMintReferences(t *testing.T) {
	spec := testSpec()
	spec.Holdings[0].Mint = testBech32(0x0F)
	node := core.NewNode(storage.NewMemDB())
	require.Error(t, Apply(node, spec))

	spec = testSpec()
	spec.Metadata[0].Mint = testBech32(0x0F)
	node = core.NewNode(storage.NewMemDB())
	require.Error(t, Apply(node, spec))
}

func TestApplyRejectsBadAmounts(t *testing.T) {
	spec := testSpec()
	spec.Accounts[0].Balance = "not-a-number"
	node := core.NewNode(storage.NewMemDB())
	require.Error(t, Apply(node, spec))

	spec = testSpec()
	spec.Accounts[0].Balance = "-5"
	node = core.NewNode(storage.NewMemDB())
	require.Error(t, Apply(node, spec))
}

func TestApplyNilSpecIsANoop(t *testing.T) {
	node := core.NewNode(storage.NewMemDB())
	require.NoError(t, Apply(node, nil))
}

func TestLoadFile(t *testing.T) {
	contents := `
accounts:
  - address: ` + testBech32(0x01) + `
    balance: "500"
mints:
  - id: ` + testBech32(0x02) + `
    decimals: 6
    authority: ` + testBech32(0x03) + `
holdings:
  - owner: ` + testBech32(0x04) + `
    mint: ` + testBech32(0x02) + `
    amount: "1000000"
metadata:
  - mint: ` + testBech32(0x02) + `
    sellerFeeBps: 250
    creators:
      - address: ` + testBech32(0x05) + `
        share: 100
        verified: true
`
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	spec, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, spec.Accounts, 1)
	require.Len(t, spec.Mints, 1)
	require.Equal(t, uint8(6), spec.Mints[0].Decimals)
	require.Len(t, spec.Holdings, 1)
	require.Len(t, spec.Metadata, 1)
	require.Equal(t, uint32(250), spec.Metadata[0].SellerFeeBps)
	require.True(t, spec.Metadata[0].Creators[0].Verified)

	node := core.NewNode(storage.NewMemDB())
	require.NoError(t, Apply(node, spec))
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts: {not: [valid"), 0o600))
	_, err := LoadFile(path)
	require.Error(t, err)
}
