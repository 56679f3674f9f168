package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"saleledger/cmd/internal/passphrase"
	"saleledger/crypto"
	"saleledger/native/directsell"
)

const usage = `salectl: operator tooling for the sale ledger

Commands:
  keygen [-out FILE]             generate a keypair into an encrypted keystore
  derive -seller A -mint M       print the derived sale and authority addresses
  genesis-template               print a genesis allocation template
`

const passphraseEnv = "SALE_KEYSTORE_PASSPHRASE"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	switch os.Args[1] {
	case "keygen":
		runKeygen(os.Args[2:])
	case "derive":
		runDerive(os.Args[2:])
	case "genesis-template":
		runGenesisTemplate()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "keystore.json", "path for the encrypted keystore file")
	_ = fs.Parse(args)

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fatal(err)
	}
	secret, err := passphrase.NewSource(passphraseEnv).Get()
	if err != nil {
		fatal(err)
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    common.BytesToAddress(key.PubKey().Address().Bytes()),
		PrivateKey: key.PrivateKey,
	}, secret, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(*out, encrypted, 0o600); err != nil {
		fatal(err)
	}
	fmt.Printf("address:  %s\n", key.PubKey().Address())
	fmt.Printf("keystore: %s\n", *out)
}

func runDerive(args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	sellerStr := fs.String("seller", "", "seller address (bech32)")
	mintStr := fs.String("mint", "", "mint address (bech32)")
	_ = fs.Parse(args)
	if *sellerStr == "" || *mintStr == "" {
		fatal(fmt.Errorf("derive requires -seller and -mint"))
	}
	seller, err := crypto.DecodeAddress(*sellerStr)
	if err != nil {
		fatal(fmt.Errorf("seller: %w", err))
	}
	mint, err := crypto.DecodeAddress(*mintStr)
	if err != nil {
		fatal(fmt.Errorf("mint: %w", err))
	}

	saleAddr, saleBump, err := directsell.SaleAddress(seller.Raw(), mint.Raw())
	if err != nil {
		fatal(err)
	}
	sharedAddr, sharedBump, err := directsell.SharedAuthority()
	if err != nil {
		fatal(err)
	}
	legacyAddr, legacyBump, err := directsell.SellerAuthority(seller.Raw())
	if err != nil {
		fatal(err)
	}
	metaAddr, _, err := directsell.MetadataAddress(mint.Raw())
	if err != nil {
		fatal(err)
	}

	fmt.Printf("sale record:      %s (bump %d)\n", crypto.MustAddress(saleAddr), saleBump)
	fmt.Printf("shared authority: %s (bump %d)\n", crypto.MustAddress(sharedAddr), sharedBump)
	fmt.Printf("legacy authority: %s (bump %d)\n", crypto.MustAddress(legacyAddr), legacyBump)
	fmt.Printf("metadata:         %s\n", crypto.MustAddress(metaAddr))
}

func runGenesisTemplate() {
	fmt.Print(`accounts:
  - address: sale1...
    balance: "1000000000"
mints:
  - id: sale1...
    decimals: 9
    authority: sale1...
holdings:
  - owner: sale1...
    mint: sale1...
    amount: "1000000000"
metadata:
  - mint: sale1...
    sellerFeeBps: 500
    creators:
      - address: sale1...
        share: 60
        verified: true
      - address: sale1...
        share: 40
        verified: false
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "salectl: %v\n", err)
	os.Exit(1)
}
