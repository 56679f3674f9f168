package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"saleledger/crypto"
)

// Config is the node configuration. The tax recipient, tax rate and admin
// identity are fixed at boot: no transaction path can alter them, which is
// what keeps the platform fee and the override identity out of reach of
// callers.
type Config struct {
	RPCAddress       string  `toml:"RPCAddress"`
	DataDir          string  `toml:"DataDir"`
	GenesisFile      string  `toml:"GenesisFile"`
	NetworkName      string  `toml:"NetworkName"`
	LogFile          string  `toml:"LogFile"`
	IndexFile        string  `toml:"IndexFile"`
	TaxRecipient     string  `toml:"TaxRecipient"`
	TaxBps           uint32  `toml:"TaxBps"`
	AdminAddress     string  `toml:"AdminAddress"`
	RPCRatePerMinute float64 `toml:"RPCRatePerMinute"`
	RPCRateBurst     int     `toml:"RPCRateBurst"`
}

const defaultTaxBps uint32 = 99

// Default throttle for mutating RPC methods, per client.
const (
	defaultRPCRatePerMinute = 600
	defaultRPCRateBurst     = 20
)

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "saleledger-local"
	}
	if c.TaxBps == 0 {
		c.TaxBps = defaultTaxBps
	}
	if c.RPCRatePerMinute == 0 {
		c.RPCRatePerMinute = defaultRPCRatePerMinute
	}
	if c.RPCRateBurst == 0 {
		c.RPCRateBurst = defaultRPCRateBurst
	}
}

// Validate checks the fee and identity configuration. Both fixed identities
// must be valid bech32 addresses; the tax rate must stay within the bps
// range.
func (c *Config) Validate() error {
	if c.TaxBps > 10_000 {
		return fmt.Errorf("config: TaxBps %d out of range", c.TaxBps)
	}
	if c.RPCRatePerMinute < 0 {
		return fmt.Errorf("config: RPCRatePerMinute must not be negative")
	}
	if c.RPCRateBurst < 0 {
		return fmt.Errorf("config: RPCRateBurst must not be negative")
	}
	if strings.TrimSpace(c.TaxRecipient) == "" {
		return fmt.Errorf("config: TaxRecipient is required")
	}
	if _, err := crypto.DecodeAddress(c.TaxRecipient); err != nil {
		return fmt.Errorf("config: invalid TaxRecipient: %w", err)
	}
	if strings.TrimSpace(c.AdminAddress) == "" {
		return fmt.Errorf("config: AdminAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("config: invalid AdminAddress: %w", err)
	}
	return nil
}

// TaxRecipientAddress returns the decoded tax sink identity.
func (c *Config) TaxRecipientAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(c.TaxRecipient)
}

// Admin returns the decoded admin identity.
func (c *Config) Admin() (crypto.Address, error) {
	return crypto.DecodeAddress(c.AdminAddress)
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote template to %s; set TaxRecipient and AdminAddress before starting", path)
}
