package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/depositor/internal/fileutil"
	"github.com/mrz1836/depositor/internal/gateway"
)

// catalogFilePermissions is the permission mode for catalog files.
const catalogFilePermissions = 0o640

// fileFormat is the on-disk catalog layout: backing tables keyed by gateway ID.
type fileFormat struct {
	Gateways map[string][]BackingAsset `yaml:"gateways"`
}

// LoadFile reads backing tables from a YAML file into the catalog.
// Tables in the file replace the catalog's tables for the same gateways.
func (c *Catalog) LoadFile(path string) error {
	// #nosec G304 -- catalog path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing catalog file: %w", err)
	}

	for id, assets := range f.Gateways {
		c.Set(gateway.ParseID(id), assets)
	}
	return nil
}

// SaveFile writes every backing table to a YAML file.
func (c *Catalog) SaveFile(path string) error {
	f := fileFormat{Gateways: make(map[string][]BackingAsset)}

	c.mu.RLock()
	for id, assets := range c.entries {
		f.Gateways[id.String()] = assets
	}
	c.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}

	if err := fileutil.EnsureDir(path); err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, catalogFilePermissions)
}

// Defaults returns a catalog preloaded with the built-in backing tables.
func Defaults(registry *gateway.Registry) *Catalog {
	c := New(registry)
	c.SetNative(DefaultNativeAssets...)
	c.Set(gateway.OPEN, []BackingAsset{
		{Symbol: "OPEN.BTC", BackingCoinType: "BTC", GateFee: "0.0005", Precision: 8},
		{Symbol: "OPEN.ETH", BackingCoinType: "ETH", GateFee: "0.005", Precision: 8},
		{Symbol: "OPEN.LTC", BackingCoinType: "LTC", GateFee: "0.002", Precision: 8},
		{Symbol: "OPEN.EOS", BackingCoinType: "EOS", GateFee: "0.5", Precision: 6},
	})
	c.Set(gateway.RUDEX, []BackingAsset{
		{Symbol: "RUDEX.EOS", BackingCoin: "EOS", GatewayWallet: "rudex-gateway", MinAmount: 10000, Precision: 4, SupportsMemos: true},
		{Symbol: "RUDEX.GOLOS", BackingCoin: "GOLOS", GatewayWallet: "rudex", MinAmount: 1000, Precision: 3, SupportsMemos: true},
		{Symbol: "RUDEX.STEEM", BackingCoin: "STEEM", GatewayWallet: "rudex", MinAmount: 1000, Precision: 3, SupportsMemos: true},
	})
	return c
}
