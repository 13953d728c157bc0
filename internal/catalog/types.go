package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mrz1836/depositor/internal/gateway"
)

// minDepositFeeMultiplier is applied to the gateway fee to get the smallest
// deposit worth sending.
const minDepositFeeMultiplier = 2

// BackingAsset is the per (gateway, asset) reference record.
type BackingAsset struct {
	Gateway         gateway.ID `json:"gateway" yaml:"-"`
	Symbol          string     `json:"symbol" yaml:"symbol"`
	BackingCoin     string     `json:"backing_coin,omitempty" yaml:"backing_coin,omitempty"`
	BackingCoinType string     `json:"backing_coin_type,omitempty" yaml:"backing_coin_type,omitempty"`
	GatewayWallet   string     `json:"gateway_wallet,omitempty" yaml:"gateway_wallet,omitempty"`
	MinAmount       int64      `json:"min_amount,omitempty" yaml:"min_amount,omitempty"`
	GateFee         string     `json:"gate_fee,omitempty" yaml:"gate_fee,omitempty"`
	Precision       int32      `json:"precision" yaml:"precision"`
	SupportsMemos   bool       `json:"supports_memos,omitempty" yaml:"supports_memos,omitempty"`
}

// Matches reports whether this record backs asset, comparing the backing coin
// and the backing coin type case-insensitively.
func (b BackingAsset) Matches(asset string) bool {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return false
	}
	return strings.EqualFold(b.BackingCoin, asset) || strings.EqualFold(b.BackingCoinType, asset)
}

// Coin returns the backing coin symbol, preferring the coin over its type.
func (b BackingAsset) Coin() string {
	if b.BackingCoin != "" {
		return strings.ToUpper(b.BackingCoin)
	}
	return strings.ToUpper(b.BackingCoinType)
}

// MinAmountDecimal converts the base-unit minimum to a decimal amount.
func (b BackingAsset) MinAmountDecimal() decimal.Decimal {
	return decimal.New(b.MinAmount, -b.Precision)
}

// MinAmountDisplay formats the minimum deposit, or "" when there is none.
func (b BackingAsset) MinAmountDisplay() string {
	if b.MinAmount <= 0 {
		return ""
	}
	return b.MinAmountDecimal().StringFixed(b.Precision)
}

// MinDepositWarning returns twice the gateway fee, the amount below which a
// deposit is swallowed by fees. Returns "0" when the fee is absent or malformed.
func (b BackingAsset) MinDepositWarning() string {
	fee, err := decimal.NewFromString(strings.TrimSpace(b.GateFee))
	if err != nil {
		return "0"
	}
	return fee.Mul(decimal.NewFromInt(minDepositFeeMultiplier)).String()
}
