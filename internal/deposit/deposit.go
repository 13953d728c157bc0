// Package deposit holds the value types shared by the resolver and its collaborators.
package deposit

import (
	"strings"
)

// symbolSeparator splits a gateway prefix from the base symbol ("OPEN.BTC").
const symbolSeparator = "."

// Target is where funds must be sent. Exactly one shape is active:
// {Address}, {Address, Memo} or {Error}.
type Target struct {
	Address string `json:"address,omitempty"`
	Memo    string `json:"memo,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Direct returns the target for a deposit straight to the account.
func Direct(account string) Target {
	return Target{Address: account}
}

// Failed returns an error-shaped target.
func Failed(reason string) Target {
	if reason == "" {
		reason = "address generation failed"
	}
	return Target{Error: reason}
}

// IsError reports whether the target carries an error.
func (t Target) IsError() bool {
	return t.Error != ""
}

// HasMemo reports whether the deposit must carry a memo.
func (t Target) HasMemo() bool {
	return t.Memo != ""
}

// Valid reports whether the target is a usable address or address+memo pair.
func (t Target) Valid() bool {
	return !t.IsError() && t.Address != ""
}

// AddressRequest asks a gateway to generate a deposit address.
type AddressRequest struct {
	InputCoinType  string `json:"inputCoinType"`
	OutputCoinType string `json:"outputCoinType"`
	OutputAddress  string `json:"outputAddress"`
}

// NewAddressRequest builds the request for depositing asset through gatewayID into account.
func NewAddressRequest(gatewayID, asset, account string) AddressRequest {
	return AddressRequest{
		InputCoinType:  NormalizeSymbol(asset),
		OutputCoinType: OutputCoinType(gatewayID, asset),
		OutputAddress:  account,
	}
}

// SplitSymbol splits "GATEWAY.BASE" into its prefix and base.
// A symbol without a separator returns an empty prefix.
func SplitSymbol(symbol string) (prefix, base string) {
	symbol = strings.TrimSpace(symbol)
	idx := strings.Index(symbol, symbolSeparator)
	if idx <= 0 || idx == len(symbol)-1 {
		return "", symbol
	}
	return symbol[:idx], symbol[idx+1:]
}

// NormalizeSymbol lower-cases a symbol for cache keys and gateway coin types.
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// OutputCoinType returns the gateway-issued coin type, e.g. "open.btc".
func OutputCoinType(gatewayID, asset string) string {
	return NormalizeSymbol(gatewayID) + symbolSeparator + NormalizeSymbol(asset)
}

// QualifiedSymbol returns the display symbol of the wrapped asset, e.g. "OPEN.BTC".
func QualifiedSymbol(gatewayID, asset string) string {
	return strings.ToUpper(gatewayID) + symbolSeparator + strings.ToUpper(asset)
}
