package gatewayapi

import (
	"encoding/json"
	"strings"
)

// Coin is one entry of a gateway's coin list.
type Coin struct {
	CoinType            string  `json:"coinType"`
	WalletSymbol        string  `json:"walletSymbol"`
	WalletType          string  `json:"walletType"`
	Name                string  `json:"name"`
	BackingCoinType     string  `json:"backingCoinType"`
	GateFee             string  `json:"gateFee"`
	Precision           float64 `json:"precision"`
	SupportsOutputMemos bool    `json:"supportsOutputMemos"`
	IntermediateAccount string  `json:"intermediateAccount"`
}

// tradeResponse is the gateway's answer to an initiate-trade request.
type tradeResponse struct {
	InputAddress   string          `json:"inputAddress"`
	InputMemo      string          `json:"inputMemo"`
	InputCoinType  string          `json:"inputCoinType"`
	OutputAddress  string          `json:"outputAddress"`
	OutputCoinType string          `json:"outputCoinType"`
	Error          json.RawMessage `json:"error"`
}

// errorMessage extracts a message from the response's error field, which
// gateways send either as a string or as an object with a message.
func (r tradeResponse) errorMessage() string {
	raw := strings.TrimSpace(string(r.Error))
	if raw == "" || raw == "null" || raw == "false" {
		return ""
	}

	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return raw
}
