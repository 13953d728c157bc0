package resolver

import (
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// AddressErrorText is shown when no deposit target could be produced.
const AddressErrorText = "could not generate deposit address"

// GatewayOption is one entry of the gateway chooser.
type GatewayOption struct {
	ID         gateway.ID `json:"id"`
	Name       string     `json:"name"`
	SupportURL string     `json:"support_url,omitempty"`
	Enabled    bool       `json:"enabled"`
	Selected   bool       `json:"selected"`
}

// View is the presentation model derived from a State. Renderers read it
// instead of interpreting the state machine themselves.
type View struct {
	Phase   string `json:"phase"`
	Account string `json:"account"`
	Asset   string `json:"asset,omitempty"`
	Gateway string `json:"gateway,omitempty"`

	UsingGateway      bool            `json:"using_gateway"`
	ShowGateways      bool            `json:"show_gateways"`
	Gateways          []GatewayOption `json:"gateways,omitempty"`
	AvailableGateways int             `json:"available_gateways"`

	Fetching bool   `json:"fetching"`
	Address  string `json:"address,omitempty"`
	Memo     string `json:"memo,omitempty"`
	ShowQR   bool   `json:"show_qr"`

	// ShowDetails is set when a usable gateway target is present.
	ShowDetails       bool   `json:"show_details"`
	InputAsset        string `json:"input_asset,omitempty"`
	OutputAsset       string `json:"output_asset,omitempty"`
	MinAmount         string `json:"min_amount,omitempty"`
	MinDepositWarning string `json:"min_deposit_warning,omitempty"`

	AddressError bool   `json:"address_error"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewView derives the presentation model of s.
func NewView(s State, registry *gateway.Registry) View {
	if registry == nil {
		registry = gateway.DefaultRegistry()
	}

	v := View{
		Phase:             s.Phase.String(),
		Account:           s.Account,
		Asset:             s.Asset,
		Gateway:           s.Gateway.String(),
		UsingGateway:      !s.Direct(),
		AvailableGateways: s.AvailableGatewayCount(),
		Fetching:          s.Fetching,
	}
	v.ShowGateways = s.Asset != "" && v.AvailableGateways > 0

	for _, g := range registry.All() {
		v.Gateways = append(v.Gateways, GatewayOption{
			ID:         g.ID,
			Name:       g.Name,
			SupportURL: g.SupportURL,
			Enabled:    s.Availability[g.ID],
			Selected:   g.ID == s.Gateway,
		})
	}

	if s.Err != nil {
		v.AddressError = true
		v.ErrorCode = deperr.Code(s.Err)
		v.ErrorMessage = s.Err.Error()
	}

	if s.Fetching || s.Target == nil {
		return v
	}

	t := *s.Target
	if t.IsError() {
		v.AddressError = true
		if v.ErrorMessage == "" {
			v.ErrorMessage = AddressErrorText
		}
		return v
	}

	v.Address = t.Address
	v.Memo = t.Memo

	enabled := s.Direct() || s.Availability[s.Gateway]
	v.ShowQR = enabled && t.Valid() && !t.HasMemo()

	if s.Direct() || !enabled {
		return v
	}

	v.ShowDetails = true
	v.InputAsset = s.Asset
	v.OutputAsset = deposit.QualifiedSymbol(s.Gateway.String(), s.Asset)
	if s.Backing != nil {
		v.MinAmount = s.Backing.MinAmountDisplay()
		if registry.StrategyFor(s.Gateway) == gateway.StrategyCacheThenRequest {
			v.MinDepositWarning = s.Backing.MinDepositWarning()
		}
	}
	return v
}
