package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mrz1836/depositor/internal/resolver"
)

// DepositOptions controls text rendering of a deposit view.
type DepositOptions struct {
	// QR renders the address as a terminal QR code when the view allows it.
	QR       bool
	QRConfig QRConfig
}

// RenderDeposit writes the human readable form of v.
func RenderDeposit(w io.Writer, v resolver.View, opts DepositOptions) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Account: %s\n", v.Account)
	if v.Asset != "" {
		fmt.Fprintf(&sb, "Asset:   %s\n", v.Asset)
	}

	if v.ShowGateways {
		sb.WriteString("\nGateways:\n")
		for _, g := range v.Gateways {
			marker := " "
			if g.Selected {
				marker = "*"
			}
			status := "available"
			if !g.Enabled {
				status = "not supported"
			}
			fmt.Fprintf(&sb, "  %s %-6s %-16s %s\n", marker, g.ID, g.Name, status)
		}
	}

	switch {
	case v.Fetching:
		sb.WriteString("\nGenerating deposit address...\n")
	case v.AddressError:
		fmt.Fprintf(&sb, "\nError: %s\n", v.ErrorMessage)
	case v.Address != "":
		sb.WriteString("\n")
		if v.UsingGateway {
			fmt.Fprintf(&sb, "Send %s to:\n", v.InputAsset)
		} else {
			sb.WriteString("Send directly to:\n")
		}
		fmt.Fprintf(&sb, "  Address: %s\n", v.Address)
		if v.Memo != "" {
			fmt.Fprintf(&sb, "  Memo:    %s\n", v.Memo)
			sb.WriteString("  The memo is required, deposits without it can be lost.\n")
		}
	case v.Asset != "" && v.Gateway == "" && v.AvailableGateways > 0:
		sb.WriteString("\nSelect a gateway with --gateway.\n")
	}

	if v.ShowDetails {
		fmt.Fprintf(&sb, "\nYou send:    %s\n", v.InputAsset)
		fmt.Fprintf(&sb, "You receive: %s\n", v.OutputAsset)
		if v.MinAmount != "" {
			fmt.Fprintf(&sb, "Minimum:     %s %s\n", v.MinAmount, v.InputAsset)
		}
		if v.MinDepositWarning != "" && v.MinDepositWarning != "0" {
			fmt.Fprintf(&sb, "\nWarning: deposits below %s %s are consumed by gateway fees.\n",
				v.MinDepositWarning, v.InputAsset)
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if opts.QR && v.ShowQR {
		_, _ = fmt.Fprintln(w)
		return RenderQR(w, v.Address, opts.QRConfig)
	}
	return nil
}
