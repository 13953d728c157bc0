package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/output"
)

// gatewaysCmd lists gateways, optionally with availability for an asset.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var gatewaysCmd = &cobra.Command{
	Use:   "gateways [asset]",
	Short: "List gateways and which of them back an asset",
	Long: `List the configured gateways. With an asset argument, show which
gateways can deposit it and the backing details each one uses.

Example:
  depositor gateways
  depositor gateways EOS`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGateways,
}

// gatewayRow is one gateway in the listing.
type gatewayRow struct {
	ID         gateway.ID            `json:"id"`
	Name       string                `json:"name"`
	Strategy   string                `json:"strategy"`
	SupportURL string                `json:"support_url,omitempty"`
	Available  *bool                 `json:"available,omitempty"`
	Backing    *catalog.BackingAsset `json:"backing,omitempty"`
	MinAmount  string                `json:"min_amount,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(gatewaysCmd)
	gatewaysCmd.ValidArgsFunction = completeAssetArg
}

func runGateways(cmd *cobra.Command, args []string) error {
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	cc := NewCommandContext(cfg, logger, formatter)
	cc.Registry = reg
	if err := cc.openCatalog(cmd.Context(), cc.clients()); err != nil {
		return err
	}

	asset := ""
	if len(args) == 1 {
		asset = strings.ToUpper(strings.TrimSpace(args[0]))
	}
	rows := listGateways(cc.Catalog, reg, asset)

	return render(cmd, rows, func(w io.Writer) error {
		return renderGateways(w, rows, asset)
	})
}

func listGateways(cat *catalog.Catalog, reg *gateway.Registry, asset string) []gatewayRow {
	rows := make([]gatewayRow, 0, len(reg.All()))
	for _, g := range reg.All() {
		row := gatewayRow{
			ID:         g.ID,
			Name:       g.Name,
			Strategy:   g.Strategy.String(),
			SupportURL: g.SupportURL,
		}
		if asset != "" {
			backing, ok := cat.BackingAsset(g.ID, asset)
			row.Available = &ok
			if ok {
				row.Backing = &backing
				row.MinAmount = backing.MinAmountDisplay()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderGateways(w io.Writer, rows []gatewayRow, asset string) error {
	if asset == "" {
		tbl := output.NewTable("ID", "NAME", "STRATEGY", "SUPPORT")
		for _, r := range rows {
			tbl.AddRow(r.ID.String(), r.Name, r.Strategy, r.SupportURL)
		}
		return tbl.Render(w)
	}

	tbl := output.NewTable("ID", "NAME", asset, "MIN AMOUNT", "WALLET")
	available := 0
	for _, r := range rows {
		status, wallet := "no", ""
		if r.Available != nil && *r.Available {
			status = "yes"
			available++
			wallet = r.Backing.GatewayWallet
		}
		tbl.AddRow(r.ID.String(), r.Name, status, r.MinAmount, wallet)
	}
	if err := tbl.Render(w); err != nil {
		return err
	}
	if available == 0 {
		out(w, "\nNo gateway backs %s; it is deposited directly to the account.\n", asset)
	}
	return nil
}

// gatewayIDFlag normalizes a gateway given on the command line.
func gatewayIDFlag(s string) gateway.ID {
	return gateway.ParseID(s)
}
