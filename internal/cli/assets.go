package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/output"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	assetsGateway string
	assetsSave    string
)

// assetsCmd lists the backing-asset catalog.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List gateway-backed assets",
	Long: `List every asset a gateway can deposit, with the gateway-issued symbol,
minimum deposit and gateway wallet.

Example:
  depositor assets
  depositor assets --gateway OPEN
  depositor assets --save ~/.depositor/catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runAssets,
}

// assetRow is one catalog record in the listing.
type assetRow struct {
	Asset     string `json:"asset"`
	Gateway   string `json:"gateway"`
	Issued    string `json:"issued"`
	MinAmount string `json:"min_amount,omitempty"`
	GateFee   string `json:"gate_fee,omitempty"`
	Wallet    string `json:"gateway_wallet,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().StringVarP(&assetsGateway, "gateway", "g", "", "only list assets of this gateway")
	assetsCmd.Flags().StringVar(&assetsSave, "save", "", "write the catalog to this YAML file")
	_ = assetsCmd.RegisterFlagCompletionFunc("gateway", completeGatewayIDs)
}

func runAssets(cmd *cobra.Command, _ []string) error {
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	cc := NewCommandContext(cfg, logger, formatter)
	cc.Registry = reg
	if err := cc.openCatalog(cmd.Context(), cc.clients()); err != nil {
		return err
	}

	if assetsGateway != "" && !reg.Has(gatewayIDFlag(assetsGateway)) {
		err := deperr.WithDetails(deperr.ErrUnknownGateway, map[string]string{"gateway": assetsGateway})
		if id, ok := cc.Catalog.SuggestGateway(assetsGateway); ok {
			return deperr.WithSuggestion(err, "did you mean "+id.String()+"?")
		}
		return err
	}

	if assetsSave != "" {
		path, err := cfg.ExpandPath(assetsSave)
		if err != nil {
			return err
		}
		if err := cc.Catalog.SaveFile(path); err != nil {
			return err
		}
		cc.Logger.Debug("catalog saved to %s", path)
	}

	rows := listAssets(cc.Catalog, assetsGateway)
	return render(cmd, rows, func(w io.Writer) error {
		if len(rows) == 0 {
			outln(w, "No gateway-backed assets.")
			return nil
		}
		tbl := output.NewTable("ASSET", "GATEWAY", "ISSUED", "MIN AMOUNT", "FEE", "WALLET")
		for _, r := range rows {
			tbl.AddRow(r.Asset, r.Gateway, r.Issued, r.MinAmount, r.GateFee, r.Wallet)
		}
		return tbl.Render(w)
	})
}

func listAssets(cat *catalog.Catalog, gatewayFilter string) []assetRow {
	rows := []assetRow{}
	for _, g := range cat.Registry().All() {
		if gatewayFilter != "" && g.ID != gatewayIDFlag(gatewayFilter) {
			continue
		}
		for _, b := range cat.Entries(g.ID) {
			rows = append(rows, assetRow{
				Asset:     b.Coin(),
				Gateway:   g.ID.String(),
				Issued:    deposit.QualifiedSymbol(g.ID.String(), b.Coin()),
				MinAmount: b.MinAmountDisplay(),
				GateFee:   strings.TrimSpace(b.GateFee),
				Wallet:    b.GatewayWallet,
			})
		}
	}
	return rows
}
