package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/output"
	"github.com/mrz1836/depositor/internal/resolver"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// defaultDepositTimeout bounds how long deposit waits for a gateway address.
const defaultDepositTimeout = 60 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	depositAccount string
	depositGateway string
	depositQR      bool
	depositTimeout time.Duration
)

// depositCmd resolves where to send an asset.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var depositCmd = &cobra.Command{
	Use:   "deposit <asset>",
	Short: "Show where to deposit an asset",
	Long: `Resolve the deposit target for an asset into a BitShares account.

Native assets resolve to the account itself. Gateway-backed assets need a
gateway: pass --gateway, use a prefixed symbol such as OPEN.BTC, or let the
only available gateway be chosen automatically.

Example:
  depositor deposit BTC --account alice
  depositor deposit OPEN.BTC --account alice --qr
  depositor deposit EOS --account alice --gateway RUDEX -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runDeposit,
}

// depositResult is the JSON shape of a deposit resolution.
type depositResult struct {
	Deposit    resolver.View `json:"deposit"`
	Suggestion string        `json:"suggestion,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(depositCmd)

	depositCmd.Flags().StringVarP(&depositAccount, "account", "a", "", "BitShares account to credit (default: config account)")
	depositCmd.Flags().StringVarP(&depositGateway, "gateway", "g", "", "gateway to deposit through")
	depositCmd.Flags().BoolVar(&depositQR, "qr", false, "render the deposit address as a QR code")
	depositCmd.Flags().DurationVar(&depositTimeout, "timeout", defaultDepositTimeout, "how long to wait for a gateway address")

	depositCmd.ValidArgsFunction = completeAssetArg
	_ = depositCmd.RegisterFlagCompletionFunc("gateway", completeGatewayIDs)
}

func runDeposit(cmd *cobra.Command, args []string) error {
	cc, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = cc.Close() }()

	ctx, cancel := contextWithTimeout(cmd, depositTimeout)
	defer cancel()

	state, err := resolveDeposit(ctx, cc, depositAccount, args[0], depositGateway, os.Stderr)
	if err != nil {
		return err
	}

	if state.Phase == resolver.PhaseError && state.Target == nil {
		return suggestFix(cc, state)
	}

	result := depositResult{Deposit: resolver.NewView(state, cc.Registry)}
	if state.Direct() {
		if s, ok := cc.Catalog.Suggest(state.Asset); ok {
			result.Suggestion = s
		}
	}

	return render(cmd, result, func(w io.Writer) error {
		if err := output.RenderDeposit(w, result.Deposit, output.DepositOptions{
			QR:       depositQR || cc.Config.Output.QR,
			QRConfig: output.DefaultQRConfig(),
		}); err != nil {
			return err
		}
		if result.Suggestion != "" {
			out(w, "\n%s is not a gateway asset. Did you mean %s?\n", state.Asset, result.Suggestion)
		}
		return nil
	})
}

// resolveDeposit drives a resolver through the asset and gateway selections
// and waits for any address request to finish.
func resolveDeposit(ctx context.Context, cc *CommandContext, account, asset, gatewayID string, progress io.Writer) (resolver.State, error) {
	var opts []resolver.Option
	if gatewayID != "" {
		opts = append(opts, resolver.WithAutoSelect(false))
	}
	r, err := cc.NewResolver(ctx, account, opts...)
	if err != nil {
		return resolver.State{}, err
	}

	r.SelectAsset(asset)
	if gatewayID != "" {
		r.SelectGateway(gateway.ParseID(gatewayID))
	}

	state := r.State()
	if state.Phase != resolver.PhaseFetching {
		return state, nil
	}

	cc.Logger.Debug("deposit: requesting %s address from %s for %s", state.Asset, state.Gateway, state.Account)
	stop := output.Spinner(progress, fmt.Sprintf("Requesting %s deposit address from %s...", state.Asset, state.Gateway))
	state, err = r.Await(ctx)
	stop()
	if err != nil {
		return state, deperr.WithSuggestion(
			deperr.Wrap(deperr.ErrNetworkError, "waiting for %s", state.Gateway),
			"retry with a longer --timeout",
		)
	}
	return state, nil
}

// suggestFix converts a failed selection into an error with a hint.
func suggestFix(cc *CommandContext, state resolver.State) error {
	if deperr.Is(state.Err, deperr.ErrUnknownGateway) {
		if id, ok := cc.Catalog.SuggestGateway(state.Gateway.String()); ok && id != state.Gateway {
			return deperr.WithSuggestion(state.Err, fmt.Sprintf("did you mean %s?", id))
		}
		return deperr.WithSuggestion(state.Err, "run 'depositor gateways' to list gateways")
	}

	var enabled []string
	for _, id := range state.EnabledGateways() {
		enabled = append(enabled, id.String())
	}
	if len(enabled) > 0 {
		return deperr.WithSuggestion(state.Err, fmt.Sprintf("%s is available through: %v", state.Asset, enabled))
	}
	return state.Err
}
