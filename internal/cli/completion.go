package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/config"
	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for depositor.

Besides commands and flags, the scripts complete asset symbols for
'deposit' and 'gateways' and gateway IDs for --gateway, read from the
configured gateways and catalog.`,
	Example: `  source <(depositor completion bash)
  depositor completion zsh > "${fpath[1]}/_depositor"
  depositor completion fish > ~/.config/fish/completions/depositor.fish
  depositor completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return cmd.Root().GenBashCompletionV2(w, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(w)
	case "fish":
		return cmd.Root().GenFishCompletion(w, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	}
	return deperr.WithDetails(deperr.ErrInvalidInput, map[string]string{"shell": args[0]})
}

// completionSources loads the gateway registry and catalog for completion.
// Completion runs without PersistentPreRunE, so the config is read here and
// any failure falls back to the built-in defaults.
func completionSources() (*gateway.Registry, *catalog.Catalog) {
	c := cfg
	if c == nil {
		home := resolveHome()
		loaded, err := config.Load(config.Path(home))
		if err != nil {
			loaded = config.Defaults()
			loaded.Home = home
		}
		c = loaded
	}

	reg, err := c.Registry()
	if err != nil {
		reg = gateway.DefaultRegistry()
	}
	cat := catalog.Defaults(reg)
	if c.Catalog.NativeAssets != nil {
		cat.SetNative(c.Catalog.NativeAssets...)
	}
	if path, err := c.ExpandPath(c.Catalog.File); err == nil && path != "" {
		_ = cat.LoadFile(path)
	}
	return reg, cat
}

// completeGatewayIDs completes --gateway with the enabled gateway IDs.
func completeGatewayIDs(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg, _ := completionSources()

	var ids []string
	for _, g := range reg.All() {
		if hasFoldPrefix(g.ID.String(), toComplete) {
			ids = append(ids, fmt.Sprintf("%s\t%s", g.ID, g.Name))
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeAssets completes gateway asset symbols, plain and qualified.
func completeAssets(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg, cat := completionSources()

	var symbols []string
	for _, asset := range cat.Assets() {
		if hasFoldPrefix(asset, toComplete) {
			symbols = append(symbols, asset)
		}
	}
	for _, g := range reg.All() {
		for _, b := range cat.Entries(g.ID) {
			if hasFoldPrefix(b.Symbol, toComplete) {
				symbols = append(symbols, fmt.Sprintf("%s\tthrough %s", b.Symbol, g.Name))
			}
		}
	}
	return symbols, cobra.ShellCompDirectiveNoFileComp
}

// completeAssetArg completes the single asset argument of a command.
func completeAssetArg(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeAssets(cmd, args, toComplete)
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
