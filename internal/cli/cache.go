package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/cache"
	"github.com/mrz1836/depositor/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	cacheAccount string
	cacheGateway string
	cacheAsset   string
)

// cacheCmd is the parent command for address cache operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached deposit addresses",
	Long:  `Inspect and clear deposit addresses remembered from gateway APIs.`,
}

// cacheShowCmd lists cached addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cached deposit addresses",
	Long: `List cached deposit addresses, optionally for one account.

Example:
  depositor cache show
  depositor cache show --account alice -o json`,
	Args: cobra.NoArgs,
	RunE: runCacheShow,
}

// cacheClearCmd removes cached addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached deposit addresses",
	Long: `Remove cached deposit addresses. With --account, --gateway and --asset
only that entry is removed; without flags the whole cache is cleared.

Example:
  depositor cache clear
  depositor cache clear --account alice --gateway OPEN --asset BTC`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

// cacheEntryRow is a cached address as shown by cache show.
type cacheEntryRow struct {
	cache.Entry

	Key string `json:"key"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheShowCmd.Flags().StringVarP(&cacheAccount, "account", "a", "", "only show entries of this account")
	cacheClearCmd.Flags().StringVarP(&cacheAccount, "account", "a", "", "account of the entry to remove")
	cacheClearCmd.Flags().StringVarP(&cacheGateway, "gateway", "g", "", "gateway of the entry to remove")
	cacheClearCmd.Flags().StringVar(&cacheAsset, "asset", "", "asset of the entry to remove")
	cacheClearCmd.MarkFlagsRequiredTogether("account", "gateway", "asset")
	_ = cacheClearCmd.RegisterFlagCompletionFunc("gateway", completeGatewayIDs)
	_ = cacheClearCmd.RegisterFlagCompletionFunc("asset", completeAssets)
}

func runCacheShow(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cfg, logger, formatter)
	store, err := cc.openCache(cmd.Context())
	if err != nil {
		return err
	}
	cc.Store = store
	defer func() { _ = cc.Close() }()

	rows := cacheRows(store, cacheAccount)
	return render(cmd, rows, func(w io.Writer) error {
		if len(rows) == 0 {
			outln(w, "No cached deposit addresses.")
			return nil
		}
		tbl := output.NewTable("ACCOUNT", "GATEWAY", "ASSET", "ADDRESS", "MEMO", "UPDATED")
		for _, r := range rows {
			tbl.AddRow(r.Account, r.Gateway.String(), strings.ToUpper(r.Asset), r.Address, r.Memo,
				r.UpdatedAt.Local().Format(time.DateTime))
		}
		return tbl.Render(w)
	})
}

func cacheRows(store cache.Store, account string) []cacheEntryRow {
	entries := store.All()
	if account != "" {
		entries = cache.ForAccount(store, account)
	}
	rows := make([]cacheEntryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, cacheEntryRow{Entry: e, Key: cache.Key(e.Gateway, e.Account, e.Asset)})
	}
	return rows
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cfg, logger, formatter)
	store, err := cc.openCache(cmd.Context())
	if err != nil {
		return err
	}
	cc.Store = store
	defer func() { _ = cc.Close() }()

	if cacheAccount != "" {
		store.Delete(gatewayIDFlag(cacheGateway), cacheAccount, cacheAsset)
		return output.FormatSuccess(cmd.OutOrStdout(),
			"Removed "+cache.Key(gatewayIDFlag(cacheGateway), cacheAccount, cacheAsset), formatter.Format())
	}

	n := store.Size()
	store.Clear()
	cc.Logger.Debug("cache: cleared %d entries", n)
	return output.FormatSuccess(cmd.OutOrStdout(), "Cleared cached deposit addresses", formatter.Format())
}
