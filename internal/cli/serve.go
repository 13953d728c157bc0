package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depositor/internal/resolver"
	"github.com/mrz1836/depositor/internal/server"
	versionpkg "github.com/mrz1836/depositor/internal/version"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var serveListen string

// serveCmd runs the HTTP API.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deposit API over HTTP",
	Long: `Serve deposit resolution over HTTP until interrupted.

Endpoints:
  GET  /healthz             service status
  GET  /v1/gateways?asset=  gateway availability for an asset
  GET  /v1/assets           gateway-backed assets
  POST /v1/deposit          resolve {account, asset, gateway}
  GET  /v1/qr?data=         PNG QR code
  GET  /metrics             Prometheus metrics

Example:
  depositor serve
  depositor serve --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: server.listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc, err := openContext(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cc.Close() }()

	addr := serveListen
	if addr == "" {
		addr = cfg.Server.Listen
	}

	srv := server.New(server.Options{
		Registry: cc.Registry,
		Catalog:  cc.Catalog,
		Metrics:  cc.Metrics,
		Logger:   cc.Logger.Zap(),
		Version:  versionpkg.Get().String(),
		NewResolver: func(reqCtx context.Context, account string, opts ...resolver.Option) (*resolver.Resolver, error) {
			return cc.NewResolver(reqCtx, account, opts...)
		},
		RequestTimeout: cc.Config.APITimeout(),
	})

	out(cmd.OutOrStdout(), "Listening on %s\n", addr)
	return srv.Run(ctx, addr)
}
