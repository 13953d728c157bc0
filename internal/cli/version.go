package cli

import (
	"io"

	"github.com/spf13/cobra"

	versionpkg "github.com/mrz1836/depositor/internal/version"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the depositor version. With --check, also ask GitHub whether a
newer release is available.

Example:
  depositor version
  depositor version --check -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

// versionResult is the JSON shape of the version command.
type versionResult struct {
	versionpkg.BuildInfo

	Latest    string `json:"latest,omitempty"`
	UpdateURL string `json:"update_url,omitempty"`
	IsNewer   bool   `json:"update_available"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	result := versionResult{BuildInfo: versionpkg.Get()}

	if versionCheck {
		rel, err := versionpkg.LatestRelease(cmd.Context(), nil, versionpkg.DefaultReleaseURL)
		if err != nil {
			return deperr.Wrap(deperr.ErrNetworkError, "checking latest release: %s", err.Error())
		}
		result.Latest = rel.TagName
		result.UpdateURL = rel.HTMLURL
		result.IsNewer = !result.IsDev() && versionpkg.IsNewer(result.Version, rel.TagName)
	}

	return render(cmd, result, func(w io.Writer) error {
		out(w, "depositor %s\n", result.String())
		out(w, "%s %s\n", result.GoVersion, result.Platform)
		if result.Latest == "" {
			return nil
		}
		switch {
		case result.IsNewer:
			out(w, "\nA newer release is available: %s\n%s\n", result.Latest, result.UpdateURL)
		case result.IsDev():
			out(w, "\nLatest release: %s (this is a development build)\n", result.Latest)
		default:
			outln(w, "\nYou are running the latest release.")
		}
		return nil
	})
}
