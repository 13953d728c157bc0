package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mrz1836/depositor/internal/config"
	"github.com/mrz1836/depositor/internal/deposit"
)

// resetFlags restores every flag to its default so commands do not leak
// state into each other.
func resetFlags() {
	walkCommands(rootCmd, func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	})
}

// executeCommand runs the root command with args against home and returns
// everything written to the command output.
func executeCommand(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv(config.EnvLogLevel, "off")
	t.Setenv(config.EnvCacheBackend, "")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// asyncRequester answers every request from a goroutine, or never when
// hold is set.
type asyncRequester struct {
	mu       sync.Mutex
	requests []deposit.AddressRequest
	answer   deposit.Target
	hold     bool
}

func (a *asyncRequester) RequestDepositAddress(_ context.Context, req deposit.AddressRequest, onComplete func(deposit.Target)) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	hold := a.hold
	a.mu.Unlock()

	if !hold {
		go onComplete(a.answer)
	}
}

func (a *asyncRequester) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}
