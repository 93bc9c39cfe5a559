// Package cli implements the plano command-line interface using Cobra.
// Each subcommand opens the daemon's services directly; only serve binds a port.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plano-ai/plano/internal/api"
)

var rootCmd = &cobra.Command{
	Use:   "plano",
	Short: "plano — follow your diet plan, one meal at a time",
	Long: `plano turns a nutritionist's diet plan into a weekly schedule,
scores every meal you log and keeps your streaks and badges.

Data lives in ~/.plano (override with PLANO_HOME).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	api.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, paint(styles.Bad, "Error:"), err)
		os.Exit(1)
	}
}
