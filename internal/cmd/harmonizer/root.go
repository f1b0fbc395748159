// Package harmonizer contains the CLI commands for the harmonizer
// binary.
package harmonizer

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	platformcmd "github.com/eysenfalk/factorio-harmonizer/internal/platform/cmd"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"

	verbose bool
	logger  = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	rootCmd = &cobra.Command{
		Use:   "harmonizer",
		Short: "Analyze Factorio mod sets for conflicts",
		Long: TitleStyle.Render("harmonizer") + SubtitleStyle.Render(" - Factorio mod conflict analyzer") + `

harmonizer replays the data stage of a set of Factorio mods,
records every prototype definition and modification in a ledger,
and reports where mods fight over the same prototypes. For
contested recipes and broken research chains it generates an
additive compatibility patch mod.

` + SubtitleStyle.Render("Examples:") + `
  harmonizer analyze --mods ./mods     Analyze a mods directory
  harmonizer report                    Render the latest archived run
  harmonizer patches --out ./patches   Write patch packages from the latest run
  harmonizer runs                      List archived analysis runs`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(patchesCmd)
	rootCmd.AddCommand(runsCmd)
}

// Execute runs the CLI with telemetry configured from the
// environment. It returns the process exit code.
func Execute(ctx context.Context) int {
	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceHarmonizer, func(ctx context.Context) error {
		return fang.Execute(ctx, rootCmd, fang.WithVersion(Version))
	})
	if err != nil {
		return 1
	}
	return 0
}
