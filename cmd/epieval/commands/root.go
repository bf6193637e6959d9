package commands

import (
	"context"
	"fmt"
	"os"

	"epieval/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "epieval",
	Short: "epieval scores protein sequences with public antigenicity and allergenicity predictors.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
	SilenceUsage: true,
}

func init() {
	configPath = rootCmd.PersistentFlags().String(
		"config", "",
		"Path to a json5 config file, defaults to the nearest epieval.json5 up from the cwd.",
	)
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logs.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
