package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"epieval/internal/report"
	"epieval/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	runsDb     *string
	runsFormat *string
)

func init() {
	runsDb = runsCmd.PersistentFlags().String("db", "results.db", "Sqlite file runs were recorded in.")
	runsFormat = runsShowCmd.Flags().StringP("format", "f", "table", "Output format: table, csv, markdown or json.")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func writeRuns(w io.Writer, runs []store.RunInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Id", "Started", "Duration", "Sequences"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt),
			r.SequenceCount,
		})
	}
	t.Render()
}

var errNoRuns = errors.New("no runs recorded")

// openRuns opens an existing results database, it never creates one.
func openRuns(ctx context.Context, path string) (store.Store, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return store.Store{}, fmt.Errorf("%w: %s does not exist", errNoRuns, path)
	}
	if err != nil {
		return store.Store{}, err
	}
	return store.Open(ctx, store.Config{File: path})
}

var runsCmd = &cobra.Command{
	Use:   "runs [--db <path/to/results.db>]",
	Short: "Lists recorded runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRuns(cmd.Context(), *runsDb)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Runs(cmd.Context())
		if err != nil {
			return err
		}
		writeRuns(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Prints the report of a recorded run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(*runsFormat)
		if err != nil {
			return err
		}
		db, err := openRuns(cmd.Context(), *runsDb)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return report.Write(os.Stdout, format, run.Set, run.Result)
	},
}
