package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"epieval/internal/tools"
	"epieval/lib/restyutil"
	"epieval/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pingDumpHttp *string

func init() {
	pingDumpHttp = pingCmd.Flags().String("dump-http", "", "Directory http exchanges are written to.")
	rootCmd.AddCommand(pingCmd)
}

// pingTools checks every named tool, all tools when names is empty. It returns the number
// of unreachable tools.
func pingTools(ctx context.Context, w io.Writer, client *resty.Client, registry tools.Registry, names []string) (int, error) {
	if len(names) == 0 {
		for _, n := range registry.Names() {
			names = append(names, string(n))
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tool", "Status", "Time"})

	failed := 0
	for _, name := range names {
		adapter, err := registry.Lookup(name)
		if err != nil {
			return 0, err
		}
		desc := adapter.Descriptor()

		start := time.Now()
		err = tools.Ping(ctx, client, desc)
		elapsed := time.Since(start).Round(time.Millisecond)
		status := "ok"
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			status = err.Error()
			failed++
		}
		t.AppendRow(table.Row{desc.Name, status, elapsed})
	}
	t.Render()
	return failed, nil
}

var pingCmd = &cobra.Command{
	Use:   "ping [tool...]",
	Short: "Checks that the tool pages are reachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var output restyutil.InstrumentOutput
		if *pingDumpHttp != "" {
			fsOutput, err := restyutil.NewFilesystemOutput(*pingDumpHttp)
			if err != nil {
				return err
			}
			output = fsOutput
		}
		client := tools.NewClient(telemetry.SlogAPI{}, output)

		failed, err := pingTools(cmd.Context(), os.Stdout, client, tools.DefaultRegistry(), args)
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d tools unreachable", failed)
		}
		return nil
	},
}
