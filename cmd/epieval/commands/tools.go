package commands

import (
	"io"
	"os"
	"strconv"

	"epieval/internal/tools"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func writeTools(w io.Writer, registry tools.Registry) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tool", "Url", "Multi", "Input", "Chunk"})
	for _, name := range registry.Names() {
		adapter, err := registry.Lookup(string(name))
		if err != nil {
			return err
		}
		desc := adapter.Descriptor()
		chunk := "-"
		if desc.ChunkSize > 0 {
			chunk = strconv.Itoa(desc.ChunkSize)
		}
		t.AppendRow(table.Row{desc.Name, desc.URL, desc.Multi, desc.Encoding, chunk})
	}
	t.Render()
	return nil
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Lists the supported tools.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTools(os.Stdout, tools.DefaultRegistry())
	},
}
