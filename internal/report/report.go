package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"epieval/internal/evaluate"
	"epieval/internal/sequence"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

var Formats = []Format{FormatTable, FormatCSV, FormatMarkdown, FormatJSON}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

func scoreKeys(result evaluate.Result) []evaluate.Key {
	keys := make([]evaluate.Key, 0, len(result.Scores))
	for k := range result.Scores {
		keys = append(keys, k)
	}
	evaluate.SortKeys(keys)
	return keys
}

func failureKeys(result evaluate.Result) []evaluate.Key {
	keys := make([]evaluate.Key, 0, len(result.Failures))
	for k := range result.Failures {
		keys = append(keys, k)
	}
	evaluate.SortKeys(keys)
	return keys
}

// scoreTable builds the score grid, headers keep their case since labels are user given.
func scoreTable(set sequence.Set, result evaluate.Result, style table.Style) table.Writer {
	keys := scoreKeys(result)

	t := table.NewWriter()
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	header := table.Row{"Sequence"}
	for _, k := range keys {
		header = append(header, k.String())
	}
	t.AppendHeader(header)

	for i, r := range set.Records() {
		row := table.Row{r.ID}
		for _, k := range keys {
			series := result.Scores[k]
			if i < len(series) {
				row = append(row, strconv.FormatFloat(series[i], 'f', 4, 64))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t
}

func writeFailures(w io.Writer, result evaluate.Result) error {
	for _, k := range failureKeys(result) {
		_, err := fmt.Fprintf(w, "failed %s: %s\n", k, result.Failures[k])
		if err != nil {
			return err
		}
	}
	return nil
}

type jsonReport struct {
	Sequences  []string        `json:"sequences"`
	Evaluators []jsonEvaluator `json:"evaluators"`
	Failures   []jsonFailure   `json:"failures,omitempty"`
}

type jsonEvaluator struct {
	Label  string    `json:"label"`
	Tool   string    `json:"tool"`
	Scores []float64 `json:"scores"`
}

type jsonFailure struct {
	Label string `json:"label"`
	Tool  string `json:"tool"`
	Error string `json:"error"`
}

// Write renders result for set in the given format. Rows are sequences in set order,
// columns are evaluators ordered by label then tool.
func Write(w io.Writer, format Format, set sequence.Set, result evaluate.Result) error {
	switch format {
	case FormatTable, "":
		t := scoreTable(set, result, table.StyleRounded)
		t.SetOutputMirror(w)
		t.Render()
		return writeFailures(w, result)
	case FormatMarkdown:
		t := scoreTable(set, result, table.StyleDefault)
		t.SetOutputMirror(w)
		t.RenderMarkdown()
		_, err := io.WriteString(w, "\n")
		if err != nil {
			return err
		}
		return writeFailures(w, result)
	case FormatCSV:
		t := scoreTable(set, result, table.StyleDefault)
		t.SetOutputMirror(w)
		t.RenderCSV()
		return nil
	case FormatJSON:
		out := jsonReport{Sequences: set.IDs(), Evaluators: []jsonEvaluator{}}
		for _, k := range scoreKeys(result) {
			out.Evaluators = append(out.Evaluators, jsonEvaluator{
				Label:  k.Label,
				Tool:   k.Tool,
				Scores: result.Scores[k],
			})
		}
		for _, k := range failureKeys(result) {
			out.Failures = append(out.Failures, jsonFailure{
				Label: k.Label,
				Tool:  k.Tool,
				Error: result.Failures[k].Error(),
			})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Summary is a plain text overview of a run, used as the notification body.
func Summary(set sequence.Set, result evaluate.Result) string {
	var sb strings.Builder
	fmt.Fprintf(
		&sb, "Evaluated %d sequences with %d evaluators: %d succeeded, %d failed.\n\n",
		set.Len(), len(result.Scores)+len(result.Failures), len(result.Scores), len(result.Failures),
	)
	t := scoreTable(set, result, table.StyleLight)
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	writeFailures(&sb, result)
	return sb.String()
}
