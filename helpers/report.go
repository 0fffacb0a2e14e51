package helpers

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderFailures prints failed identifiers as a table. Nothing is printed when there are none.
func RenderFailures(w io.Writer, title string, failures []Failure) {
	if len(failures) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Identifier", "Error"})
	for i, f := range failures {
		t.AppendRow(table.Row{i + 1, f.Identifier, f.Err.Error()})
	}
	t.AppendFooter(table.Row{"", "Total", len(failures)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
