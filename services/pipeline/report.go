package pipeline

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"sjsage522/communitysync/internal/notion"
)

var exportColumnOrder = []string{
	notion.PropName,
	notion.PropName + "_link",
	notion.PropDistrict,
	notion.PropPopulation,
	notion.PropAddress,
	notion.PropContactPerson,
	notion.PropTitle,
	notion.PropPhone,
	notion.PropEmail,
	notion.PropContactProgress,
	notion.PropWillingness,
}

// ExportColumns returns the columns present in rows, known properties first and
// any others after them in name order.
func ExportColumns(rows []map[string]string) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for name := range row {
			present[name] = true
		}
	}

	var columns []string
	for _, name := range exportColumnOrder {
		if present[name] {
			columns = append(columns, name)
			delete(present, name)
		}
	}

	var rest []string
	for name := range present {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

// RenderExport prints exported rows as a table
func RenderExport(w io.Writer, rows []map[string]string) {
	columns := ExportColumns(rows)

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	t.AppendHeader(header)

	for _, row := range rows {
		values := make(table.Row, len(columns))
		for i, name := range columns {
			values[i] = row[name]
		}
		t.AppendRow(values)
	}
	t.AppendFooter(table.Row{"Total", len(rows)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderScrape prints a per-district count of a scrape run
func RenderScrape(w io.Writer, result ScrapeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if result.OutputDir != "" {
		t.SetTitle("Scrape summary (" + result.OutputDir + ")")
	} else {
		t.SetTitle("Scrape summary")
	}
	t.AppendHeader(table.Row{"District", "Records"})
	for _, label := range result.Districts {
		t.AppendRow(table.Row{label, result.Counts[label]})
	}
	if result.Unclassified > 0 {
		t.AppendRow(table.Row{"(unclassified)", result.Unclassified})
	}
	t.AppendFooter(table.Row{"Total", result.Records})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
