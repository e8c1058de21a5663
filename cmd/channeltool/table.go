package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Count columns are right aligned, including
// their footer total.
type column struct {
	title string
	count bool
}

func label(title string) column { return column{title: title} }
func count(title string) column { return column{title: title, count: true} }

// reportTable collects the rows a command prints after a stage.
type reportTable struct {
	columns []column
	rows    []table.Row
	footer  table.Row
}

func newReportTable(columns ...column) *reportTable {
	return &reportTable{columns: columns}
}

// add appends a row; missing trailing cells render blank and extra cells are dropped.
func (t *reportTable) add(cells ...any) {
	t.rows = append(t.rows, t.fit(cells))
}

// total sets the footer row.
func (t *reportTable) total(cells ...any) {
	t.footer = t.fit(cells)
}

func (t *reportTable) fit(cells []any) table.Row {
	row := make(table.Row, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func (t *reportTable) String() string {
	if len(t.columns) == 0 || len(t.rows) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(t.columns))
	configs := make([]table.ColumnConfig, len(t.columns))
	for i, c := range t.columns {
		header[i] = c.title
		align := text.AlignLeft
		if c.count {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignFooter: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.AppendRows(t.rows)
	if t.footer != nil {
		tw.AppendFooter(t.footer)
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// write prints the table followed by a newline; an empty table prints nothing.
func (t *reportTable) write(out io.Writer) {
	if s := t.String(); s != "" {
		fmt.Fprintln(out, s)
	}
}
