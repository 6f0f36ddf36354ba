package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one column of a status table.
type column struct {
	Title string
	Right bool // numbers read better right-aligned
}

// renderTable draws rows under cols, padding short rows. A non-nil footer is
// drawn below a separator, for totals.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	tw.AppendHeader(toRow(cols, func(i int) string { return cols[i].Title }))
	for _, r := range rows {
		tw.AppendRow(toRow(cols, cell(r)))
	}
	if footer != nil {
		tw.AppendFooter(toRow(cols, cell(footer)))
	}

	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		align := text.AlignLeft
		if c.Right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(cols []column, value func(int) string) table.Row {
	row := make(table.Row, len(cols))
	for i := range row {
		row[i] = value(i)
	}
	return row
}

func cell(values []string) func(int) string {
	return func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
}
