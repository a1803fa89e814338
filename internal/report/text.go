package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderText writes a human-readable rendition of the report: one titled
// table per result table.
func RenderText(w io.Writer, rep *Report, noColor bool) error {
	if noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	heading := color.New(color.FgCyan, color.Bold)

	_, err := heading.Fprintf(w, "%s (batch %s)\n", rep.File, rep.BatchID)
	if err != nil {
		return fmt.Errorf("render text header: %w", err)
	}

	for _, tbl := range rep.Tables {
		_, err = heading.Fprintf(w, "\n%s\n", tbl.Name)
		if err != nil {
			return fmt.Errorf("render text heading: %w", err)
		}

		_, err = fmt.Fprintln(w, renderTable(tbl))
		if err != nil {
			return fmt.Errorf("render text table: %w", err)
		}
	}

	return nil
}

func renderTable(tbl Table) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false

	header := make(table.Row, len(tbl.Columns))
	for i, col := range tbl.Columns {
		header[i] = col
	}

	tw.AppendHeader(header)

	for _, row := range tbl.Rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = cell
		}

		tw.AppendRow(cells)
	}

	tw.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(tbl.Rows))})

	return tw.Render()
}
