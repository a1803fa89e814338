package sheet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gazemetrics/aoirun/internal/config"
	"github.com/gazemetrics/aoirun/internal/report"
)

// aggregatedSuffix is appended to the input basename for output workbooks.
const aggregatedSuffix = "_aggregated"

// WriteWorkbook persists the report's tables under dir, one workbook (or
// one CSV file per table) named after the input file. Returns the paths
// written.
func WriteWorkbook(dir string, rep *report.Report, kind string) ([]string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	base := strings.TrimSuffix(filepath.Base(rep.File), filepath.Ext(rep.File))

	switch kind {
	case config.WorkbookXLSX:
		return writeXLSX(dir, base, rep)
	case config.WorkbookCSV:
		return writeCSV(dir, base, rep)
	case config.WorkbookNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidWorkbook, kind)
	}
}

func writeXLSX(dir, base string, rep *report.Report) ([]string, error) {
	f := excelize.NewFile()
	defer f.Close()

	for _, tbl := range rep.Tables {
		_, err := f.NewSheet(tbl.Name)
		if err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", tbl.Name, err)
		}

		err = writeSheet(f, tbl)
		if err != nil {
			return nil, err
		}
	}

	// Drop the default sheet excelize creates.
	if len(rep.Tables) > 0 {
		_ = f.DeleteSheet("Sheet1")
	}

	path := filepath.Join(dir, base+aggregatedSuffix+".xlsx")

	err := f.SaveAs(path)
	if err != nil {
		return nil, fmt.Errorf("save workbook %s: %w", path, err)
	}

	return []string{path}, nil
}

func writeSheet(f *excelize.File, tbl report.Table) error {
	header := make([]any, len(tbl.Columns))
	for i, col := range tbl.Columns {
		header[i] = col
	}

	err := f.SetSheetRow(tbl.Name, "A1", &header)
	if err != nil {
		return fmt.Errorf("write header of %s: %w", tbl.Name, err)
	}

	for i, row := range tbl.Rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}

		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+2, err)
		}

		err = f.SetSheetRow(tbl.Name, anchor, &cells)
		if err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, tbl.Name, err)
		}
	}

	return nil
}

func writeCSV(dir, base string, rep *report.Report) ([]string, error) {
	paths := make([]string, 0, len(rep.Tables))

	for _, tbl := range rep.Tables {
		path := filepath.Join(dir, base+aggregatedSuffix+"_"+tbl.Name+".csv")

		err := writeCSVTable(path, tbl)
		if err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func writeCSVTable(path string, tbl report.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	err = writer.Write(tbl.Columns)
	if err != nil {
		return fmt.Errorf("write csv header %s: %w", path, err)
	}

	err = writer.WriteAll(tbl.Rows)
	if err != nil {
		return fmt.Errorf("write csv rows %s: %w", path, err)
	}

	writer.Flush()

	return writer.Error()
}
