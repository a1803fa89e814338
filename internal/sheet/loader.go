// Package sheet reads worksheet-shaped input files into records and writes
// result tables back out as workbooks. Supported inputs are .xlsx
// workbooks, .csv files, and .json record arrays; the core never sees a
// file format.
package sheet

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xuri/excelize/v2"

	"github.com/gazemetrics/aoirun/internal/config"
	"github.com/gazemetrics/aoirun/internal/record"
)

var (
	// ErrUnsupportedExtension indicates an input file type the loader does not handle.
	ErrUnsupportedExtension = errors.New("unsupported input extension")
	// ErrMissingColumn indicates a required column header is absent from the sheet.
	ErrMissingColumn = errors.New("missing required column")
	// ErrSchema indicates a JSON input failed schema validation.
	ErrSchema = errors.New("input schema violation")
)

// LoadOptions configure worksheet parsing.
type LoadOptions struct {
	// Sheet is the worksheet read from .xlsx workbooks.
	Sheet string
	// Columns maps record fields to their source headers.
	Columns config.ColumnsConfig
}

// Load reads one input file into records. The record Index is the zero-based
// data row position within the file.
func Load(path string, opts LoadOptions) ([]record.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path, opts)
	case ".csv":
		return loadCSV(path, opts)
	case ".json":
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(path))
	}
}

func loadXLSX(path string, opts LoadOptions) ([]record.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(opts.Sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s of %s: %w", opts.Sheet, path, err)
	}

	return parseRows(rows, opts.Columns)
}

func loadCSV(path string, opts LoadOptions) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // header decides the width; short rows pad empty

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}

	return parseRows(rows, opts.Columns)
}

// parseRows converts a header row plus data rows into records. Columns not
// claimed by the record fields are carried in Extra verbatim.
func parseRows(rows [][]string, columns config.ColumnsConfig) ([]record.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	index := make(map[string]int, len(header))

	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	for _, required := range []string{columns.AOI, columns.Start, columns.Duration} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	claimed := map[int]bool{
		index[columns.AOI]:      true,
		index[columns.Start]:    true,
		index[columns.Duration]: true,
	}

	contextCols := []string{
		columns.Recording, columns.Participant, columns.Position, columns.TOI,
		columns.Interval, columns.EventType, columns.Validity,
	}
	for _, name := range contextCols {
		if i, ok := index[name]; ok {
			claimed[i] = true
		}
	}

	records := make([]record.Record, 0, len(rows)-1)

	for rowNum, row := range rows[1:] {
		rec, err := parseRow(row, rowNum, header, index, claimed, columns)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

func parseRow(
	row []string,
	rowNum int,
	header []string,
	index map[string]int,
	claimed map[int]bool,
	columns config.ColumnsConfig,
) (record.Record, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	start, err := parseNumber(cell(columns.Start), rowNum, "Start")
	if err != nil {
		return record.Record{}, err
	}

	duration, err := parseNumber(cell(columns.Duration), rowNum, "Duration")
	if err != nil {
		return record.Record{}, err
	}

	rec := record.Record{
		Context: record.Context{
			Recording:   cell(columns.Recording),
			Participant: cell(columns.Participant),
			Position:    cell(columns.Position),
			TOI:         cell(columns.TOI),
			Interval:    cell(columns.Interval),
			EventType:   cell(columns.EventType),
			Validity:    cell(columns.Validity),
		},
		AOI:      cell(columns.AOI),
		Start:    start,
		Duration: duration,
		Index:    rowNum,
	}

	for i, name := range header {
		if claimed[i] || i >= len(row) || row[i] == "" {
			continue
		}

		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}

		rec.Extra[strings.TrimSpace(name)] = row[i]
	}

	err = rec.Validate()
	if err != nil {
		return record.Record{}, err
	}

	return rec, nil
}

func parseNumber(value string, rowNum int, field string) (float64, error) {
	if value == "" {
		return 0, &record.MalformedRecordError{Index: rowNum, Field: field, Reason: "missing"}
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &record.MalformedRecordError{Index: rowNum, Field: field, Reason: "not numeric"}
	}

	return parsed, nil
}

// recordSchema validates JSON input documents before decoding.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["aoi", "start", "duration"],
    "properties": {
      "recording":   {"type": "string"},
      "participant": {"type": "string"},
      "position":    {"type": "string"},
      "toi":         {"type": "string"},
      "interval":    {"type": "string"},
      "event_type":  {"type": "string"},
      "validity":    {"type": "string"},
      "aoi":         {"type": "string"},
      "start":       {"type": "number"},
      "duration":    {"type": "number", "minimum": 0},
      "extra":       {"type": "object", "additionalProperties": {"type": "string"}}
    }
  }
}`

type jsonRecord struct {
	Recording   string            `json:"recording"`
	Participant string            `json:"participant"`
	Position    string            `json:"position"`
	TOI         string            `json:"toi"`
	Interval    string            `json:"interval"`
	EventType   string            `json:"event_type"`
	Validity    string            `json:"validity"`
	AOI         string            `json:"aoi"`
	Start       float64           `json:"start"`
	Duration    float64           `json:"duration"`
	Extra       map[string]string `json:"extra"`
}

func loadJSON(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(recordSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate json %s: %w", path, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(details, "; "))
	}

	var decoded []jsonRecord

	err = json.Unmarshal(data, &decoded)
	if err != nil {
		return nil, fmt.Errorf("decode json %s: %w", path, err)
	}

	records := make([]record.Record, 0, len(decoded))

	for i, jr := range decoded {
		records = append(records, record.Record{
			Context: record.Context{
				Recording:   jr.Recording,
				Participant: jr.Participant,
				Position:    jr.Position,
				TOI:         jr.TOI,
				Interval:    jr.Interval,
				EventType:   jr.EventType,
				Validity:    jr.Validity,
			},
			AOI:      jr.AOI,
			Start:    jr.Start,
			Duration: jr.Duration,
			Extra:    jr.Extra,
			Index:    i,
		})
	}

	return records, nil
}
