// Package report materializes aggregation results into column-ordered
// tables and renders them in the supported output formats.
package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/gazemetrics/aoirun/internal/record"
	"github.com/gazemetrics/aoirun/internal/summary"
	"github.com/gazemetrics/aoirun/internal/timeline"
)

// Result table names, matching the sheets of the original workbooks.
const (
	TableTimeline = "Timeline_Combined"
	TableRuns     = "MergedRuns"
	TableSummary  = "AOI_Summary"
	TableByGroup  = "AOI_ByGroup"
	TableRawShort = "Raw_Duration_le20"
	TableRawLong  = "Raw_Duration_gt20"
)

// Table is one logical result table with a fixed column order.
type Table struct {
	Name    string     `json:"name"    yaml:"name"`
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows"    yaml:"rows"`
}

// Report bundles the tables produced for one input file.
type Report struct {
	File        string    `json:"file"         yaml:"file"`
	BatchID     string    `json:"batch_id"     yaml:"batch_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Tables      []Table   `json:"tables"       yaml:"tables"`
}

// Table returns the named table, or nil when absent.
func (r *Report) Table(name string) *Table {
	for i := range r.Tables {
		if r.Tables[i].Name == name {
			return &r.Tables[i]
		}
	}

	return nil
}

var contextColumns = []string{
	"Recording", "Participant", "Position", "TOI", "Interval", "Event_type", "Validity",
}

func contextValues(c record.Context) []string {
	return []string{c.Recording, c.Participant, c.Position, c.TOI, c.Interval, c.EventType, c.Validity}
}

// FromRuns builds the MergedRuns table, one row per sealed run.
func FromRuns(runs []record.Run) Table {
	columns := append(append([]string{}, contextColumns...),
		"AOI", "Start", "Stop", "Duration", "SegmentsMerged")

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		row := append(contextValues(run.Context),
			run.AOI,
			formatNumber(run.Start),
			formatNumber(run.Stop),
			formatNumber(run.Duration),
			strconv.Itoa(run.Count),
		)
		rows = append(rows, row)
	}

	return Table{Name: TableRuns, Columns: columns, Rows: rows}
}

// FromTimeline builds the Timeline_Combined table. Pass-through columns
// found on the underlying records are appended after the fixed columns; a
// run carries the pass-through values of its first member.
func FromTimeline(entries []timeline.Entry) Table {
	extraKeys := timelineExtraKeys(entries)

	columns := append(append([]string{}, contextColumns...),
		"AOI", "Start", "Stop", "Duration", "SegmentsMerged", "Source")
	columns = append(columns, extraKeys...)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := append(contextValues(e.Context()),
			e.AOI(),
			formatNumber(e.Start()),
			formatNumber(e.Stop()),
			formatNumber(e.Duration()),
			strconv.Itoa(e.Count()),
			string(e.Origin),
		)

		extra := entryExtra(e)
		for _, key := range extraKeys {
			row = append(row, extra[key])
		}

		rows = append(rows, row)
	}

	return Table{Name: TableTimeline, Columns: columns, Rows: rows}
}

// FromOverall builds the AOI_Summary table.
func FromOverall(totals []summary.AOITotal) Table {
	columns := []string{"AOI", "Rows", "Runs", "TotalDuration", "FirstStart", "LastStop"}

	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{
			t.AOI,
			strconv.Itoa(t.Rows),
			strconv.Itoa(t.Runs),
			formatNumber(t.TotalDuration),
			formatNumber(t.FirstStart),
			formatNumber(t.LastStop),
		})
	}

	return Table{Name: TableSummary, Columns: columns, Rows: rows}
}

// FromByGroup builds the AOI_ByGroup table.
func FromByGroup(totals []summary.GroupTotal) Table {
	columns := append(append([]string{}, contextColumns...),
		"AOI", "Rows", "Runs", "TotalDuration", "FirstStart", "LastStop")

	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		row := append(contextValues(t.Context),
			t.AOI,
			strconv.Itoa(t.Rows),
			strconv.Itoa(t.Runs),
			formatNumber(t.TotalDuration),
			formatNumber(t.FirstStart),
			formatNumber(t.LastStop),
		)
		rows = append(rows, row)
	}

	return Table{Name: TableByGroup, Columns: columns, Rows: rows}
}

// FromRecords builds a verbatim debug table from raw records.
func FromRecords(name string, records []record.Record) Table {
	extraKeys := recordExtraKeys(records)

	columns := append(append([]string{}, contextColumns...),
		"AOI", "Start", "Stop", "Duration")
	columns = append(columns, extraKeys...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := append(contextValues(r.Context),
			r.AOI,
			formatNumber(r.Start),
			formatNumber(r.Stop()),
			formatNumber(r.Duration),
		)

		for _, key := range extraKeys {
			row = append(row, r.Extra[key])
		}

		rows = append(rows, row)
	}

	return Table{Name: name, Columns: columns, Rows: rows}
}

func entryExtra(e timeline.Entry) map[string]string {
	if e.Origin == timeline.OriginAggregated {
		return e.Run.Members[0].Extra
	}

	return e.Record.Extra
}

func timelineExtraKeys(entries []timeline.Entry) []string {
	seen := make(map[string]bool)

	for _, e := range entries {
		for key := range entryExtra(e) {
			seen[key] = true
		}
	}

	return sortedKeys(seen)
}

func recordExtraKeys(records []record.Record) []string {
	seen := make(map[string]bool)

	for _, r := range records {
		for key := range r.Extra {
			seen[key] = true
		}
	}

	return sortedKeys(seen)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// formatNumber renders a millisecond value without a forced decimal point,
// so integral timestamps round-trip as integers.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
