// Package timeline merges sealed runs and pass-through long records into a
// single chronologically ordered view per context. Long records are never
// merged into a run even when AOI and adjacency match; rows excluded as too
// long stay excluded.
package timeline

import (
	"sort"

	"github.com/gazemetrics/aoirun/internal/record"
)

// Origin tags a timeline entry with its provenance. The labels match the
// Source column values of the original result sheets.
type Origin string

const (
	// OriginAggregated marks a row built from merged short records.
	OriginAggregated Origin = "Merged<=20msRun"
	// OriginRaw marks a pass-through long record.
	OriginRaw Origin = "Raw>20msRow"
)

// Entry is one row of the combined timeline: either a sealed run or a raw
// long record, never both.
type Entry struct {
	Origin Origin
	Run    *record.Run
	Record *record.Record
}

// Context returns the entry's grouping key.
func (e Entry) Context() record.Context {
	if e.Origin == OriginAggregated {
		return e.Run.Context
	}

	return e.Record.Context
}

// AOI returns the entry's label.
func (e Entry) AOI() string {
	if e.Origin == OriginAggregated {
		return e.Run.AOI
	}

	return e.Record.AOI
}

// Start returns the entry's start timestamp.
func (e Entry) Start() float64 {
	if e.Origin == OriginAggregated {
		return e.Run.Start
	}

	return e.Record.Start
}

// Stop returns the entry's end timestamp.
func (e Entry) Stop() float64 {
	if e.Origin == OriginAggregated {
		return e.Run.Stop
	}

	return e.Record.Stop()
}

// Duration returns the entry's accumulated duration.
func (e Entry) Duration() float64 {
	if e.Origin == OriginAggregated {
		return e.Run.Duration
	}

	return e.Record.Duration
}

// Count returns the number of merged source records (1 for raw rows).
func (e Entry) Count() int {
	if e.Origin == OriginAggregated {
		return e.Run.Count
	}

	return 1
}

// sourceIndex is the original input row the entry descends from, used as
// the stable tie-break for equal timestamps.
func (e Entry) sourceIndex() int {
	if e.Origin == OriginAggregated {
		return e.Run.Members[0].Index
	}

	return e.Record.Index
}

// Combine produces the merged sequence, ordered by (context, start) with
// equal starts broken by original input order.
func Combine(runs []record.Run, long []record.Record) []Entry {
	entries := make([]Entry, 0, len(runs)+len(long))

	for i := range runs {
		entries = append(entries, Entry{Origin: OriginAggregated, Run: &runs[i]})
	}

	for i := range long {
		entries = append(entries, Entry{Origin: OriginRaw, Record: &long[i]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]

		if c := left.Context().Compare(right.Context()); c != 0 {
			return c < 0
		}

		if left.Start() != right.Start() {
			return left.Start() < right.Start()
		}

		return left.sourceIndex() < right.sourceIndex()
	})

	return entries
}
