// Package summary reduces sealed runs into per-AOI and per-(context, AOI)
// totals. Both reductions are order-independent over the input; output
// ordering is fixed by an explicit sort so tables never depend on map
// iteration order.
package summary

import (
	"sort"

	"github.com/gazemetrics/aoirun/internal/record"
)

// Options control which rows feed the summaries.
type Options struct {
	// IncludeRaw counts pass-through long records toward the totals. Off by
	// default: summaries reflect the merged short stream only.
	IncludeRaw bool
}

// AOITotal is one row of the overall summary.
type AOITotal struct {
	AOI string
	// Rows is the number of source records behind the total.
	Rows int
	// Runs is the number of sealed runs (raw records count as one each
	// when included).
	Runs          int
	TotalDuration float64
	FirstStart    float64
	LastStop      float64
}

// GroupTotal is one row of the per-(context, AOI) summary.
type GroupTotal struct {
	Context       record.Context
	AOI           string
	Rows          int
	Runs          int
	TotalDuration float64
	FirstStart    float64
	LastStop      float64
}

type accumulator struct {
	rows     int
	runs     int
	duration float64
	first    float64
	last     float64
	seen     bool
}

func (a *accumulator) add(rows int, duration, start, stop float64) {
	a.rows += rows
	a.runs++
	a.duration += duration

	if !a.seen || start < a.first {
		a.first = start
	}

	if !a.seen || stop > a.last {
		a.last = stop
	}

	a.seen = true
}

// Overall computes the per-AOI totals across all contexts.
// Rows are ordered by descending total duration, then AOI.
func Overall(runs []record.Run, long []record.Record, opts Options) []AOITotal {
	acc := make(map[string]*accumulator)

	for _, run := range runs {
		grab(acc, run.AOI).add(run.Count, run.Duration, run.Start, run.Stop)
	}

	if opts.IncludeRaw {
		for _, r := range long {
			grab(acc, r.AOI).add(1, r.Duration, r.Start, r.Stop())
		}
	}

	totals := make([]AOITotal, 0, len(acc))
	for aoi, a := range acc {
		totals = append(totals, AOITotal{
			AOI: aoi, Rows: a.rows, Runs: a.runs,
			TotalDuration: a.duration, FirstStart: a.first, LastStop: a.last,
		})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalDuration != totals[j].TotalDuration {
			return totals[i].TotalDuration > totals[j].TotalDuration
		}

		return totals[i].AOI < totals[j].AOI
	})

	return totals
}

type groupKey struct {
	ctx record.Context
	aoi string
}

// ByGroup computes the per-(context, AOI) totals.
// Rows are ordered by context, then descending total duration, then AOI.
func ByGroup(runs []record.Run, long []record.Record, opts Options) []GroupTotal {
	acc := make(map[groupKey]*accumulator)

	grabGroup := func(key groupKey) *accumulator {
		a := acc[key]
		if a == nil {
			a = &accumulator{}
			acc[key] = a
		}

		return a
	}

	for _, run := range runs {
		grabGroup(groupKey{ctx: run.Context, aoi: run.AOI}).add(run.Count, run.Duration, run.Start, run.Stop)
	}

	if opts.IncludeRaw {
		for _, r := range long {
			grabGroup(groupKey{ctx: r.Context, aoi: r.AOI}).add(1, r.Duration, r.Start, r.Stop())
		}
	}

	totals := make([]GroupTotal, 0, len(acc))
	for key, a := range acc {
		totals = append(totals, GroupTotal{
			Context: key.ctx, AOI: key.aoi, Rows: a.rows, Runs: a.runs,
			TotalDuration: a.duration, FirstStart: a.first, LastStop: a.last,
		})
	}

	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Context.Compare(totals[j].Context); c != 0 {
			return c < 0
		}

		if totals[i].TotalDuration != totals[j].TotalDuration {
			return totals[i].TotalDuration > totals[j].TotalDuration
		}

		return totals[i].AOI < totals[j].AOI
	})

	return totals
}

func grab(acc map[string]*accumulator, aoi string) *accumulator {
	a := acc[aoi]
	if a == nil {
		a = &accumulator{}
		acc[aoi] = a
	}

	return a
}
