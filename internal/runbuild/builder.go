// Package runbuild converts the short record stream into sealed AOI runs.
// Records are processed independently per context; a run never spans two
// contexts. The scan is a fold over the sorted record sequence with one
// explicit open-run accumulator, sealed and emitted as soon as a boundary
// is detected.
package runbuild

import (
	"fmt"
	"sort"

	"github.com/gazemetrics/aoirun/internal/record"
)

// DefaultContinuityStep is the fallback gap in milliseconds tolerated as
// contiguous, compensating for the fixed timestamp-granularity artifact in
// the source recordings.
const DefaultContinuityStep = 20.0

// Options control run construction.
type Options struct {
	// ContinuityStep is the additive fallback gap: a record continues the
	// open run when its start equals the run's stop, or the run's stop plus
	// this step. Zero means DefaultContinuityStep; a negative value
	// disables the fallback entirely.
	ContinuityStep float64

	// SortRecords sorts each context's records by (start, stop) before
	// building, stably, so equal timestamps keep their input order. When
	// false the input order is validated instead and a violation is an
	// UnsortedInputError.
	SortRecords bool

	// DropEmptyAOI removes records with an empty AOI label before run
	// building. When false, empty-AOI records form runs of their own under
	// the same continuity rule.
	DropEmptyAOI bool
}

// DefaultOptions returns the options used by the batch pipeline unless
// configured otherwise.
func DefaultOptions() Options {
	return Options{ContinuityStep: DefaultContinuityStep, SortRecords: true}
}

func (o Options) step() float64 {
	if o.ContinuityStep == 0 {
		return DefaultContinuityStep
	}

	return o.ContinuityStep
}

// ContextError carries a per-context failure so one context's malformed
// data does not block processing of the others.
type ContextError struct {
	Context record.Context
	Err     error
}

func (e ContextError) Error() string {
	return fmt.Sprintf("context %s: %v", e.Context, e.Err)
}

func (e ContextError) Unwrap() error {
	return e.Err
}

// BuildAll groups records by context and builds runs for each. Contexts are
// processed in lexicographic key order so output is deterministic. Failed
// contexts are reported individually; runs from the remaining contexts are
// still returned.
func BuildAll(records []record.Record, opts Options) ([]record.Run, []ContextError) {
	grouped := make(map[record.Context][]record.Record)
	contexts := make([]record.Context, 0)

	for _, r := range records {
		if _, seen := grouped[r.Context]; !seen {
			contexts = append(contexts, r.Context)
		}

		grouped[r.Context] = append(grouped[r.Context], r)
	}

	sort.Slice(contexts, func(i, j int) bool {
		return contexts[i].Compare(contexts[j]) < 0
	})

	var (
		runs     []record.Run
		failures []ContextError
	)

	for _, ctx := range contexts {
		built, err := Build(ctx, grouped[ctx], opts)
		if err != nil {
			failures = append(failures, ContextError{Context: ctx, Err: err})

			continue
		}

		runs = append(runs, built...)
	}

	return runs, failures
}

// Build constructs the sealed runs for one context. The input records must
// all carry the given context. Malformed records abort the context with a
// MalformedRecordError; nothing is silently skipped.
func Build(ctx record.Context, records []record.Record, opts Options) ([]record.Run, error) {
	for _, r := range records {
		err := r.Validate()
		if err != nil {
			return nil, err
		}
	}

	if opts.DropEmptyAOI {
		records = withoutEmptyAOI(records)
	}

	if len(records) == 0 {
		return nil, nil
	}

	ordered := make([]record.Record, len(records))
	copy(ordered, records)

	if opts.SortRecords {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Start != ordered[j].Start {
				return ordered[i].Start < ordered[j].Start
			}

			return ordered[i].Stop() < ordered[j].Stop()
		})
	} else {
		for i := 1; i < len(ordered); i++ {
			if ordered[i].Start < ordered[i-1].Start {
				return nil, &record.UnsortedInputError{Context: ctx, Index: ordered[i].Index}
			}
		}
	}

	step := opts.step()
	runs := make([]record.Run, 0)

	var open *record.Run

	for _, r := range ordered {
		if open != nil && r.AOI == open.AOI && continues(open.Stop, r.Start, step) {
			open.Members = append(open.Members, r)
			open.Stop = r.Stop()
			open.Duration += r.Duration
			open.Count++

			continue
		}

		if open != nil {
			runs = append(runs, *open)
		}

		open = &record.Run{
			Context:  ctx,
			AOI:      r.AOI,
			Start:    r.Start,
			Stop:     r.Stop(),
			Duration: r.Duration,
			Count:    1,
			Members:  []record.Record{r},
		}
	}

	runs = append(runs, *open)

	return runs, nil
}

// continues reports whether a record starting at start extends a run ending
// at stop: exact abutment, or the configured additive step fallback.
// Overlap, a larger gap, or a start before the stop all break the run.
func continues(stop, start, step float64) bool {
	if start == stop {
		return true
	}

	return step > 0 && start == stop+step
}

func withoutEmptyAOI(records []record.Record) []record.Record {
	kept := make([]record.Record, 0, len(records))

	for _, r := range records {
		if r.AOI != "" {
			kept = append(kept, r)
		}
	}

	return kept
}
