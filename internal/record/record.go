// Package record defines the data model for AOI aggregation: raw gaze
// sample records, sealed runs, and the error taxonomy shared by the core.
package record

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Context is the composite grouping key within which continuity and runs
// are scoped. Two records can only be merged when their contexts are equal.
type Context struct {
	Recording   string
	Participant string
	Position    string
	TOI         string
	Interval    string
	EventType   string
	Validity    string
}

// String renders the context as a slash-joined key for logs and error messages.
func (c Context) String() string {
	return strings.Join([]string{
		c.Recording, c.Participant, c.Position, c.TOI, c.Interval, c.EventType, c.Validity,
	}, "/")
}

// Compare orders contexts lexicographically field by field.
// Returns -1, 0, or 1.
func (c Context) Compare(other Context) int {
	pairs := [][2]string{
		{c.Recording, other.Recording},
		{c.Participant, other.Participant},
		{c.Position, other.Position},
		{c.TOI, other.TOI},
		{c.Interval, other.Interval},
		{c.EventType, other.EventType},
		{c.Validity, other.Validity},
	}

	for _, p := range pairs {
		if p[0] != p[1] {
			if p[0] < p[1] {
				return -1
			}

			return 1
		}
	}

	return 0
}

// Record is one labeled, timestamped gaze sample row.
// Start and Duration are milliseconds. AOI may be empty, meaning the sample
// carries no area-of-interest label. Extra holds pass-through columns the
// core does not interpret; they are re-emitted on output rows unchanged.
type Record struct {
	Context  Context
	AOI      string
	Start    float64
	Duration float64
	Extra    map[string]string

	// Index is the zero-based row position in the source file, used for
	// deterministic tie-breaking and error reporting.
	Index int
}

// Stop is the end timestamp of the sample.
func (r Record) Stop() float64 {
	return r.Start + r.Duration
}

// Validate checks the numeric invariants of a single record.
func (r Record) Validate() error {
	if math.IsNaN(r.Start) || math.IsInf(r.Start, 0) {
		return &MalformedRecordError{Index: r.Index, Field: "Start", Reason: "not a finite number"}
	}

	if math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0) {
		return &MalformedRecordError{Index: r.Index, Field: "Duration", Reason: "not a finite number"}
	}

	if r.Duration < 0 {
		return &MalformedRecordError{Index: r.Index, Field: "Duration", Reason: "negative"}
	}

	return nil
}

// Run is a sealed aggregation of consecutive, time-contiguous, same-AOI
// short records. Runs are immutable once the builder emits them.
type Run struct {
	Context  Context
	AOI      string
	Start    float64
	Stop     float64
	Duration float64
	Count    int

	// Members holds the source records in merge order, retained for the
	// debug sheets and for reconciliation checks.
	Members []Record
}

// Sentinel errors for the core taxonomy. Typed errors below unwrap to these
// so callers can classify with errors.Is.
var (
	// ErrMalformedRecord indicates a record with a missing or invalid required field.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnsortedInput indicates a context whose records violate the
	// non-decreasing start invariant while auto-sort is disabled.
	ErrUnsortedInput = errors.New("unsorted input")
	// ErrEmptyInput indicates a context with no records under strict mode.
	ErrEmptyInput = errors.New("empty input")
)

// MalformedRecordError identifies the offending record by source row index
// and names the invalid field.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: field %s %s", e.Index, e.Field, e.Reason)
}

// Unwrap makes the error match ErrMalformedRecord under errors.Is.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// UnsortedInputError identifies the context and the row at which the
// non-decreasing start invariant was first violated.
type UnsortedInputError struct {
	Context Context
	Index   int
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("unsorted input in context %s at row %d", e.Context, e.Index)
}

// Unwrap makes the error match ErrUnsortedInput under errors.Is.
func (e *UnsortedInputError) Unwrap() error {
	return ErrUnsortedInput
}
