// Package classify partitions records by duration into the short stream
// (eligible for run merging) and the long stream (passed through raw).
package classify

import "github.com/gazemetrics/aoirun/internal/record"

// DefaultThreshold is the duration cutoff in milliseconds. Records at or
// below it are short; records above it are long.
const DefaultThreshold = 20.0

// Partition splits records into short (duration <= threshold, inclusive)
// and long (duration > threshold). No record is dropped or duplicated, and
// both partitions preserve the input order and all fields.
func Partition(records []record.Record, threshold float64) (short, long []record.Record) {
	for _, r := range records {
		if r.Duration <= threshold {
			short = append(short, r)
		} else {
			long = append(long, r)
		}
	}

	return short, long
}
