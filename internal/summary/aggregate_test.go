package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazemetrics/aoirun/internal/record"
)

const (
	aoiPuck  = "Puck"
	aoiStick = "Stick"
)

func ctxFor(participant string) record.Context {
	return record.Context{Recording: "rec01", Participant: participant}
}

func runOf(ctx record.Context, aoi string, start, stop, duration float64, count int) record.Run {
	return record.Run{Context: ctx, AOI: aoi, Start: start, Stop: stop, Duration: duration, Count: count}
}

func TestOverall_TotalsAndOrdering(t *testing.T) {
	t.Parallel()

	runs := []record.Run{
		runOf(ctxFor("P01"), aoiPuck, 0, 40, 40, 2),
		runOf(ctxFor("P02"), aoiPuck, 100, 120, 20, 1),
		runOf(ctxFor("P01"), aoiStick, 50, 60, 10, 1),
	}

	totals := Overall(runs, nil, Options{})

	require.Len(t, totals, 2)

	// Descending total duration.
	assert.Equal(t, aoiPuck, totals[0].AOI)
	assert.InDelta(t, 60.0, totals[0].TotalDuration, 0)
	assert.Equal(t, 3, totals[0].Rows)
	assert.Equal(t, 2, totals[0].Runs)
	assert.InDelta(t, 0.0, totals[0].FirstStart, 0)
	assert.InDelta(t, 120.0, totals[0].LastStop, 0)

	assert.Equal(t, aoiStick, totals[1].AOI)
	assert.InDelta(t, 10.0, totals[1].TotalDuration, 0)
}

func TestOverall_TieBrokenByAOI(t *testing.T) {
	t.Parallel()

	runs := []record.Run{
		runOf(ctxFor("P01"), aoiStick, 0, 10, 10, 1),
		runOf(ctxFor("P01"), aoiPuck, 20, 30, 10, 1),
	}

	totals := Overall(runs, nil, Options{})

	require.Len(t, totals, 2)
	assert.Equal(t, aoiPuck, totals[0].AOI)
	assert.Equal(t, aoiStick, totals[1].AOI)
}

func TestOverall_IncludeRaw(t *testing.T) {
	t.Parallel()

	runs := []record.Run{runOf(ctxFor("P01"), aoiPuck, 0, 20, 20, 1)}
	long := []record.Record{{Context: ctxFor("P01"), AOI: aoiPuck, Start: 20, Duration: 100}}

	excluded := Overall(runs, long, Options{})
	included := Overall(runs, long, Options{IncludeRaw: true})

	require.Len(t, excluded, 1)
	assert.InDelta(t, 20.0, excluded[0].TotalDuration, 0)

	require.Len(t, included, 1)
	assert.InDelta(t, 120.0, included[0].TotalDuration, 0)
	assert.Equal(t, 2, included[0].Rows)
	assert.InDelta(t, 120.0, included[0].LastStop, 0)
}

func TestOverall_OrderIndependent(t *testing.T) {
	t.Parallel()

	runs := []record.Run{
		runOf(ctxFor("P01"), aoiPuck, 0, 40, 40, 2),
		runOf(ctxFor("P02"), aoiPuck, 100, 120, 20, 1),
		runOf(ctxFor("P01"), aoiStick, 50, 60, 10, 1),
	}
	reversed := []record.Run{runs[2], runs[1], runs[0]}

	assert.Equal(t, Overall(runs, nil, Options{}), Overall(reversed, nil, Options{}))
}

func TestByGroup_KeyedByContextAndAOI(t *testing.T) {
	t.Parallel()

	runs := []record.Run{
		runOf(ctxFor("P01"), aoiPuck, 0, 40, 40, 2),
		runOf(ctxFor("P02"), aoiPuck, 100, 120, 20, 1),
		runOf(ctxFor("P01"), aoiPuck, 200, 210, 10, 1),
		runOf(ctxFor("P01"), aoiStick, 50, 60, 10, 1),
	}

	totals := ByGroup(runs, nil, Options{})

	require.Len(t, totals, 3)

	// Context first, then descending duration within it.
	assert.Equal(t, "P01", totals[0].Context.Participant)
	assert.Equal(t, aoiPuck, totals[0].AOI)
	assert.InDelta(t, 50.0, totals[0].TotalDuration, 0)
	assert.Equal(t, 3, totals[0].Rows)
	assert.Equal(t, 2, totals[0].Runs)

	assert.Equal(t, aoiStick, totals[1].AOI)
	assert.Equal(t, "P02", totals[2].Context.Participant)
}

func TestByGroup_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ByGroup(nil, nil, Options{}))
}
