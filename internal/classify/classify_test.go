package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazemetrics/aoirun/internal/record"
)

func TestPartition_InclusiveBoundary(t *testing.T) {
	t.Parallel()

	records := []record.Record{
		{AOI: "A", Start: 0, Duration: 10, Index: 0},
		{AOI: "A", Start: 10, Duration: 20, Index: 1},
		{AOI: "B", Start: 30, Duration: 20.5, Index: 2},
		{AOI: "B", Start: 55, Duration: 200, Index: 3},
	}

	short, long := Partition(records, DefaultThreshold)

	require.Len(t, short, 2)
	require.Len(t, long, 2)

	// Duration exactly at the threshold is short.
	assert.Equal(t, 1, short[1].Index)
	assert.Equal(t, 2, long[0].Index)
}

func TestPartition_PreservesOrderAndFields(t *testing.T) {
	t.Parallel()

	records := []record.Record{
		{AOI: "A", Start: 0, Duration: 5, Index: 0, Extra: map[string]string{"GazeX": "0.41"}},
		{AOI: "B", Start: 5, Duration: 50, Index: 1},
		{AOI: "C", Start: 55, Duration: 5, Index: 2},
	}

	short, long := Partition(records, DefaultThreshold)

	require.Len(t, short, 2)
	require.Len(t, long, 1)
	assert.Equal(t, []int{0, 2}, []int{short[0].Index, short[1].Index})
	assert.Equal(t, "0.41", short[0].Extra["GazeX"])
	assert.Equal(t, len(records), len(short)+len(long))
}

func TestPartition_Empty(t *testing.T) {
	t.Parallel()

	short, long := Partition(nil, DefaultThreshold)

	assert.Empty(t, short)
	assert.Empty(t, long)
}
