package record

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRecording   = "rec01"
	testParticipant = "P07"
)

func TestContext_String(t *testing.T) {
	t.Parallel()

	ctx := Context{
		Recording:   testRecording,
		Participant: testParticipant,
		Position:    "goalie",
		TOI:         "full",
		Interval:    "1",
		EventType:   "Fixation",
		Validity:    "Whole",
	}

	assert.Equal(t, "rec01/P07/goalie/full/1/Fixation/Whole", ctx.String())
}

func TestContext_Compare(t *testing.T) {
	t.Parallel()

	base := Context{Recording: testRecording, Participant: testParticipant}

	assert.Equal(t, 0, base.Compare(base))
	assert.Equal(t, -1, base.Compare(Context{Recording: "rec02"}))
	assert.Equal(t, 1, Context{Recording: "rec02"}.Compare(base))
	assert.Equal(t, -1, base.Compare(Context{Recording: testRecording, Participant: "P08"}))
}

func TestRecord_Stop(t *testing.T) {
	t.Parallel()

	rec := Record{Start: 120, Duration: 20}

	assert.InDelta(t, 140.0, rec.Stop(), 0)
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()

	valid := Record{Start: 0, Duration: 20}
	require.NoError(t, valid.Validate())

	zeroDur := Record{Start: 10, Duration: 0}
	require.NoError(t, zeroDur.Validate())

	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{name: "nan start", rec: Record{Start: math.NaN(), Duration: 1}, field: "Start"},
		{name: "inf start", rec: Record{Start: math.Inf(1), Duration: 1}, field: "Start"},
		{name: "nan duration", rec: Record{Start: 0, Duration: math.NaN()}, field: "Duration"},
		{name: "negative duration", rec: Record{Start: 0, Duration: -5}, field: "Duration"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.rec.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrMalformedRecord)

			var malformed *MalformedRecordError

			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	t.Parallel()

	var err error = &MalformedRecordError{Index: 3, Field: "Duration", Reason: "negative"}
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	assert.Contains(t, err.Error(), "row 3")

	err = &UnsortedInputError{Context: Context{Recording: testRecording}, Index: 9}
	assert.True(t, errors.Is(err, ErrUnsortedInput))
	assert.Contains(t, err.Error(), testRecording)
}
