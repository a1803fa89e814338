package emit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazemetrics/aoirun/internal/summary"
)

type capturingWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)

	return nil
}

func (c *capturingWriter) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewKafkaPublisher_KeyedWriter(t *testing.T) {
	t.Parallel()

	p := NewKafkaPublisher([]string{"localhost:9092"}, "aoirun.results", testLogger())

	w, ok := p.w.(*kafka.Writer)
	require.True(t, ok)

	// Messages are keyed by file name; the hash balancer makes the key
	// actually pick the partition.
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, "aoirun.results", w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.False(t, w.Async)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	cw := &capturingWriter{}
	p := &KafkaPublisher{w: cw, log: testLogger()}

	ev := Event{
		BatchID:  "b-1",
		File:     "session.xlsx",
		Records:  40,
		Runs:     6,
		Contexts: 2,
		Overall: []summary.AOITotal{
			{AOI: "Face", Rows: 12, Runs: 4, TotalDuration: 320},
		},
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, cw.msgs, 1)

	msg := cw.msgs[0]
	assert.Equal(t, "session.xlsx", string(msg.Key))
	assert.Equal(t, ev.GeneratedAt, msg.Time)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.BatchID, got.BatchID)
	assert.Equal(t, ev.Runs, got.Runs)
	require.Len(t, got.Overall, 1)
	assert.Equal(t, "Face", got.Overall[0].AOI)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("broker down")
	p := &KafkaPublisher{w: &capturingWriter{err: sentinel}, log: testLogger()}

	err := p.Publish(context.Background(), Event{File: "a.csv"})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	var p Publisher = Discard{}

	require.NoError(t, p.Publish(context.Background(), Event{}))
	require.NoError(t, p.Close())
}
