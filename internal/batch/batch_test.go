package batch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazemetrics/aoirun/internal/config"
	"github.com/gazemetrics/aoirun/internal/record"
	"github.com/gazemetrics/aoirun/internal/report"
	"github.com/gazemetrics/aoirun/internal/store"
)

const sampleCSV = `Recording,Participant,AOI,Start,Duration
rec1,P01,Face,0,10
rec1,P01,Face,10,10
rec1,P01,Hands,25,30
`

func testConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		Aggregation: config.AggregationConfig{
			DurationThreshold: 20,
			ContinuityStep:    20,
			SortRecords:       true,
		},
		Input: config.InputConfig{
			Columns: config.ColumnsConfig{
				Recording:   "Recording",
				Participant: "Participant",
				AOI:         "AOI",
				Start:       "Start",
				Duration:    "Duration",
			},
		},
		Batch:  config.BatchConfig{Workers: 1},
		Output: config.OutputConfig{Dir: t.TempDir(), Workbook: config.WorkbookCSV},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newTestRunner(t *testing.T, cfg config.Config) *Runner {
	t.Helper()

	r, err := NewRunner(cfg, testLogger(), io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close(context.Background())) })

	return r
}

func TestEligible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"session.xlsx", true},
		{"session.csv", true},
		{"session.json", true},
		{"session.XLSX", true},
		{"~$session.xlsx", false},
		{"session_aggregated.xlsx", false},
		{"session_aggregated_MergedRuns.csv", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, eligible(tt.name), tt.name)
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeInput(t, dir, "b.csv", "x")
	writeInput(t, dir, "a.csv", "x")
	writeInput(t, dir, "~$locked.xlsx", "x")
	writeInput(t, dir, "readme.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	files, err := Discover(dir)

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.csv"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.csv"), files[1])
}

func TestRunner_RunDir(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	writeInput(t, inDir, "session.csv", sampleCSV)

	cfg := testConfig(t)
	r := newTestRunner(t, cfg)

	res, err := r.RunDir(context.Background(), inDir)

	require.NoError(t, err)
	assert.Equal(t, r.BatchID(), res.BatchID)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Files, 1)

	fr := res.Files[0]
	require.NoError(t, fr.Err)
	assert.Equal(t, "session.csv", fr.File)
	assert.Equal(t, 3, fr.Records)
	assert.Equal(t, 1, fr.Runs) // two 10ms Face rows merge, the 30ms row passes through
	require.NotEmpty(t, fr.Outputs)

	var runsPath string
	for _, p := range fr.Outputs {
		if filepath.Base(p) == "session_aggregated_"+report.TableRuns+".csv" {
			runsPath = p
		}
	}
	require.NotEmpty(t, runsPath)

	data, err := os.ReadFile(runsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Face")
	assert.Contains(t, string(data), "20")
}

func TestRunner_FailureIsolation(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	writeInput(t, inDir, "good.csv", sampleCSV)
	writeInput(t, inDir, "bad.csv", "AOI,Start,Duration\nFace,zero,10\n")

	cfg := testConfig(t)
	cfg.Batch.Workers = 2
	r := newTestRunner(t, cfg)

	res, err := r.Run(context.Background(), mustDiscover(t, inDir))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, res.Files, 2)
	assert.Error(t, res.Files[0].Err)
	assert.Equal(t, "bad.csv", res.Files[0].File)
	assert.NoError(t, res.Files[1].Err)
}

func TestRunner_StrictEmpty(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	path := writeInput(t, inDir, "empty.csv", "AOI,Start,Duration\n")

	cfg := testConfig(t)
	cfg.Aggregation.StrictEmpty = true
	r := newTestRunner(t, cfg)

	res, err := r.Run(context.Background(), []string{path})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Files, 1)
	assert.ErrorIs(t, res.Files[0].Err, ErrEmptyFile)
	assert.ErrorIs(t, res.Files[0].Err, record.ErrEmptyInput)
}

func TestRunner_NoInputFiles(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, testConfig(t))

	_, err := r.RunDir(context.Background(), t.TempDir())

	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestRunner_RenderJSON(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	path := writeInput(t, inDir, "session.csv", sampleCSV)

	cfg := testConfig(t)
	cfg.Output.Workbook = config.WorkbookNone
	cfg.Output.Format = report.FormatJSON

	var out bytes.Buffer
	r, err := NewRunner(cfg, testLogger(), &out)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close(context.Background())) })

	res, err := r.Run(context.Background(), []string{path})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Empty(t, res.Files[0].Outputs)
	assert.Contains(t, out.String(), report.TableTimeline)
	assert.Contains(t, out.String(), r.BatchID())
}

func TestRunner_DebugTables(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	path := writeInput(t, inDir, "session.csv", sampleCSV)

	cfg := testConfig(t)
	cfg.Output.Debug = true
	r := newTestRunner(t, cfg)

	res, err := r.Run(context.Background(), []string{path})

	require.NoError(t, err)

	names := make(map[string]bool)
	for _, p := range res.Files[0].Outputs {
		names[filepath.Base(p)] = true
	}
	assert.True(t, names["session_aggregated_"+report.TableRawShort+".csv"])
	assert.True(t, names["session_aggregated_"+report.TableRawLong+".csv"])
}

func TestRunner_StoreSink(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	path := writeInput(t, inDir, "session.csv", sampleCSV)

	cfg := testConfig(t)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

	r, err := NewRunner(cfg, testLogger(), io.Discard)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	batchID := r.BatchID()
	require.NoError(t, r.Close(context.Background()))

	db, err := store.Open(cfg.Store.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	rows, err := db.RunsForFile(batchID, "session.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Face", rows[0].AOI)
	assert.Equal(t, 2, rows[0].SegmentsMerged)
}

func TestRunner_Metrics(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	path := writeInput(t, inDir, "session.csv", sampleCSV)

	r := newTestRunner(t, testConfig(t))

	_, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)

	families, err := r.Metrics().Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func mustDiscover(t *testing.T, dir string) []string {
	t.Helper()

	files, err := Discover(dir)
	require.NoError(t, err)

	return files
}
