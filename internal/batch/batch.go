// Package batch discovers input files and drives each one through the
// full aggregation pipeline: load, partition, run building, timeline
// combination, summaries, and the configured outputs.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/gazemetrics/aoirun/internal/classify"
	"github.com/gazemetrics/aoirun/internal/config"
	"github.com/gazemetrics/aoirun/internal/emit"
	"github.com/gazemetrics/aoirun/internal/observability"
	"github.com/gazemetrics/aoirun/internal/record"
	"github.com/gazemetrics/aoirun/internal/report"
	"github.com/gazemetrics/aoirun/internal/runbuild"
	"github.com/gazemetrics/aoirun/internal/sheet"
	"github.com/gazemetrics/aoirun/internal/store"
	"github.com/gazemetrics/aoirun/internal/summary"
	"github.com/gazemetrics/aoirun/internal/timeline"
)

var (
	// ErrNoInputFiles indicates the input directory held nothing to process.
	ErrNoInputFiles = errors.New("no input files found")
	// ErrEmptyFile indicates a file produced zero records under strict mode.
	// It wraps the core sentinel so errors.Is matches either.
	ErrEmptyFile = fmt.Errorf("file contains no records: %w", record.ErrEmptyInput)
)

// inputExtensions are the file types the runner picks up.
var inputExtensions = map[string]bool{
	".xlsx": true,
	".csv":  true,
	".json": true,
}

// FileResult captures the outcome of one processed file.
type FileResult struct {
	File          string
	Records       int
	Runs          int
	ContextErrors []runbuild.ContextError
	Outputs       []string
	Err           error
}

// Result summarizes one batch invocation.
type Result struct {
	BatchID   string
	Files     []FileResult
	Processed int
	Failed    int
	Elapsed   time.Duration
}

// Runner executes the aggregation pipeline over a set of files.
type Runner struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *observability.Metrics

	tracer        trace.Tracer
	traceShutdown func(context.Context) error

	publisher emit.Publisher
	db        *store.Store

	batchID string

	// outMu serializes stdout rendering across workers.
	outMu sync.Mutex
	out   io.Writer
}

// NewRunner wires the sinks and observability declared in cfg. The out
// writer receives the optional per-file report rendering.
func NewRunner(cfg config.Config, log *slog.Logger, out io.Writer) (*Runner, error) {
	r := &Runner{
		cfg:       cfg,
		log:       log,
		metrics:   observability.NewMetrics(),
		publisher: emit.Discard{},
		batchID:   uuid.NewString(),
		out:       out,
	}

	tracer, shutdown, err := observability.SetupTracing(os.Stderr, cfg.Metrics.Trace)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	r.tracer = tracer
	r.traceShutdown = shutdown

	if len(cfg.Kafka.Brokers) > 0 {
		r.publisher = emit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	}
	if cfg.Store.SQLitePath != "" {
		db, err := store.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		r.db = db
	}

	return r, nil
}

// BatchID returns the identifier stamped on every report of this runner.
func (r *Runner) BatchID() string {
	return r.batchID
}

// Metrics exposes the runner counters.
func (r *Runner) Metrics() *observability.Metrics {
	return r.metrics
}

// Discover lists the processable files directly under dir, sorted by
// name. Excel lock files ("~$" prefix) and previously generated
// aggregates are skipped.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if eligible(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return files, nil
}

func eligible(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return false
	}
	if !inputExtensions[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))

	return !strings.Contains(base, "_aggregated")
}

// Run processes the given files, fanning out across the configured
// workers. A failing file never aborts the batch.
func (r *Runner) Run(ctx context.Context, paths []string) (Result, error) {
	if len(paths) == 0 {
		return Result{BatchID: r.batchID}, ErrNoInputFiles
	}

	started := time.Now()

	workers := r.cfg.Batch.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	fileCh := make(chan string, workers)
	results := make([]FileResult, 0, len(paths))

	var mu sync.Mutex
	var wg sync.WaitGroup
	var completed atomic.Int64
	total := int64(len(paths))

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for path := range fileCh {
				res := r.processFile(ctx, path)

				done := completed.Add(1)
				if res.Err != nil {
					r.log.Error("file failed", "file", res.File, "err", res.Err,
						"progress", fmt.Sprintf("%d/%d", done, total))
				} else {
					r.log.Info("file processed", "file", res.File,
						"records", humanize.Comma(int64(res.Records)),
						"runs", humanize.Comma(int64(res.Runs)),
						"progress", fmt.Sprintf("%d/%d", done, total))
				}

				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	for _, p := range paths {
		select {
		case <-ctx.Done():
			close(fileCh)
			wg.Wait()

			return Result{BatchID: r.batchID}, ctx.Err()
		case fileCh <- p:
		}
	}
	close(fileCh)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	res := Result{
		BatchID: r.batchID,
		Files:   results,
		Elapsed: time.Since(started),
	}
	for _, f := range results {
		if f.Err != nil {
			res.Failed++
		} else {
			res.Processed++
		}
	}

	return res, nil
}

// RunDir discovers and processes every eligible file under dir.
func (r *Runner) RunDir(ctx context.Context, dir string) (Result, error) {
	paths, err := Discover(dir)
	if err != nil {
		return Result{BatchID: r.batchID}, err
	}

	return r.Run(ctx, paths)
}

func (r *Runner) processFile(ctx context.Context, path string) FileResult {
	res := FileResult{File: filepath.Base(path)}

	ctx, span := r.tracer.Start(ctx, "process-file")
	defer span.End()

	records, err := sheet.Load(path, sheet.LoadOptions{
		Sheet:   r.cfg.Input.Sheet,
		Columns: r.cfg.Input.Columns,
	})
	if err != nil {
		if errors.Is(err, record.ErrMalformedRecord) {
			r.metrics.MalformedRecords.Inc()
		}
		r.metrics.FilesFailed.Inc()
		res.Err = fmt.Errorf("load %s: %w", res.File, err)

		return res
	}
	if len(records) == 0 && r.cfg.Aggregation.StrictEmpty {
		r.metrics.FilesFailed.Inc()
		res.Err = fmt.Errorf("%s: %w", res.File, ErrEmptyFile)

		return res
	}
	res.Records = len(records)
	r.metrics.RecordsRead.Add(float64(len(records)))

	short, long := classify.Partition(records, r.cfg.Aggregation.DurationThreshold)

	runs, ctxErrs := runbuild.BuildAll(short, runbuild.Options{
		ContinuityStep: r.cfg.Aggregation.ContinuityStep,
		SortRecords:    r.cfg.Aggregation.SortRecords,
		DropEmptyAOI:   r.cfg.Aggregation.DropEmptyAOI,
	})
	res.Runs = len(runs)
	res.ContextErrors = ctxErrs
	r.metrics.RunsBuilt.Add(float64(len(runs)))
	r.metrics.ContextsFailed.Add(float64(len(ctxErrs)))
	for _, ce := range ctxErrs {
		r.log.Warn("context skipped", "file", res.File, "context", ce.Context.String(), "err", ce.Err)
	}

	entries := timeline.Combine(runs, long)
	sumOpts := summary.Options{IncludeRaw: r.cfg.Aggregation.IncludeRawInSummary}
	overall := summary.Overall(runs, long, sumOpts)
	groups := summary.ByGroup(runs, long, sumOpts)

	rep := &report.Report{
		File:        res.File,
		BatchID:     r.batchID,
		GeneratedAt: time.Now().UTC(),
		Tables: []report.Table{
			report.FromTimeline(entries),
			report.FromRuns(runs),
			report.FromOverall(overall),
			report.FromByGroup(groups),
		},
	}
	if r.cfg.Output.Debug {
		rep.Tables = append(rep.Tables,
			report.FromRecords(report.TableRawShort, short),
			report.FromRecords(report.TableRawLong, long),
		)
	}

	if r.cfg.Output.Workbook != config.WorkbookNone {
		outputs, werr := sheet.WriteWorkbook(r.cfg.Output.Dir, rep, r.cfg.Output.Workbook)
		if werr != nil {
			r.metrics.FilesFailed.Inc()
			res.Err = fmt.Errorf("write workbook for %s: %w", res.File, werr)

			return res
		}
		res.Outputs = outputs
	}

	if r.cfg.Output.Format != "" {
		if rerr := r.render(rep, overall, groups); rerr != nil {
			r.metrics.FilesFailed.Inc()
			res.Err = fmt.Errorf("render %s: %w", res.File, rerr)

			return res
		}
	}

	if serr := r.sink(ctx, res, runs, overall, groups); serr != nil {
		r.metrics.FilesFailed.Inc()
		res.Err = serr

		return res
	}

	r.metrics.FilesProcessed.Inc()

	return res
}

func (r *Runner) render(rep *report.Report, overall []summary.AOITotal, groups []summary.GroupTotal) error {
	r.outMu.Lock()
	defer r.outMu.Unlock()

	switch r.cfg.Output.Format {
	case report.FormatText:
		return report.RenderText(r.out, rep, r.cfg.Output.NoColor)
	case report.FormatJSON:
		return report.WriteJSON(r.out, rep)
	case report.FormatYAML:
		return report.WriteYAML(r.out, rep)
	case report.FormatBinary:
		return report.WriteBinary(r.out, rep)
	case report.FormatPlot:
		return report.RenderPlot(r.out, rep, overall, groups)
	default:
		return fmt.Errorf("%w: %s", report.ErrUnsupportedFormat, r.cfg.Output.Format)
	}
}

func (r *Runner) sink(ctx context.Context, res FileResult, runs []record.Run, overall []summary.AOITotal, groups []summary.GroupTotal) error {
	if r.db != nil {
		if err := r.db.SaveRuns(r.batchID, res.File, runs); err != nil {
			return fmt.Errorf("store runs for %s: %w", res.File, err)
		}
		if err := r.db.SaveSummary(r.batchID, res.File, overall, groups); err != nil {
			return fmt.Errorf("store summary for %s: %w", res.File, err)
		}
	}

	contexts := make(map[string]bool, len(groups))
	for _, g := range groups {
		contexts[g.Context.String()] = true
	}
	ev := emit.Event{
		BatchID:     r.batchID,
		File:        res.File,
		Records:     res.Records,
		Runs:        res.Runs,
		Contexts:    len(contexts),
		Overall:     overall,
		GeneratedAt: time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish event for %s: %w", res.File, err)
	}

	return nil
}

// Watch processes the backlog under dir, then keeps running until ctx
// is cancelled, aggregating files as they appear or change.
func (r *Runner) Watch(ctx context.Context, dir string) error {
	if res, err := r.RunDir(ctx, dir); err != nil && !errors.Is(err, ErrNoInputFiles) {
		return err
	} else if err == nil {
		r.log.Info("backlog processed", "files", res.Processed, "failed", res.Failed)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.log.Info("watching", "dir", dir)

	// Writers often emit several events per file. Pending paths settle
	// for a moment before being processed.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	const settle = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if eligible(filepath.Base(ev.Name)) {
				pending[ev.Name] = time.Now()
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("watch error", "err", werr)
		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < settle {
					continue
				}
				delete(pending, path)

				res := r.processFile(ctx, path)
				if res.Err != nil {
					r.log.Error("file failed", "file", res.File, "err", res.Err)
				} else {
					r.log.Info("file processed", "file", res.File,
						"records", res.Records, "runs", res.Runs)
				}
			}
		}
	}
}

// Close flushes metrics and traces and releases the sinks.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error

	if r.cfg.Metrics.PushGateway != "" {
		if err := r.metrics.Push(r.cfg.Metrics.PushGateway, r.cfg.Metrics.Job); err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if err := r.traceShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	return errors.Join(errs...)
}
