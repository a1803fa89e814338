// Package commands implements CLI command handlers for aoirun.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gazemetrics/aoirun/internal/batch"
	"github.com/gazemetrics/aoirun/internal/config"
	"github.com/gazemetrics/aoirun/internal/report"
)

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	configPath string
	inputDir   string

	outputDir string
	workbook  string
	format    string
	debug     bool
	noColor   bool

	threshold  float64
	step       float64
	includeRaw bool
	dropEmpty  bool
	strict     bool

	workers int
	watch   bool

	pushGateway string
	trace       bool
	sqlitePath  string
	brokers     []string
	topic       string

	verbose bool
	quiet   bool
}

// NewRunCommand creates the aggregation command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Aggregate eye-tracking export files into visit runs",
		Long: `Aggregate every .xlsx, .csv, and .json export under the input
directory: short records merge into visit runs, long records pass
through, and each file yields a combined timeline, a run table, and
per-AOI dwell summaries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "Config file path (default: .aoirun.yaml in CWD or $HOME)")
	cmd.Flags().StringVarP(&rc.inputDir, "input", "i", ".", "Input directory to scan")

	cmd.Flags().StringVarP(&rc.outputDir, "output", "o", "", "Output directory for aggregated workbooks")
	cmd.Flags().StringVar(&rc.workbook, "workbook", "", "Workbook output: xlsx, csv, none")
	cmd.Flags().StringVarP(&rc.format, "format", "f", "", "Also render each report to stdout: text, json, yaml, bin, plot")
	cmd.Flags().BoolVar(&rc.debug, "debug", false, "Include the raw short/long partition sheets")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored text output")

	cmd.Flags().Float64Var(&rc.threshold, "threshold", 0, "Duration threshold in ms separating short from long records")
	cmd.Flags().Float64Var(&rc.step, "step", 0, "Continuity step in ms tolerated as contiguous (negative disables)")
	cmd.Flags().BoolVar(&rc.includeRaw, "include-raw", false, "Count long pass-through records toward the summaries")
	cmd.Flags().BoolVar(&rc.dropEmpty, "drop-empty-aoi", false, "Drop records with an empty AOI label before merging")
	cmd.Flags().BoolVar(&rc.strict, "strict-empty", false, "Treat files with no records as errors")

	cmd.Flags().IntVarP(&rc.workers, "workers", "w", 0, "Number of files processed in parallel")
	cmd.Flags().BoolVar(&rc.watch, "watch", false, "Keep running, aggregating files as they appear")

	cmd.Flags().StringVar(&rc.pushGateway, "push-gateway", "", "Prometheus Pushgateway URL for batch counters")
	cmd.Flags().BoolVar(&rc.trace, "trace", false, "Write per-file spans to stderr")
	cmd.Flags().StringVar(&rc.sqlitePath, "sqlite", "", "SQLite database path for merged runs and summaries")
	cmd.Flags().StringSliceVar(&rc.brokers, "kafka-brokers", nil, "Kafka brokers for per-file summary events")
	cmd.Flags().StringVar(&rc.topic, "kafka-topic", "", "Kafka topic for per-file summary events")

	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Verbose logging")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := rc.loadConfig(cmd)
	if err != nil {
		return err
	}

	inputDir := rc.inputDir
	if len(args) > 0 {
		inputDir = args[0]
	}

	level := slog.LevelInfo
	switch {
	case rc.quiet:
		level = slog.LevelError
	case rc.verbose:
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	runner, err := batch.NewRunner(*cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if cfg.Batch.Watch {
		runErr = runner.Watch(ctx, inputDir)
		if runErr != nil && ctx.Err() != nil {
			runErr = nil // interrupted watch is a clean exit
		}
	} else {
		var res batch.Result
		res, runErr = runner.RunDir(ctx, inputDir)
		if runErr == nil {
			if !rc.quiet {
				rc.printSummary(cmd.ErrOrStderr(), res, cfg.Output.NoColor)
			}
			if res.Failed > 0 {
				runErr = fmt.Errorf("%d of %d file(s) failed", res.Failed, res.Failed+res.Processed)
			}
		}
	}

	closeErr := runner.Close(context.Background())
	if runErr != nil {
		return runErr
	}

	return closeErr
}

// loadConfig resolves the effective configuration: file and environment
// first, then explicit flag overrides.
func (rc *RunCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Dir = rc.outputDir
	}
	if flags.Changed("workbook") {
		cfg.Output.Workbook = rc.workbook
	}
	if flags.Changed("format") {
		cfg.Output.Format = rc.format
	}
	if flags.Changed("debug") {
		cfg.Output.Debug = rc.debug
	}
	if flags.Changed("no-color") {
		cfg.Output.NoColor = rc.noColor
	}
	if flags.Changed("threshold") {
		cfg.Aggregation.DurationThreshold = rc.threshold
	}
	if flags.Changed("step") {
		cfg.Aggregation.ContinuityStep = rc.step
	}
	if flags.Changed("include-raw") {
		cfg.Aggregation.IncludeRawInSummary = rc.includeRaw
	}
	if flags.Changed("drop-empty-aoi") {
		cfg.Aggregation.DropEmptyAOI = rc.dropEmpty
	}
	if flags.Changed("strict-empty") {
		cfg.Aggregation.StrictEmpty = rc.strict
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = rc.workers
	}
	if flags.Changed("watch") {
		cfg.Batch.Watch = rc.watch
	}
	if flags.Changed("push-gateway") {
		cfg.Metrics.PushGateway = rc.pushGateway
	}
	if flags.Changed("trace") {
		cfg.Metrics.Trace = rc.trace
	}
	if flags.Changed("sqlite") {
		cfg.Store.SQLitePath = rc.sqlitePath
	}
	if flags.Changed("kafka-brokers") {
		cfg.Kafka.Brokers = rc.brokers
	}
	if flags.Changed("kafka-topic") {
		cfg.Kafka.Topic = rc.topic
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Output.Format != "" {
		if err := report.ValidateFormat(cfg.Output.Format); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (rc *RunCommand) printSummary(w io.Writer, res batch.Result, noColor bool) {
	heading := color.New(color.FgCyan, color.Bold)
	if noColor {
		heading.DisableColor()
	}

	heading.Fprintf(w, "batch %s\n", res.BatchID)
	fmt.Fprintf(w, "processed %s file(s), %s failed in %s\n",
		humanize.Comma(int64(res.Processed)),
		humanize.Comma(int64(res.Failed)),
		res.Elapsed.Round(time.Millisecond))
}
