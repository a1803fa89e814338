// Package config defines the aoirun configuration model and its loader.
package config

import "errors"

// Config is the top-level configuration struct for aoirun.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Input       InputConfig       `mapstructure:"input"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Output      OutputConfig      `mapstructure:"output"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Store       StoreConfig       `mapstructure:"store"`
}

// AggregationConfig holds the run-construction thresholds.
type AggregationConfig struct {
	// DurationThreshold splits short from long records, in milliseconds.
	// Records at or below it are eligible for merging.
	DurationThreshold float64 `mapstructure:"duration_threshold"`
	// ContinuityStep is the additive fallback gap tolerated as contiguous,
	// in milliseconds. Negative disables the fallback.
	ContinuityStep float64 `mapstructure:"continuity_step"`
	// IncludeRawInSummary counts long pass-through records toward the AOI
	// summaries.
	IncludeRawInSummary bool `mapstructure:"include_raw_in_summary"`
	// DropEmptyAOI removes unlabeled records before run building instead
	// of letting them form runs of their own.
	DropEmptyAOI bool `mapstructure:"drop_empty_aoi"`
	// SortRecords sorts each context by start time before building; when
	// false, out-of-order input is an error.
	SortRecords bool `mapstructure:"sort_records"`
	// StrictEmpty makes a file with no records an error instead of an
	// empty result.
	StrictEmpty bool `mapstructure:"strict_empty"`
}

// InputConfig describes the worksheet layout of input files.
type InputConfig struct {
	// Sheet is the worksheet name read from each workbook.
	Sheet   string        `mapstructure:"sheet"`
	Columns ColumnsConfig `mapstructure:"columns"`
}

// ColumnsConfig maps the record fields to their source column headers.
type ColumnsConfig struct {
	Recording   string `mapstructure:"recording"`
	Participant string `mapstructure:"participant"`
	Position    string `mapstructure:"position"`
	TOI         string `mapstructure:"toi"`
	Interval    string `mapstructure:"interval"`
	EventType   string `mapstructure:"event_type"`
	Validity    string `mapstructure:"validity"`
	AOI         string `mapstructure:"aoi"`
	Start       string `mapstructure:"start"`
	Duration    string `mapstructure:"duration"`
}

// BatchConfig holds batch runner knobs.
type BatchConfig struct {
	// Workers is the number of files processed in parallel.
	Workers int `mapstructure:"workers"`
	// Watch keeps the runner alive, processing files as they appear.
	Watch bool `mapstructure:"watch"`
}

// Workbook output kinds.
const (
	WorkbookXLSX = "xlsx"
	WorkbookCSV  = "csv"
	WorkbookNone = "none"
)

// OutputConfig holds result destination settings.
type OutputConfig struct {
	// Dir receives one aggregated workbook per input file.
	Dir string `mapstructure:"dir"`
	// Workbook selects the workbook format: xlsx, csv, or none.
	Workbook string `mapstructure:"workbook"`
	// Format, when set, additionally renders each report to stdout
	// (text, json, yaml, bin, plot).
	Format string `mapstructure:"format"`
	// Debug includes the raw short/long partition sheets in the workbook.
	Debug bool `mapstructure:"debug"`
	// NoColor disables colored text output.
	NoColor bool `mapstructure:"no_color"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// PushGateway, when set, receives the batch counters after each run.
	PushGateway string `mapstructure:"push_gateway"`
	// Job is the Pushgateway job label.
	Job string `mapstructure:"job"`
	// Trace writes per-file spans to stderr.
	Trace bool `mapstructure:"trace"`
}

// KafkaConfig holds the optional summary emitter settings.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// StoreConfig holds the optional SQLite sink settings.
type StoreConfig struct {
	// SQLitePath, when set, receives merged runs and summaries.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidDurationThreshold indicates a non-positive duration threshold.
	ErrInvalidDurationThreshold = errors.New("aggregation.duration_threshold must be positive")
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("batch.workers must be non-negative")
	// ErrInvalidWorkbook indicates an unknown workbook format.
	ErrInvalidWorkbook = errors.New("output.workbook must be xlsx, csv, or none")
	// ErrMissingKafkaTopic indicates brokers were configured without a topic.
	ErrMissingKafkaTopic = errors.New("kafka.topic is required when kafka.brokers is set")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Aggregation.DurationThreshold <= 0 {
		return ErrInvalidDurationThreshold
	}

	if c.Batch.Workers < 0 {
		return ErrInvalidWorkers
	}

	switch c.Output.Workbook {
	case WorkbookXLSX, WorkbookCSV, WorkbookNone:
	default:
		return ErrInvalidWorkbook
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return ErrMissingKafkaTopic
	}

	return nil
}
