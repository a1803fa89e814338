package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".aoirun"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for aoirun settings.
const envPrefix = "AOIRUN"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default values applied before any config file or environment override.
const (
	DefaultDurationThreshold = 20.0
	DefaultContinuityStep    = 20.0
	DefaultSheet             = "TPL_rawFilter_metrics"
	DefaultOutputDir         = "output_data"
	DefaultWorkers           = 1
	DefaultMetricsJob        = "aoirun"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("aggregation.duration_threshold", DefaultDurationThreshold)
	viperCfg.SetDefault("aggregation.continuity_step", DefaultContinuityStep)
	viperCfg.SetDefault("aggregation.include_raw_in_summary", false)
	viperCfg.SetDefault("aggregation.drop_empty_aoi", false)
	viperCfg.SetDefault("aggregation.sort_records", true)
	viperCfg.SetDefault("aggregation.strict_empty", false)

	viperCfg.SetDefault("input.sheet", DefaultSheet)
	viperCfg.SetDefault("input.columns.recording", "Recording")
	viperCfg.SetDefault("input.columns.participant", "Participant")
	viperCfg.SetDefault("input.columns.position", "Position")
	viperCfg.SetDefault("input.columns.toi", "TOI")
	viperCfg.SetDefault("input.columns.interval", "Interval")
	viperCfg.SetDefault("input.columns.event_type", "Event_type")
	viperCfg.SetDefault("input.columns.validity", "Validity")
	viperCfg.SetDefault("input.columns.aoi", "AOI")
	viperCfg.SetDefault("input.columns.start", "Start")
	viperCfg.SetDefault("input.columns.duration", "Duration")

	viperCfg.SetDefault("batch.workers", DefaultWorkers)
	viperCfg.SetDefault("batch.watch", false)

	viperCfg.SetDefault("output.dir", DefaultOutputDir)
	viperCfg.SetDefault("output.workbook", WorkbookXLSX)
	viperCfg.SetDefault("output.format", "")
	viperCfg.SetDefault("output.debug", true)
	viperCfg.SetDefault("output.no_color", false)

	viperCfg.SetDefault("metrics.push_gateway", "")
	viperCfg.SetDefault("metrics.job", DefaultMetricsJob)
	viperCfg.SetDefault("metrics.trace", false)

	viperCfg.SetDefault("kafka.brokers", []string{})
	viperCfg.SetDefault("kafka.topic", "")

	viperCfg.SetDefault("store.sqlite_path", "")
}
