// Package config provides the configuration of a recoconv run.
//
// Values are layered: built-in defaults, an optional YAML file, RECOCONV_*
// environment variables and finally command-line flags bound to the
// viper instance. The configuration is organized into sections:
//   - Log: level, encoding and development mode of the zap logger
//   - Output: record file format, format-internal compression, batch size
//     and outer stream compression
//   - Metrics and Tracing: textfile path and span export
//   - Cloud: region and credentials for s3:// and gs:// outputs
//
// Example usage:
//
//	v := config.NewViper()
//	cfg, err := config.Load(v, "recoconv.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/recoconv/pkg/compression"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/filter"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
	"github.com/ajitpratap0/recoconv/pkg/logger"
)

// Config is the configuration of a conversion run.
type Config struct {
	// Log configures the zap logger
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Output controls the record file
	Output OutputConfig `yaml:"output" mapstructure:"output"`

	// Input selects the block reader. Empty detects it from the extension.
	Input InputConfig `yaml:"input" mapstructure:"input"`

	// Skip lists fields dropped before schema inference
	Skip []string `yaml:"skip" mapstructure:"skip"`

	// Verbose logs every dropped field, every cast and the diagnostic table
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// Report is an optional path for the JSON conversion report
	Report string `yaml:"report" mapstructure:"report"`

	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Cloud   CloudConfig   `yaml:"cloud" mapstructure:"cloud"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// OutputConfig contains record file settings
type OutputConfig struct {
	// Format is one of arrow, parquet, avro, npy. Empty detects it from
	// the output extension.
	Format string `yaml:"format" mapstructure:"format"`
	// Compression is the codec inside the record file (zstd, lz4, snappy...)
	Compression string `yaml:"compression" mapstructure:"compression"`
	// BatchSize is the number of rows per record batch
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// Stream compresses the whole file (zstd, s2, snappy, lz4, gzip, deflate)
	Stream string `yaml:"stream" mapstructure:"stream"`
	// StreamLevel is fastest, default, better or best
	StreamLevel string `yaml:"stream_level" mapstructure:"stream_level"`
}

// InputConfig contains block reader settings
type InputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path. Empty disables the export.
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// TracingConfig contains tracing settings
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// CloudConfig contains settings for cloud storage outputs
type CloudConfig struct {
	Region          string `yaml:"region" mapstructure:"region"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	PartSizeMB      int    `yaml:"part_size_mb" mapstructure:"part_size_mb"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Output: OutputConfig{
			BatchSize:   columnar.DefaultWriterConfig().BatchSize,
			Stream:      string(compression.None),
			StreamLevel: "default",
		},
		Skip: append([]string(nil), filter.DefaultSkipNames...),
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Cloud: CloudConfig{
			PartSizeMB: 8,
		},
	}
}

// Validate checks values that cannot be detected later. It returns a
// config error naming the offending key.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "invalid log level").
			WithDetail("key", "log.level")
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return recoerrors.New(recoerrors.ErrorTypeConfig, "log encoding must be json or console").
			WithDetail("key", "log.encoding")
	}
	if c.Output.Format != "" && !validFormat(c.Output.Format) {
		return recoerrors.New(recoerrors.ErrorTypeConfig, "unknown output format").
			WithDetail("key", "output.format").
			WithDetail("value", c.Output.Format).
			WithDetail("available", columnar.Formats())
	}
	if c.Output.BatchSize <= 0 {
		return recoerrors.New(recoerrors.ErrorTypeConfig, "batch_size must be positive").
			WithDetail("key", "output.batch_size")
	}
	if _, err := compression.ParseAlgorithm(c.Output.Stream); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "invalid stream compression").
			WithDetail("key", "output.stream")
	}
	if _, err := compression.ParseLevel(c.Output.StreamLevel); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "invalid stream compression level").
			WithDetail("key", "output.stream_level")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return recoerrors.New(recoerrors.ErrorTypeConfig, "sample_rate must be within [0, 1]").
			WithDetail("key", "tracing.sample_rate")
	}
	if c.Cloud.PartSizeMB < 5 {
		return recoerrors.New(recoerrors.ErrorTypeConfig, "part_size_mb must be at least 5").
			WithDetail("key", "cloud.part_size_mb")
	}
	return nil
}

// LoggerConfig returns the logger settings of c.
func (c *Config) LoggerConfig() logger.Config {
	level := c.Log.Level
	if c.Verbose {
		level = "debug"
	}
	return logger.Config{
		Level:       level,
		Encoding:    c.Log.Encoding,
		Development: c.Log.Development,
	}
}

// SkipList returns the configured skip list.
func (c *Config) SkipList() filter.SkipList {
	return filter.NewSkipList(c.Skip...)
}

func validFormat(name string) bool {
	for _, f := range columnar.Formats() {
		if string(f) == name {
			return true
		}
	}
	return false
}
