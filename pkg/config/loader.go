package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. RECOCONV_LOG_LEVEL.
const EnvPrefix = "RECOCONV"

// NewViper returns a viper instance carrying the defaults and reading
// RECOCONV_* environment variables. Callers bind their flags to it before
// calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key of cfg as a viper default. Keys that
// have no default are invisible to environment lookups during Unmarshal.
func SetDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.encoding", cfg.Log.Encoding)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("input.format", cfg.Input.Format)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.compression", cfg.Output.Compression)
	v.SetDefault("output.batch_size", cfg.Output.BatchSize)
	v.SetDefault("output.stream", cfg.Output.Stream)
	v.SetDefault("output.stream_level", cfg.Output.StreamLevel)
	v.SetDefault("skip", cfg.Skip)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("report", cfg.Report)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.SetDefault("cloud.region", cfg.Cloud.Region)
	v.SetDefault("cloud.credentials_file", cfg.Cloud.CredentialsFile)
	v.SetDefault("cloud.part_size_mb", cfg.Cloud.PartSizeMB)
}

// Load merges the YAML file at filePath, if any, into v and decodes the
// result. ${VAR} references in the file are replaced by environment
// values before parsing.
func Load(v *viper.Viper, filePath string) (*Config, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the --config flag
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", filePath)
		}

		v.SetConfigType("yaml")
		if err := v.MergeConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to parse config file").
				WithDetail("path", filePath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to decode configuration")
	}
	return cfg, nil
}

// Save writes cfg to filePath as YAML.
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
