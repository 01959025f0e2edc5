package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/internal/pipeline"
	"github.com/ajitpratap0/recoconv/pkg/compression"
	"github.com/ajitpratap0/recoconv/pkg/config"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
	"github.com/ajitpratap0/recoconv/pkg/logger"
	"github.com/ajitpratap0/recoconv/pkg/metrics"
	"github.com/ajitpratap0/recoconv/pkg/observability"
	"github.com/ajitpratap0/recoconv/pkg/storage"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "recoconv",
		Short: "Convert reconstruction blocks into typed columnar record files",
		Long: `recoconv reads a per-run reconstruction block, drops skipped fields,
infers a row schema from the field shapes and types, and writes every event
as a fixed-layout record to an Arrow, Parquet, Avro or NumPy file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.BoolP("verbose", "v", false, "Log every dropped field, every type cast and the schema table")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "console", "Log encoding (console, json)")
	flags.String("region", "", "AWS region for s3:// locations")
	flags.String("credentials-file", "", "Google credentials file for gs:// locations")

	root.AddCommand(
		a.newConvertCmd(),
		a.newSchemaCmd(),
		a.newInspectCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// flagKeys maps command-line flags onto configuration keys. Several
// commands share a flag name, so flags are bound for the executing command
// only.
var flagKeys = map[string]string{
	"verbose":          "verbose",
	"log-level":        "log.level",
	"log-encoding":     "log.encoding",
	"input-format":     "input.format",
	"format":           "output.format",
	"compression":      "output.compression",
	"batch-size":       "output.batch_size",
	"compress":         "output.stream",
	"compress-level":   "output.stream_level",
	"skip":             "skip",
	"report":           "report",
	"metrics-textfile": "metrics.textfile",
	"trace":            "tracing.enabled",
	"region":           "cloud.region",
	"credentials-file": "cloud.credentials_file",
}

// bindFlags binds the flags of cmd to their configuration keys. A flag only
// overrides the file and environment when it is set on the command line.
func (a *app) bindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to bind flag").
				WithDetail("flag", name)
		}
	}
	return nil
}

// setup loads the layered configuration and installs the global logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.bindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to initialize logger")
	}
	a.cfg = cfg
	a.logger = logger.Get().With(zap.String("command", cmd.Name()))
	return nil
}

// converter builds a converter and its tracing provider from the loaded
// configuration. The returned function flushes spans.
func (a *app) converter() (*pipeline.Converter, func(context.Context) error, error) {
	cfg := a.cfg
	opts := pipeline.DefaultOptions()
	opts.InputFormat = cfg.Input.Format
	opts.Skip = cfg.SkipList()
	opts.Writer = columnar.WriterConfig{
		Format:      columnar.Format(cfg.Output.Format),
		Compression: cfg.Output.Compression,
		BatchSize:   cfg.Output.BatchSize,
	}

	algo, err := compression.ParseAlgorithm(cfg.Output.Stream)
	if err != nil {
		return nil, nil, err
	}
	level, err := compression.ParseLevel(cfg.Output.StreamLevel)
	if err != nil {
		return nil, nil, err
	}
	opts.Stream, opts.StreamLevel = algo, level

	opts.Storage = storage.Options{
		Region:          cfg.Cloud.Region,
		CredentialsFile: cfg.Cloud.CredentialsFile,
		PartSize:        int64(cfg.Cloud.PartSizeMB) << 20,
		Logger:          a.logger,
	}
	opts.Metrics = metrics.NewCollector()
	opts.MetricsTextfile = cfg.Metrics.Textfile

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.SamplingRate = cfg.Tracing.SampleRate
	tracingCfg.ServiceVersion = version
	tracingCfg.Writer = a.errOut
	tp, err := observability.NewProvider(tracingCfg)
	if err != nil {
		return nil, nil, err
	}
	opts.Tracing = tp

	return pipeline.NewConverter(opts, a.logger), tp.Shutdown, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recoconv v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
