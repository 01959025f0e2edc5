// Package pipeline orchestrates a conversion run: a block is read, skip
// fields are dropped, a schema is inferred, every event is re-encoded as a
// record and the record set is committed to its output location.
//
// # Basic Usage
//
//	conv := pipeline.NewConverter(pipeline.DefaultOptions(), logger)
//	report, err := conv.Convert(ctx, "run_12/reco.json", "out/run_12.arrow")
//	if err != nil {
//	    return err
//	}
//	fmt.Print(report.Table)
//
// A run either commits a complete record file or leaves nothing at the
// output location.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
	_ "github.com/ajitpratap0/recoconv/pkg/block/jsonblock" // register reader
	_ "github.com/ajitpratap0/recoconv/pkg/block/textdump"  // register reader
	"github.com/ajitpratap0/recoconv/pkg/compression"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/filter"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
	"github.com/ajitpratap0/recoconv/pkg/metrics"
	"github.com/ajitpratap0/recoconv/pkg/observability"
	"github.com/ajitpratap0/recoconv/pkg/schema"
	"github.com/ajitpratap0/recoconv/pkg/storage"
)

// Stage names used for spans, timings and metrics.
const (
	StageRead   = "read"
	StageFilter = "filter"
	StageInfer  = "infer"
	StageEncode = "encode"
	StageWrite  = "write"
)

// Options control a conversion run.
type Options struct {
	// InputFormat names a registered block reader. Empty detects it from
	// the input extension.
	InputFormat string
	// Skip lists fields dropped before inference
	Skip filter.SkipList
	// Transforms are the composite field transforms. Nil uses the defaults.
	Transforms *schema.Transforms
	// Writer configures the record file. An empty Format is detected from
	// the output extension.
	Writer columnar.WriterConfig
	// Stream compresses the whole record file. None falls back to the
	// output suffix, e.g. ".arrow.zst".
	Stream      compression.Algorithm
	StreamLevel compression.Level
	// Storage configures cloud targets
	Storage storage.Options
	// Metrics collects run statistics. Nil creates a private collector.
	Metrics *metrics.Collector
	// MetricsTextfile, when set, receives the collected metrics after the run
	MetricsTextfile string
	// Tracing exports stage spans. Nil disables tracing.
	Tracing *observability.Provider
}

// DefaultOptions returns options with the default skip list and batch size.
// The record format and stream compression are detected from the output
// suffix.
func DefaultOptions() *Options {
	return &Options{
		Skip:        filter.DefaultSkipList(),
		Writer:      columnar.WriterConfig{BatchSize: columnar.DefaultWriterConfig().BatchSize},
		StreamLevel: compression.Default,
	}
}

// Prepared is a block that passed filtering and inference.
type Prepared struct {
	Input   string
	Block   *block.Block
	Schema  *schema.Schema
	Dropped []string
	Timings Timings
}

// Converter runs conversions. A Converter may be reused for several runs
// but is not safe for concurrent use.
type Converter struct {
	opts    *Options
	logger  *zap.Logger
	metrics *metrics.Collector
	tracing *observability.Provider
}

// NewConverter creates a converter. Nil options use DefaultOptions.
func NewConverter(opts *Options, logger *zap.Logger) *Converter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewCollector()
	}
	tp := opts.Tracing
	if tp == nil {
		tp, _ = observability.NewProvider(observability.TracingConfig{})
	}
	if opts.Transforms == nil {
		opts.Transforms = schema.DefaultTransforms()
	}
	if opts.Storage.Logger == nil {
		opts.Storage.Logger = logger
	}
	return &Converter{opts: opts, logger: logger, metrics: m, tracing: tp}
}

// Metrics returns the converter's collector
func (c *Converter) Metrics() *metrics.Collector {
	return c.metrics
}

// Prepare reads input and runs the filter and inference stages. No output
// is produced.
func (c *Converter) Prepare(ctx context.Context, input string) (*Prepared, error) {
	p := &Prepared{Input: input}

	err := c.stage(ctx, StageRead, &p.Timings.Read, func(ctx context.Context, span *observability.Span) error {
		reader, err := block.OpenReader(c.opts.InputFormat, input, c.logger)
		if err != nil {
			return err
		}
		b, err := reader.Read(ctx, input)
		if err != nil {
			return err
		}
		p.Block = b
		span.SetAttribute("fields", b.Len())
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("time to read",
		zap.String("input", input),
		zap.Duration("duration", p.Timings.Read),
		zap.Int("fields", p.Block.Len()))

	_ = c.stage(ctx, StageFilter, &p.Timings.Filter, func(_ context.Context, span *observability.Span) error {
		p.Dropped = filter.Dropped(p.Block, c.opts.Skip)
		p.Block = filter.Apply(p.Block, c.opts.Skip, c.logger)
		span.SetAttribute("dropped", p.Dropped)
		return nil
	})
	c.metrics.RecordDropped(len(p.Dropped))

	err = c.stage(ctx, StageInfer, &p.Timings.Infer, func(_ context.Context, span *observability.Span) error {
		s, b, err := schema.Infer(p.Block,
			schema.WithLogger(c.logger),
			schema.WithTransforms(c.opts.Transforms))
		if err != nil {
			return err
		}
		p.Schema, p.Block = s, b
		span.SetAttribute("events", s.Events())
		span.SetAttribute("columns", s.Len())
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("inferred schema\n" + p.Schema.Table())
	return p, nil
}

// Convert runs every stage and commits the record file at output. On any
// error nothing is left at output.
func (c *Converter) Convert(ctx context.Context, input, output string) (report *Report, err error) {
	start := time.Now()
	format, algo, err := c.resolveOutput(output)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracing.StartStage(ctx, "convert")
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailure
		}
		events, cols := 0, 0
		if report != nil {
			events, cols = report.Events, len(report.Columns)
		}
		c.metrics.RecordConversion(string(format), status, events, cols)
		span.End(err)
		c.exportMetrics()
	}()

	p, err := c.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	timings := p.Timings

	var rs *encoder.RecordSet
	err = c.stage(ctx, StageEncode, &timings.Encode, func(_ context.Context, span *observability.Span) error {
		var err error
		rs, err = encoder.Encode(p.Block, p.Schema, encoder.WithLogger(c.logger))
		if err != nil {
			return err
		}
		span.SetAttribute("rows", rs.NumRows())
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("time to process events",
		zap.Int("events", rs.NumRows()),
		zap.Duration("duration", timings.Infer+timings.Encode))
	c.sampleMemory()

	var written int64
	err = c.stage(ctx, StageWrite, &timings.Write, func(ctx context.Context, span *observability.Span) error {
		var err error
		written, err = c.write(ctx, rs, output, format, algo)
		if err != nil {
			return err
		}
		span.SetAttribute("bytes", written)
		span.SetAttribute("format", string(format))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.RecordBytes(string(format), written)
	timings.Total = time.Since(start)
	c.metrics.RecordThroughput(rs.NumRows(), timings.Total)

	report = newReport(p, output, format, algo, written, timings)
	c.logger.Info("conversion completed",
		zap.String("output", output),
		zap.String("format", string(format)),
		zap.Int("events", report.Events),
		zap.Int("columns", len(report.Columns)),
		zap.Int64("bytes", written),
		zap.Duration("duration", timings.Total))
	return report, nil
}

// Inspect reads a record file back from location.
func (c *Converter) Inspect(ctx context.Context, location string) (*encoder.RecordSet, columnar.Format, error) {
	format, algo, err := c.resolveOutput(location)
	if err != nil {
		return nil, "", err
	}

	target, err := storage.Open(ctx, location, c.opts.Storage)
	if err != nil {
		return nil, "", err
	}
	defer target.Close()

	rc, err := target.Open(ctx)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	r, err := compression.NewReader(rc, algo)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	rs, err := columnar.ReadAll(r, format)
	if err != nil {
		return nil, "", err
	}
	return rs, format, nil
}

// resolveOutput picks the record format and stream compression for a
// location from the options, falling back to its file suffixes.
func (c *Converter) resolveOutput(location string) (columnar.Format, compression.Algorithm, error) {
	loc, err := storage.ParseLocation(location)
	if err != nil {
		return "", "", err
	}
	name := loc.Path
	if loc.Scheme != storage.Local {
		name = loc.Key
	}

	format, algo, ok := columnar.DetectPath(name)
	if c.opts.Writer.Format != "" {
		format, ok = c.opts.Writer.Format, true
	}
	if c.opts.Stream != "" && c.opts.Stream != compression.None {
		algo = c.opts.Stream
	}
	if !ok {
		return "", "", recoerrors.New(recoerrors.ErrorTypeConfig, "cannot detect output format from extension").
			WithDetail("output", location).
			WithDetail("available", columnar.Formats())
	}
	return format, algo, nil
}

func (c *Converter) write(ctx context.Context, rs *encoder.RecordSet, output string, format columnar.Format, algo compression.Algorithm) (int64, error) {
	target, err := storage.Open(ctx, output, c.opts.Storage)
	if err != nil {
		return 0, err
	}
	defer target.Close()

	obj, err := target.Create(ctx)
	if err != nil {
		return 0, err
	}

	n, err := writeRecords(obj, rs, c.opts.Writer, format, algo, c.opts.StreamLevel)
	if err != nil {
		_ = obj.Abort()
		return 0, err
	}
	if err := obj.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// writeRecords encodes rs into obj and returns the bytes that reached obj,
// after stream compression.
func writeRecords(obj storage.Object, rs *encoder.RecordSet, wcfg columnar.WriterConfig, format columnar.Format, algo compression.Algorithm, level compression.Level) (int64, error) {
	out := &countingWriter{w: obj}
	stream, err := compression.NewWriter(out, algo, level)
	if err != nil {
		return 0, err
	}

	wcfg.Format = format
	w, err := columnar.NewWriter(stream, &wcfg)
	if err != nil {
		_ = stream.Close()
		return 0, err
	}
	if err := w.Write(rs); err != nil {
		_ = stream.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		_ = stream.Close()
		return 0, err
	}
	if err := stream.Close(); err != nil {
		return 0, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to flush compressed output").
			WithDetail("algorithm", string(algo))
	}
	return out.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// stage runs fn inside a span, stores its duration in d and records it.
func (c *Converter) stage(ctx context.Context, name string, d *time.Duration, fn func(context.Context, *observability.Span) error) error {
	ctx, span := c.tracing.StartStage(ctx, name)
	timer := metrics.NewTimer(name)
	err := fn(ctx, span)
	*d = timer.Stop()
	span.End(err)
	c.metrics.ObserveStage(name, *d)
	return err
}

func (c *Converter) sampleMemory() {
	usage, err := observability.SampleResources()
	if err != nil {
		c.logger.Debug("process memory unavailable", zap.Error(err))
	}
	if usage == nil {
		return
	}
	c.metrics.RecordMemory(usage.MemoryRSS)
	c.logger.Debug("memory after row assembly",
		zap.Uint64("rss_bytes", usage.MemoryRSS),
		zap.Uint64("heap_bytes", usage.HeapAlloc))
}

func (c *Converter) exportMetrics() {
	if c.opts.MetricsTextfile == "" {
		return
	}
	if err := c.metrics.WriteTextfile(c.opts.MetricsTextfile); err != nil {
		c.logger.Warn("failed to export metrics", zap.Error(err))
	}
}
