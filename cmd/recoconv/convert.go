package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/internal/pipeline"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/storage"
)

func (a *app) newConvertCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a reconstruction block into a record file",
		Long: `Convert reads the block at <input>, drops the skip fields, infers the
schema and writes one record per event to <output>.

The output format and stream compression are taken from the output suffix
unless --format or --compress are given. <output> may be a local path, an
s3://bucket/key or a gs://bucket/object location.

Example:
  recoconv convert run_12/reco.json out/run_12.arrow
  recoconv convert merged_all.txt s3://runs/12/reco_events.npy.zst --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd.Context(), args[0], args[1], yes)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&yes, "yes", "y", false, "Overwrite an existing output without asking")
	flags.String("input-format", "", "Block reader (json, textdump); detected from the input extension when empty")
	flags.String("format", "", "Output format (arrow, parquet, avro, npy); detected from the output extension when empty")
	flags.String("compression", "", "Codec inside the record file (zstd, lz4, snappy, gzip, brotli, deflate)")
	flags.Int("batch-size", 10000, "Rows per record batch or row group")
	flags.String("compress", "none", "Compress the whole output stream (zstd, s2, snappy, lz4, gzip, deflate)")
	flags.String("compress-level", "default", "Stream compression level (fastest, default, better, best)")
	flags.StringSlice("skip", nil, "Fields to drop before inference; replaces the default skip list")
	flags.String("report", "", "Write a JSON conversion report to this path")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this node-exporter textfile")
	flags.Bool("trace", false, "Export stage spans to stderr")

	return cmd
}

func (a *app) runConvert(ctx context.Context, input, output string, yes bool) error {
	if info, err := os.Stat(input); err != nil || info.IsDir() {
		return recoerrors.New(recoerrors.ErrorTypeFile, "no file exists at input path").
			WithDetail("path", input)
	}

	target, err := storage.Open(ctx, output, storage.Options{
		Region:          a.cfg.Cloud.Region,
		CredentialsFile: a.cfg.Cloud.CredentialsFile,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}
	defer target.Close()

	if err := target.Check(ctx); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "invalid path of output file").
			WithDetail("path", output)
	}
	exists, err := target.Exists(ctx)
	if err != nil {
		return err
	}
	if exists && !yes {
		proceed, err := confirmOverwrite(a.in, a.out, output)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(a.out, "Aborting.")
			return nil
		}
	}

	conv, shutdown, err := a.converter()
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("failed to flush spans", zap.Error(err))
		}
	}()

	report, err := conv.Convert(ctx, input, output)
	if err != nil {
		return err
	}

	if a.cfg.Verbose {
		fmt.Fprint(a.out, report.Table)
	}
	fmt.Fprintf(a.out, "Wrote %d events (%d columns) to %s\n", report.Events, len(report.Columns), output)

	if a.cfg.Report != "" {
		if err := pipeline.WriteReport(a.cfg.Report, report); err != nil {
			return err
		}
	}
	return nil
}

// confirmOverwrite asks whether an existing output may be replaced. It asks
// again on any answer other than y or n; end of input counts as n.
func confirmOverwrite(in io.Reader, out io.Writer, path string) (bool, error) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "\nWARNING. A file already exists at '%s'\n", path)
		fmt.Fprintln(out, "This procedure will overwrite the file.")
		fmt.Fprint(out, "Proceed? (y/n): ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read answer")
			}
			fmt.Fprintln(out)
			return false, nil
		}

		switch answer := strings.ToLower(strings.TrimSpace(scanner.Text())); answer {
		case "y":
			return true, nil
		case "n":
			return false, nil
		default:
			fmt.Fprintf(out, "Invalid input: '%s'\n", answer)
		}
	}
}
