package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/recoconv/pkg/config"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

func (a *app) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <input>",
		Short: "Print the schema a block converts to, without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, shutdown, err := a.converter()
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()
			p, err := conv.Prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Events: %d\n", p.Schema.Events())
			if len(p.Dropped) > 0 {
				fmt.Fprintf(a.out, "Dropped: %s\n", strings.Join(p.Dropped, ", "))
			}
			fmt.Fprint(a.out, p.Schema.Table())
			return nil
		},
	}
	cmd.Flags().String("input-format", "", "Block reader (json, textdump); detected from the input extension when empty")
	cmd.Flags().StringSlice("skip", nil, "Fields to drop before inference; replaces the default skip list")
	return cmd
}

func (a *app) newInspectCmd() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Read a record file back and print its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, shutdown, err := a.converter()
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()
			rs, format, err := conv.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			s := rs.Schema()
			fmt.Fprintf(a.out, "Format: %s\n", columnar.GetFormatInfo(format).Name)
			fmt.Fprintf(a.out, "Records: %d\n", rs.NumRows())
			fmt.Fprint(a.out, schema.FormatTable(s.Names(), s.Types()))
			for i := 0; i < rows && i < rs.NumRows(); i++ {
				fmt.Fprintf(a.out, "%v\n", []any(rs.Row(i)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Print the first n records")
	cmd.Flags().String("format", "", "Record format; detected from the file extension when empty")
	cmd.Flags().String("compress", "none", "Stream compression of the file; detected from the file extension when none")
	return cmd
}

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "recoconv.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return recoerrors.New(recoerrors.ErrorTypeFile, "config file already exists; use --force to replace it").
					WithDetail("path", path)
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

// userMessage renders err for the terminal. Conversion failures name the
// stage rule that rejected the block.
func userMessage(err error) string {
	var prefix string
	switch {
	case recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedShape):
		prefix = "Unsupported field shape"
	case recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedSourceType):
		prefix = "Unsupported source type"
	case recoerrors.IsType(err, recoerrors.ErrorTypeInconsistentEventCount):
		prefix = "Fields disagree on the number of events"
	case recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedValueType):
		prefix = "Unsupported value type"
	case recoerrors.IsType(err, recoerrors.ErrorTypeValueOverflow):
		prefix = "Value does not fit its column"
	case recoerrors.IsType(err, recoerrors.ErrorTypeConfig):
		prefix = "Configuration error"
	default:
		prefix = "Error"
	}
	return fmt.Sprintf("%s: %v\nAborting.", prefix, err)
}
