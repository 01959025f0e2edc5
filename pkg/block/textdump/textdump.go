// Package textdump reads the legacy human-readable reconstruction dump
// (merged_all.txt).
//
// The dump starts with six header lines. Line 2 lists field names, where a
// name ending in "(n)" or "(n,m)" spans several columns; line 3 lists one
// scanf-style format per column. Data rows follow, columns separated by two
// spaces. One-dimensional array fields become vector fields; fields with two
// or more declared dimensions are not loaded.
package textdump

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Format is the registered reader name.
const Format = "textdump"

const (
	headerLines = 6
	delimiter   = "  "
)

var dimsPattern = regexp.MustCompile(`\((.*)\)$`)

// formatTags are checked in order and the last one contained in a column
// format wins, so "%12.4e" resolves to "e".
var formatTags = []string{"s", "d", "f", "e"}

func init() {
	block.RegisterReader(Format, func(logger *zap.Logger) block.Reader { return NewReader(logger) }, ".txt", ".dat")
}

// Reader reads text dumps.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a text dump reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

type column struct {
	name  string
	tag   string
	start int
	width int
	rank  int
}

// Read implements block.Reader.
func (r *Reader) Read(ctx context.Context, path string) (*block.Block, error) {
	f, err := os.Open(path) //nolint:gosec // path is validated by the caller
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to open text dump").
			WithDetail("path", path)
	}
	defer f.Close()

	return r.Decode(ctx, f)
}

// Decode parses a text dump from an arbitrary stream.
func (r *Reader) Decode(ctx context.Context, src io.Reader) (*block.Block, error) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	header := make([]string, 0, headerLines)
	for len(header) < headerLines && sc.Scan() {
		header = append(header, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read text dump header")
	}
	if len(header) < 3 {
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "text dump header is truncated").
			WithDetail("lines", len(header))
	}

	columns, total, err := r.parseHeader(strings.Fields(header[1]), strings.Fields(header[2]))
	if err != nil {
		return nil, err
	}

	raw := make([][]string, len(columns))
	events := 0
	lineNo := len(header)
	for sc.Scan() {
		lineNo++
		if lineNo%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens := splitRow(line)
		if len(tokens) < total {
			return nil, recoerrors.New(recoerrors.ErrorTypeData, "row has fewer columns than the header declares").
				WithDetail("line", lineNo).
				WithDetail("columns", len(tokens)).
				WithDetail("expected", total)
		}
		for i, c := range columns {
			raw[i] = append(raw[i], tokens[c.start:c.start+c.width]...)
		}
		events++
	}
	if err := sc.Err(); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read text dump rows")
	}

	b := &block.Block{}
	for i, c := range columns {
		values, err := parseColumn(c.tag, raw[i])
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to parse column values").
				WithDetail("field", c.name).
				WithDetail("format", c.tag)
		}
		dims := []int{events}
		if c.rank == 1 {
			dims = append(dims, c.width)
		}
		if err := b.Add(&block.Field{Name: c.name, Tag: c.tag, Dims: dims, Values: values}); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("text dump parsed",
		zap.Int("fields", b.Len()),
		zap.Int("events", events))
	return b, nil
}

func (r *Reader) parseHeader(fields, formats []string) ([]column, int, error) {
	columns := make([]column, 0, len(fields))
	pos := 0
	for _, name := range fields {
		if pos >= len(formats) {
			return nil, 0, recoerrors.New(recoerrors.ErrorTypeData, "format line is shorter than the field line").
				WithDetail("field", name)
		}
		tag := formatTag(formats[pos])

		m := dimsPattern.FindStringSubmatch(name)
		if m == nil {
			columns = append(columns, column{name: name, tag: tag, start: pos, width: 1})
			pos++
			continue
		}

		dims, err := parseDims(m[1])
		if err != nil {
			return nil, 0, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "malformed field dimensions").
				WithDetail("field", name)
		}
		length := 1
		for _, d := range dims {
			length *= d
		}
		if pos+length > len(formats) {
			return nil, 0, recoerrors.New(recoerrors.ErrorTypeData, "format line is shorter than the field line").
				WithDetail("field", name)
		}
		for _, f := range formats[pos : pos+length] {
			if f != formats[pos] {
				return nil, 0, recoerrors.New(recoerrors.ErrorTypeUnsupportedSourceType, "mixed types in one field are not supported").
					WithDetail("field", name).
					WithDetail("formats", formats[pos:pos+length])
			}
		}

		if len(dims) == 1 {
			columns = append(columns, column{name: name, tag: tag, start: pos, width: length, rank: 1})
		} else {
			r.logger.Debug("skipping multidimensional field", zap.String("field", name), zap.Ints("dims", dims))
		}
		pos += length
	}
	return columns, pos, nil
}

func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, strconv.ErrRange
		}
		dims = append(dims, n)
	}
	return dims, nil
}

func formatTag(format string) string {
	tag := format
	for _, t := range formatTags {
		if strings.Contains(format, t) {
			tag = t
		}
	}
	return tag
}

// splitRow splits on the two-space delimiter. Runs of padding produce empty
// tokens, which are dropped.
func splitRow(line string) []string {
	parts := strings.Split(line, delimiter)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseColumn(tag string, raw []string) (any, error) {
	switch tag {
	case "d":
		out := make([]int32, len(raw))
		for i, s := range raw {
			n, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return nil, err
			}
			out[i] = int32(n)
		}
		return out, nil
	case "f", "e":
		out := make([]float64, len(raw))
		for i, s := range raw {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	default:
		out := make([]string, len(raw))
		copy(out, raw)
		return out, nil
	}
}
