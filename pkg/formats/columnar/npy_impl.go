package columnar

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ajitpratap0/recoconv/pkg/dtype"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

const (
	npyMagic     = "\x93NUMPY"
	npyAlignment = 64
)

// npyWriter implements Writer for NumPy structured arrays. The file is a
// one-dimensional array of packed little-endian records.
type npyWriter struct {
	writer         *countingWriter
	written        bool
	recordsWritten int64
}

func newNPYWriter(w *countingWriter, config *WriterConfig) (*npyWriter, error) {
	if c := strings.ToLower(config.Compression); c != "" && c != "none" {
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "NPY files have no internal compression").
			WithDetail("compression", config.Compression)
	}
	return &npyWriter{writer: w}, nil
}

func (nw *npyWriter) Write(rs *encoder.RecordSet) error {
	if nw.written {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "NPY writer already written")
	}
	nw.written = true

	bw := bufio.NewWriter(nw.writer)
	if _, err := bw.Write(npyHeader(rs.Schema())); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write NPY header")
	}

	columns := rs.Columns()
	var scratch [8]byte
	for i := 0; i < rs.NumRows(); i++ {
		for _, c := range columns {
			n := c.Descriptor.Elements()
			for k := i * n; k < (i+1)*n; k++ {
				if err := writeNPYElem(bw, scratch[:], c, k); err != nil {
					return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write NPY record").
						WithDetail("event", i)
				}
			}
		}
		nw.recordsWritten++
	}
	if err := bw.Flush(); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to flush NPY data")
	}
	return nil
}

func (nw *npyWriter) Close() error {
	return nil
}

func (nw *npyWriter) Format() Format {
	return NPY
}

func (nw *npyWriter) BytesWritten() int64 {
	return nw.writer.n
}

func (nw *npyWriter) RecordsWritten() int64 {
	return nw.recordsWritten
}

// npyHeader renders the magic, version and padded header dictionary.
func npyHeader(s *schema.Schema) []byte {
	var d strings.Builder
	d.WriteString("{'descr': [")
	for i, c := range s.Columns() {
		if i > 0 {
			d.WriteString(", ")
		}
		fmt.Fprintf(&d, "(%s, '%s'", pyString(c.Name), npyTypeCode(c.Descriptor.Type))
		if c.Descriptor.IsVector() {
			fmt.Fprintf(&d, ", (%d,)", c.Descriptor.Length)
		}
		d.WriteString(")")
	}
	fmt.Fprintf(&d, "], 'fortran_order': False, 'shape': (%d,), }", s.Events())

	dict := d.String()
	// version 1.0 stores the header length in two bytes
	major, prefix := byte(1), len(npyMagic)+2+2
	if prefix+len(dict)+1 > math.MaxUint16 {
		major, prefix = 2, len(npyMagic)+2+4
	}
	total := prefix + len(dict) + 1
	pad := (npyAlignment - total%npyAlignment) % npyAlignment
	hlen := len(dict) + pad + 1

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.WriteByte(major)
	buf.WriteByte(0)
	if major == 1 {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(hlen))
	} else {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(hlen))
	}
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", pad))
	buf.WriteByte('\n')
	return buf.Bytes()
}

func npyTypeCode(t dtype.OutputType) string {
	return "<" + t.String()
}

func pyString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

func writeNPYElem(w io.Writer, scratch []byte, c *encoder.Column, k int) error {
	t := c.Descriptor.Type
	var b []byte
	switch t {
	case dtype.Int16Out:
		b = binary.LittleEndian.AppendUint16(scratch[:0], uint16(int16(c.Ints[k])))
	case dtype.Int32Out:
		b = binary.LittleEndian.AppendUint32(scratch[:0], uint32(int32(c.Ints[k])))
	case dtype.Int64Out:
		b = binary.LittleEndian.AppendUint64(scratch[:0], uint64(c.Ints[k]))
	case dtype.Uint32Out:
		b = binary.LittleEndian.AppendUint32(scratch[:0], uint32(c.Ints[k]))
	case dtype.Float32Out:
		b = binary.LittleEndian.AppendUint32(scratch[:0], math.Float32bits(float32(c.Floats[k])))
	case dtype.Float64Out:
		b = binary.LittleEndian.AppendUint64(scratch[:0], math.Float64bits(c.Floats[k]))
	default:
		// fixed-width UCS-4, zero padded
		cell := make([]byte, t.ItemSize())
		i := 0
		for _, r := range c.Strs[k] {
			binary.LittleEndian.PutUint32(cell[i*4:], uint32(r))
			i++
		}
		b = cell
	}
	_, err := w.Write(b)
	return err
}

// npyReader implements Reader for NumPy structured arrays
type npyReader struct {
	r *bufio.Reader
}

func newNPYReader(r io.Reader) (*npyReader, error) {
	return &npyReader{r: bufio.NewReader(r)}, nil
}

var (
	npyFieldPattern = regexp.MustCompile(`\('((?:[^'\\]|\\.)*)',\s*'([<|=]?)([iufU])(\d+)'(?:,\s*\((\d+),?\))?\)`)
	npyShapePattern = regexp.MustCompile(`'shape':\s*\((\d+),?\s*\)`)
	npyUnescape     = strings.NewReplacer(`\\`, `\`, `\'`, `'`)
)

func (nr *npyReader) Read() (*encoder.RecordSet, error) {
	s, err := nr.readHeader()
	if err != nil {
		return nil, err
	}

	buffers := make([]*encoder.Column, s.Len())
	for j, c := range s.Columns() {
		buffers[j] = encoder.NewColumn(c.Name, c.Descriptor, s.Events())
	}

	for i := 0; i < s.Events(); i++ {
		for _, c := range buffers {
			for k := 0; k < c.Descriptor.Elements(); k++ {
				if err := nr.readElem(c); err != nil {
					return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read NPY record").
						WithDetail("event", i).
						WithDetail("column", c.Name)
				}
			}
		}
	}
	return encoder.NewRecordSet(s, buffers)
}

func (nr *npyReader) Format() Format {
	return NPY
}

func (nr *npyReader) readHeader() (*schema.Schema, error) {
	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(nr.r, magic); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read NPY magic")
	}
	if string(magic[:len(npyMagic)]) != npyMagic {
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "not an NPY file")
	}

	var hlen int
	switch major := magic[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(nr.r, binary.LittleEndian, &n); err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read NPY header length")
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(nr.r, binary.LittleEndian, &n); err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read NPY header length")
		}
		hlen = int(n)
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "unsupported NPY version").
			WithDetail("major", major)
	}

	header := make([]byte, hlen)
	if _, err := io.ReadFull(nr.r, header); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read NPY header")
	}
	return parseNPYHeader(string(header))
}

func parseNPYHeader(h string) (*schema.Schema, error) {
	if strings.Contains(h, "'fortran_order': True") {
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "Fortran-ordered NPY arrays are not supported")
	}
	shape := npyShapePattern.FindStringSubmatch(h)
	if shape == nil {
		return nil, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "NPY array is not one-dimensional").
			WithDetail("header", strings.TrimSpace(h))
	}
	events, err := strconv.Atoi(shape[1])
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "invalid NPY shape")
	}

	var columns []schema.Column
	for _, m := range npyFieldPattern.FindAllStringSubmatch(h, -1) {
		t, err := dtype.ParseOutputType(m[3] + m[4])
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeUnsupportedSourceType, "NPY field type has no output mapping").
				WithDetail("field", m[1]).
				WithDetail("type", m[2]+m[3]+m[4])
		}
		desc := dtype.Scalar(t)
		if m[5] != "" {
			n, err := strconv.Atoi(m[5])
			if err != nil || n <= 0 {
				return nil, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "invalid NPY subarray shape").
					WithDetail("field", m[1])
			}
			desc = dtype.Vector(t, n)
		}
		columns = append(columns, schema.Column{Name: npyUnescape.Replace(m[1]), Descriptor: desc})
	}
	if len(columns) == 0 {
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "NPY file is not a structured array")
	}
	return schema.New(events, columns...)
}

func (nr *npyReader) readElem(c *encoder.Column) error {
	t := c.Descriptor.Type
	buf := make([]byte, t.ItemSize())
	if _, err := io.ReadFull(nr.r, buf); err != nil {
		return err
	}
	switch t {
	case dtype.Int16Out:
		return c.AppendInt(int64(int16(binary.LittleEndian.Uint16(buf))))
	case dtype.Int32Out:
		return c.AppendInt(int64(int32(binary.LittleEndian.Uint32(buf))))
	case dtype.Int64Out:
		return c.AppendInt(int64(binary.LittleEndian.Uint64(buf)))
	case dtype.Uint32Out:
		return c.AppendInt(int64(binary.LittleEndian.Uint32(buf)))
	case dtype.Float32Out:
		return c.AppendFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))))
	case dtype.Float64Out:
		return c.AppendFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	default:
		var sb strings.Builder
		for i := 0; i+4 <= len(buf); i += 4 {
			r := binary.LittleEndian.Uint32(buf[i:])
			if r == 0 {
				break
			}
			sb.WriteRune(rune(r))
		}
		return c.AppendString(sb.String())
	}
}
