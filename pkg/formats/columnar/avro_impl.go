package columnar

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/recoconv/pkg/dtype"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

// avroColumnsKey is the OCF metadata key listing original column names and
// descriptors. Avro field names cannot carry characters such as "(".
const avroColumnsKey = "recoconv.columns"

type avroColumn struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	Dtype string `json:"dtype"`
}

// avroWriter implements Writer for Avro format
type avroWriter struct {
	writer         *countingWriter
	config         *WriterConfig
	compression    string
	written        bool
	recordsWritten int64
}

func newAvroWriter(w *countingWriter, config *WriterConfig) (*avroWriter, error) {
	compression, err := getAvroCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return &avroWriter{writer: w, config: config, compression: compression}, nil
}

func (aw *avroWriter) Write(rs *encoder.RecordSet) error {
	if aw.written {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "Avro writer already written")
	}
	aw.written = true

	s := rs.Schema()
	cols := avroColumns(s)
	avroSchema, err := toAvroSchema(s, cols)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to create Avro codec")
	}
	meta, err := json.Marshal(cols)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to encode column metadata")
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               aw.writer,
		Codec:           codec,
		CompressionName: aw.compression,
		MetaData:        map[string][]byte{avroColumnsKey: meta},
	})
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to create Avro writer")
	}

	columns := rs.Columns()
	return batches(rs.NumRows(), aw.config.BatchSize, func(lo, hi int) error {
		if lo == hi {
			return nil
		}
		data := make([]interface{}, 0, hi-lo)
		for i := lo; i < hi; i++ {
			datum := make(map[string]interface{}, len(columns))
			for j, c := range columns {
				datum[cols[j].Field] = avroValue(c, i)
			}
			data = append(data, datum)
		}
		if err := ocfWriter.Append(data); err != nil {
			return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write Avro block")
		}
		aw.recordsWritten += int64(hi - lo)
		return nil
	})
}

// Close is a no-op: every Append writes a complete OCF block.
func (aw *avroWriter) Close() error {
	return nil
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) BytesWritten() int64 {
	return aw.writer.n
}

func (aw *avroWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}

// avroReader implements Reader for Avro format
type avroReader struct {
	ocfReader *goavro.OCFReader
}

func newAvroReader(r io.Reader) (*avroReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read Avro data")
	}
	ocfReader, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to create Avro reader")
	}
	return &avroReader{ocfReader: ocfReader}, nil
}

func (ar *avroReader) Read() (*encoder.RecordSet, error) {
	raw, ok := ar.ocfReader.MetaData()[avroColumnsKey]
	if !ok {
		return nil, recoerrors.New(recoerrors.ErrorTypeData, "Avro file has no column metadata").
			WithDetail("key", avroColumnsKey)
	}
	var cols []avroColumn
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to decode column metadata")
	}

	columns := make([]schema.Column, len(cols))
	buffers := make([]*encoder.Column, len(cols))
	for j, c := range cols {
		desc, err := dtype.ParseDescriptor(c.Dtype)
		if err != nil {
			return nil, err
		}
		columns[j] = schema.Column{Name: c.Name, Descriptor: desc}
		buffers[j] = encoder.NewColumn(c.Name, desc, 0)
	}

	events := 0
	for ar.ocfReader.Scan() {
		datum, err := ar.ocfReader.Read()
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read Avro record").
				WithDetail("event", events)
		}
		record, ok := datum.(map[string]interface{})
		if !ok {
			return nil, recoerrors.Newf(recoerrors.ErrorTypeData, "unexpected Avro datum %T", datum)
		}
		for j, c := range cols {
			if err := appendAvroValue(buffers[j], record[c.Field]); err != nil {
				return nil, err
			}
		}
		events++
	}
	if err := ar.ocfReader.Err(); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to scan Avro file")
	}

	s, err := schema.New(events, columns...)
	if err != nil {
		return nil, err
	}
	return encoder.NewRecordSet(s, buffers)
}

func (ar *avroReader) Format() Format {
	return Avro
}

var avroNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_]`)

// avroColumns assigns each column a valid, unique Avro field name.
func avroColumns(s *schema.Schema) []avroColumn {
	used := make(map[string]bool, s.Len())
	cols := make([]avroColumn, 0, s.Len())
	for _, c := range s.Columns() {
		field := avroNameInvalid.ReplaceAllString(c.Name, "_")
		if field == "" || (field[0] >= '0' && field[0] <= '9') {
			field = "_" + field
		}
		base := field
		for n := 1; used[field]; n++ {
			field = fmt.Sprintf("%s_%d", base, n)
		}
		used[field] = true
		cols = append(cols, avroColumn{Name: c.Name, Field: field, Dtype: c.Descriptor.String()})
	}
	return cols
}

func toAvroSchema(s *schema.Schema, cols []avroColumn) (string, error) {
	fields := make([]map[string]interface{}, 0, s.Len())
	for j, c := range s.Columns() {
		var avroType interface{} = toAvroType(c.Descriptor.Type)
		if c.Descriptor.IsVector() {
			avroType = map[string]interface{}{"type": "array", "items": avroType}
		}
		fields = append(fields, map[string]interface{}{
			"name": cols[j].Field,
			"type": avroType,
		})
	}

	b, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "event",
		"fields": fields,
	})
	if err != nil {
		return "", recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to encode Avro schema")
	}
	return string(b), nil
}

func toAvroType(t dtype.OutputType) string {
	switch t {
	case dtype.Int16Out, dtype.Int32Out:
		return "int"
	case dtype.Int64Out, dtype.Uint32Out:
		return "long"
	case dtype.Float32Out:
		return "float"
	case dtype.Float64Out:
		return "double"
	default:
		return "string"
	}
}

// avroValue returns row i of c in goavro's native representation.
func avroValue(c *encoder.Column, i int) interface{} {
	if !c.Descriptor.IsVector() {
		return avroElem(c, i)
	}
	n := c.Descriptor.Length
	items := make([]interface{}, n)
	for k := 0; k < n; k++ {
		items[k] = avroElem(c, i*n+k)
	}
	return items
}

func avroElem(c *encoder.Column, i int) interface{} {
	switch c.Descriptor.Type {
	case dtype.Int16Out, dtype.Int32Out:
		return int32(c.Ints[i])
	case dtype.Int64Out, dtype.Uint32Out:
		return c.Ints[i]
	case dtype.Float32Out:
		return float32(c.Floats[i])
	case dtype.Float64Out:
		return c.Floats[i]
	default:
		return c.Strs[i]
	}
}

func appendAvroValue(c *encoder.Column, v interface{}) error {
	if !c.Descriptor.IsVector() {
		return appendAvroElem(c, v)
	}
	items, ok := v.([]interface{})
	if !ok || len(items) != c.Descriptor.Length {
		return recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "vector length does not match descriptor").
			WithDetail("column", c.Name).
			WithDetail("descriptor", c.Descriptor.String())
	}
	for _, item := range items {
		if err := appendAvroElem(c, item); err != nil {
			return err
		}
	}
	return nil
}

func appendAvroElem(c *encoder.Column, v interface{}) error {
	switch x := v.(type) {
	case int32:
		return c.AppendInt(int64(x))
	case int64:
		return c.AppendInt(x)
	case float32:
		return c.AppendFloat(float64(x))
	case float64:
		return c.AppendFloat(x)
	case string:
		return c.AppendString(x)
	default:
		return recoerrors.Newf(recoerrors.ErrorTypeUnsupportedValueType, "unexpected Avro value %T", v).
			WithDetail("column", c.Name)
	}
}

func getAvroCompression(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return goavro.CompressionNullLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	default:
		return "", recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported Avro compression").
			WithDetail("compression", name)
	}
}
