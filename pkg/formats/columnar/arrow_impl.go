package columnar

import (
	"bytes"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/recoconv/pkg/dtype"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

// arrowWriter implements Writer for Arrow format
type arrowWriter struct {
	writer         *countingWriter
	config         *WriterConfig
	pool           memory.Allocator
	fileWriter     *ipc.FileWriter
	recordsWritten int64
}

func newArrowWriter(w *countingWriter, config *WriterConfig) (*arrowWriter, error) {
	switch strings.ToLower(config.Compression) {
	case "", "none", "zstd", "lz4":
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported Arrow compression").
			WithDetail("compression", config.Compression)
	}
	return &arrowWriter{
		writer: w,
		config: config,
		pool:   memory.NewGoAllocator(),
	}, nil
}

func (aw *arrowWriter) Write(rs *encoder.RecordSet) error {
	if aw.fileWriter != nil {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "Arrow writer already written")
	}
	arrowSchema := toArrowSchema(rs.Schema())

	opts := []ipc.Option{ipc.WithSchema(arrowSchema), ipc.WithAllocator(aw.pool)}
	switch strings.ToLower(aw.config.Compression) {
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	}
	fw, err := ipc.NewFileWriter(aw.writer, opts...)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to create Arrow writer")
	}
	aw.fileWriter = fw

	return batches(rs.NumRows(), aw.config.BatchSize, func(lo, hi int) error {
		rec, err := buildRecord(aw.pool, arrowSchema, rs, lo, hi)
		if err != nil {
			return err
		}
		defer rec.Release()

		if err := fw.Write(rec); err != nil {
			return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write record batch")
		}
		aw.recordsWritten += int64(hi - lo)
		return nil
	})
}

func (aw *arrowWriter) Close() error {
	if aw.fileWriter == nil {
		return nil
	}
	if err := aw.fileWriter.Close(); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to close Arrow writer")
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return Arrow
}

func (aw *arrowWriter) BytesWritten() int64 {
	return aw.writer.n
}

func (aw *arrowWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}

// arrowReader implements Reader for Arrow format
type arrowReader struct {
	data []byte
}

func newArrowReader(r io.Reader) (*arrowReader, error) {
	// ipc.FileReader needs a seekable reader
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read Arrow data")
	}
	return &arrowReader{data: data}, nil
}

func (ar *arrowReader) Read() (*encoder.RecordSet, error) {
	fr, err := ipc.NewFileReader(bytes.NewReader(ar.data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to open Arrow file")
	}
	defer fr.Close()

	chunks := make([][]arrow.Array, fr.Schema().NumFields())
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.RecordAt(i)
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read record batch").
				WithDetail("batch", i)
		}
		defer rec.Release()
		for j := range chunks {
			chunks[j] = append(chunks[j], rec.Column(j))
		}
	}
	return fromArrow(fr.Schema(), chunks)
}

func (ar *arrowReader) Format() Format {
	return Arrow
}

func toArrowType(d dtype.Descriptor) arrow.DataType {
	elem := arrowElemType(d)
	if d.IsVector() {
		return arrow.FixedSizeListOf(int32(d.Length), elem)
	}
	return elem
}

func arrowElemType(d dtype.Descriptor) arrow.DataType {
	var elem arrow.DataType
	switch d.Type {
	case dtype.Int16Out:
		elem = arrow.PrimitiveTypes.Int16
	case dtype.Int32Out:
		elem = arrow.PrimitiveTypes.Int32
	case dtype.Int64Out:
		elem = arrow.PrimitiveTypes.Int64
	case dtype.Uint32Out:
		elem = arrow.PrimitiveTypes.Uint32
	case dtype.Float32Out:
		elem = arrow.PrimitiveTypes.Float32
	case dtype.Float64Out:
		elem = arrow.PrimitiveTypes.Float64
	default:
		elem = arrow.BinaryTypes.String
	}
	return elem
}

func toArrowSchema(s *schema.Schema) *arrow.Schema {
	return arrowSchemaOf(s, toArrowType)
}

// toParquetSchema stores vectors as lists of required elements. Their fixed
// length is kept in the DtypeKey metadata.
func toParquetSchema(s *schema.Schema) *arrow.Schema {
	return arrowSchemaOf(s, func(d dtype.Descriptor) arrow.DataType {
		if d.IsVector() {
			return arrow.ListOfNonNullable(arrowElemType(d))
		}
		return arrowElemType(d)
	})
}

func arrowSchemaOf(s *schema.Schema, typeOf func(dtype.Descriptor) arrow.DataType) *arrow.Schema {
	fields := make([]arrow.Field, s.Len())
	for i, c := range s.Columns() {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     typeOf(c.Descriptor),
			Nullable: false,
			Metadata: arrow.NewMetadata([]string{DtypeKey}, []string{c.Descriptor.String()}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// descriptorOf recovers a column descriptor from field metadata, falling
// back to the Arrow type for files written by other tools.
func descriptorOf(f arrow.Field) (dtype.Descriptor, error) {
	if i := f.Metadata.FindKey(DtypeKey); i >= 0 {
		return dtype.ParseDescriptor(f.Metadata.Values()[i])
	}

	typ := f.Type
	length := 0
	switch lt := typ.(type) {
	case *arrow.FixedSizeListType:
		typ, length = lt.Elem(), int(lt.Len())
	case *arrow.ListType:
		// resolved from the data by fromArrow
		typ, length = lt.Elem(), -1
	}
	var out dtype.OutputType
	switch typ.ID() {
	case arrow.INT16:
		out = dtype.Int16Out
	case arrow.INT32:
		out = dtype.Int32Out
	case arrow.INT64:
		out = dtype.Int64Out
	case arrow.UINT32:
		out = dtype.Uint32Out
	case arrow.FLOAT32:
		out = dtype.Float32Out
	case arrow.FLOAT64:
		out = dtype.Float64Out
	case arrow.STRING, arrow.LARGE_STRING:
		out = dtype.String12
	default:
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedSourceType, "column type has no descriptor").
			WithDetail("column", f.Name).
			WithDetail("arrow_type", f.Type.String())
	}
	return dtype.Descriptor{Type: out, Length: length}, nil
}

// buildRecord builds one record batch holding rows [lo, hi) of rs.
func buildRecord(mem memory.Allocator, as *arrow.Schema, rs *encoder.RecordSet, lo, hi int) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, as)
	defer rb.Release()

	for j, col := range rs.Columns() {
		builder := rb.Field(j)
		if lb, ok := builder.(array.ListLikeBuilder); ok {
			n := col.Descriptor.Length
			vb := lb.ValueBuilder()
			for i := lo; i < hi; i++ {
				lb.Append(true)
				if err := appendElems(vb, col, i*n, (i+1)*n); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := appendElems(builder, col, lo, hi); err != nil {
			return nil, err
		}
	}
	return rb.NewRecord(), nil
}

func appendElems(builder array.Builder, col *encoder.Column, lo, hi int) error {
	switch b := builder.(type) {
	case *array.Int16Builder:
		for _, v := range col.Ints[lo:hi] {
			b.Append(int16(v))
		}
	case *array.Int32Builder:
		for _, v := range col.Ints[lo:hi] {
			b.Append(int32(v))
		}
	case *array.Int64Builder:
		b.AppendValues(col.Ints[lo:hi], nil)
	case *array.Uint32Builder:
		for _, v := range col.Ints[lo:hi] {
			b.Append(uint32(v))
		}
	case *array.Float32Builder:
		for _, v := range col.Floats[lo:hi] {
			b.Append(float32(v))
		}
	case *array.Float64Builder:
		b.AppendValues(col.Floats[lo:hi], nil)
	case *array.StringBuilder:
		b.AppendValues(col.Strs[lo:hi], nil)
	default:
		return recoerrors.Newf(recoerrors.ErrorTypeUnsupportedValueType, "unsupported builder type: %T", builder).
			WithDetail("column", col.Name)
	}
	return nil
}

// fromArrow rebuilds a record set from per-column array chunks.
func fromArrow(as *arrow.Schema, chunks [][]arrow.Array) (*encoder.RecordSet, error) {
	events := -1
	columns := make([]schema.Column, as.NumFields())
	buffers := make([]*encoder.Column, as.NumFields())

	for j, f := range as.Fields() {
		desc, err := descriptorOf(f)
		if err != nil {
			return nil, err
		}
		rows := 0
		for _, c := range chunks[j] {
			rows += c.Len()
		}
		if desc.Length < 0 {
			if desc.Length, err = listLength(f.Name, chunks[j]); err != nil {
				return nil, err
			}
		}
		if events < 0 {
			events = rows
		}
		columns[j] = schema.Column{Name: f.Name, Descriptor: desc}
		buffers[j] = encoder.NewColumn(f.Name, desc, rows)

		for _, c := range chunks[j] {
			if err := readArray(buffers[j], c); err != nil {
				return nil, err
			}
		}
	}
	if events < 0 {
		events = 0
	}

	s, err := schema.New(events, columns...)
	if err != nil {
		return nil, err
	}
	return encoder.NewRecordSet(s, buffers)
}

// listLength returns the element count of the first row of a variable
// list column.
func listLength(name string, chunks []arrow.Array) (int, error) {
	for _, c := range chunks {
		list, ok := c.(array.ListLike)
		if !ok || list.Len() == 0 {
			continue
		}
		start, end := list.ValueOffsets(0)
		if end > start {
			return int(end - start), nil
		}
	}
	return 0, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "cannot determine vector length").
		WithDetail("column", name)
}

// readArray appends every element of arr to col. List-typed arrays are
// flattened row by row and must hold exactly the column's vector length.
func readArray(col *encoder.Column, arr arrow.Array) error {
	if list, ok := arr.(array.ListLike); ok {
		values := list.ListValues()
		for i := 0; i < list.Len(); i++ {
			start, end := list.ValueOffsets(i)
			if int(end-start) != col.Descriptor.Length {
				return recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "vector length does not match descriptor").
					WithDetail("column", col.Name).
					WithDetail("length", end-start).
					WithDetail("descriptor", col.Descriptor.String())
			}
			if err := readElems(col, values, int(start), int(end)); err != nil {
				return err
			}
		}
		return nil
	}
	return readElems(col, arr, 0, arr.Len())
}

func readElems(col *encoder.Column, arr arrow.Array, lo, hi int) error {
	for i := lo; i < hi; i++ {
		if arr.IsNull(i) {
			return recoerrors.New(recoerrors.ErrorTypeData, "null value in record column").
				WithDetail("column", col.Name)
		}
		var err error
		switch a := arr.(type) {
		case *array.Int16:
			err = col.AppendInt(int64(a.Value(i)))
		case *array.Int32:
			err = col.AppendInt(int64(a.Value(i)))
		case *array.Int64:
			err = col.AppendInt(a.Value(i))
		case *array.Uint32:
			err = col.AppendInt(int64(a.Value(i)))
		case *array.Float32:
			err = col.AppendFloat(float64(a.Value(i)))
		case *array.Float64:
			err = col.AppendFloat(a.Value(i))
		case *array.String:
			err = col.AppendString(a.Value(i))
		case *array.LargeString:
			err = col.AppendString(a.Value(i))
		default:
			return recoerrors.New(recoerrors.ErrorTypeUnsupportedValueType, "unsupported array type").
				WithDetail("column", col.Name).
				WithDetail("arrow_type", arr.DataType().String())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
