// Package jsonblock reads and writes blocks as JSON documents:
//
//	{"fields": [
//	  {"name": "runid", "dtype": "int32", "values": [[12, 7], [12, 8]]},
//	  {"name": "energy", "dtype": "float64", "values": [1.5, 2.5]}
//	]}
//
// Field order in the document is the block order. Shapes are taken from the
// nesting of "values"; ragged nesting is rejected.
package jsonblock

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Format is the registered reader name.
const Format = "json"

func init() {
	block.RegisterReader(Format, func(logger *zap.Logger) block.Reader { return NewReader(logger) }, ".json")
}

type document struct {
	Fields []fieldDoc `json:"fields"`
}

type fieldDoc struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Values any    `json:"values"`
}

// Reader reads JSON block documents.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a JSON block reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Read implements block.Reader.
func (r *Reader) Read(ctx context.Context, path string) (*block.Block, error) {
	f, err := os.Open(path) //nolint:gosec // path is validated by the caller
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to open block file").
			WithDetail("path", path)
	}
	defer f.Close()

	return r.Decode(ctx, f)
}

// Decode reads a block document from an arbitrary stream.
func (r *Reader) Decode(ctx context.Context, src io.Reader) (*block.Block, error) {
	dec := json.NewDecoder(src)
	dec.UseNumber()

	var doc document
	if err := dec.DecodeContext(ctx, &doc); err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to parse JSON block")
	}

	b := &block.Block{}
	for _, fd := range doc.Fields {
		field, err := decodeField(fd)
		if err != nil {
			return nil, err
		}
		if err := b.Add(field); err != nil {
			return nil, err
		}
		r.logger.Debug("field loaded",
			zap.String("field", field.Name),
			zap.String("dtype", field.Tag),
			zap.Ints("dims", field.Dims))
	}
	return b, nil
}

func decodeField(fd fieldDoc) (*block.Field, error) {
	if fd.Name == "" {
		return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "field without a name")
	}

	dims, err := shapeOf(fd.Values)
	var flat []any
	if err == nil {
		err = collect(fd.Values, dims, &flat)
	}
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "malformed field values").
			WithDetail("field", fd.Name)
	}

	values, err := typed(fd.DType, flat)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "field values do not match dtype").
			WithDetail("field", fd.Name).
			WithDetail("dtype", fd.DType)
	}

	return &block.Field{Name: fd.Name, Tag: fd.DType, Dims: dims, Values: values}, nil
}

// shapeOf follows the first element of each nesting level.
func shapeOf(v any) ([]int, error) {
	if _, ok := v.([]any); !ok {
		return nil, fmt.Errorf("values must be an array")
	}
	var dims []int
	for {
		arr, ok := v.([]any)
		if !ok {
			return dims, nil
		}
		dims = append(dims, len(arr))
		if len(arr) == 0 {
			return dims, nil
		}
		v = arr[0]
	}
}

// collect appends the leaves of v to out, checking every level against dims.
func collect(v any, dims []int, out *[]any) error {
	if len(dims) == 0 {
		if _, ok := v.([]any); ok {
			return fmt.Errorf("ragged nesting")
		}
		*out = append(*out, v)
		return nil
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != dims[0] {
		return fmt.Errorf("ragged nesting: expected %d elements", dims[0])
	}
	for _, item := range arr {
		if err := collect(item, dims[1:], out); err != nil {
			return err
		}
	}
	return nil
}

// typed converts decoded JSON scalars into the Go element type the dtype
// stores its values in. Tags without a mapping are still materialized, as
// float64 or string, so that schema inference can report them.
func typed(tag string, flat []any) (any, error) {
	storage := ""
	if st, err := dtype.ParseSourceType(tag); err == nil {
		storage = st.Storage()
	}

	switch storage {
	case "int8":
		return parseInts[int8](flat, 8)
	case "int16":
		return parseInts[int16](flat, 16)
	case "int32":
		return parseInts[int32](flat, 32)
	case "int64":
		return parseInts[int64](flat, 64)
	case "uint32":
		out := make([]uint32, len(flat))
		for i, v := range flat {
			n, err := number(v)
			if err != nil {
				return nil, err
			}
			u, err := strconv.ParseUint(n.String(), 10, 32)
			if err != nil {
				return nil, err
			}
			out[i] = uint32(u)
		}
		return out, nil
	case "float64":
		return parseFloats(flat)
	case "string":
		return parseStrings(flat)
	}

	if len(flat) > 0 {
		if _, ok := flat[0].(string); ok {
			return parseStrings(flat)
		}
	}
	return parseFloats(flat)
}

func parseInts[T int8 | int16 | int32 | int64](flat []any, bits int) ([]T, error) {
	out := make([]T, len(flat))
	for i, v := range flat {
		n, err := number(v)
		if err != nil {
			return nil, err
		}
		x, err := strconv.ParseInt(n.String(), 10, bits)
		if err != nil {
			return nil, err
		}
		out[i] = T(x)
	}
	return out, nil
}

func parseFloats(flat []any) ([]float64, error) {
	out := make([]float64, len(flat))
	for i, v := range flat {
		n, err := number(v)
		if err != nil {
			return nil, err
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func parseStrings(flat []any) ([]string, error) {
	out := make([]string, len(flat))
	for i, v := range flat {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want string", i, v)
		}
		out[i] = s
	}
	return out, nil
}

func number(v any) (json.Number, error) {
	n, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("element is %T, want number", v)
	}
	return n, nil
}

// Write encodes b as a JSON block document.
func Write(w io.Writer, b *block.Block) error {
	doc := document{Fields: make([]fieldDoc, 0, b.Len())}
	for _, f := range b.Fields() {
		nested, err := nest(f)
		if err != nil {
			return err
		}
		doc.Fields = append(doc.Fields, fieldDoc{Name: f.Name, DType: f.Tag, Values: nested})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to encode JSON block")
	}
	return nil
}

func nest(f *block.Field) (any, error) {
	v := reflect.ValueOf(f.Values)
	if v.Kind() != reflect.Slice {
		return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "field values are not a slice").
			WithDetail("field", f.Name)
	}
	total := 1
	for _, d := range f.Dims {
		total *= d
	}
	if len(f.Dims) == 0 || total != v.Len() {
		return nil, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "field dims do not match value count").
			WithDetail("field", f.Name).
			WithDetail("dims", f.Dims)
	}
	nested, _ := nestLevel(v, f.Dims, 0)
	return nested, nil
}

func nestLevel(v reflect.Value, dims []int, offset int) (any, int) {
	out := make([]any, dims[0])
	for i := range out {
		if len(dims) == 1 {
			out[i] = v.Index(offset).Interface()
			offset++
			continue
		}
		out[i], offset = nestLevel(v, dims[1:], offset)
	}
	return out, offset
}
