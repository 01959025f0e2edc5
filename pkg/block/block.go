// Package block models one per-run data block: an ordered mapping from field
// name to a typed array holding one scalar or one fixed-width vector per
// event.
//
// Values are kept flat in row-major order, the way the block reader
// materializes them, with Dims describing the shape. A scalar field has
// Dims == [events]; a vector field has Dims == [events, width].
package block

import (
	"fmt"
	"reflect"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Element is the set of element types readers materialize.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64 | ~string
}

// Field is a named column of a block.
type Field struct {
	// Name is unique within the block.
	Name string
	// Tag is the source type tag reported by the reader, e.g. "int32" or
	// "f". It is resolved against the type mapping table during schema
	// inference, not here.
	Tag string
	// Dims is the array shape, outermost (event) dimension first.
	Dims []int
	// Values is a flat slice of one of the Element types.
	Values any
}

// NewScalar builds a one-value-per-event field.
func NewScalar[T Element](name, tag string, values []T) *Field {
	return &Field{Name: name, Tag: tag, Dims: []int{len(values)}, Values: values}
}

// NewVector builds a fixed-width vector field from per-event rows. Rows must
// all have the same length; the width of the first row is used.
func NewVector[T Element](name, tag string, rows [][]T) *Field {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	flat := make([]T, 0, len(rows)*width)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return &Field{Name: name, Tag: tag, Dims: []int{len(rows), width}, Values: flat}
}

// Events returns the outermost length, or 0 for a dimensionless field.
func (f *Field) Events() int {
	if len(f.Dims) == 0 {
		return 0
	}
	return f.Dims[0]
}

// Rank returns the number of dimensions.
func (f *Field) Rank() int {
	return len(f.Dims)
}

// Width returns the inner length of a vector field and 1 for scalars.
func (f *Field) Width() int {
	if len(f.Dims) < 2 {
		return 1
	}
	w := 1
	for _, d := range f.Dims[1:] {
		w *= d
	}
	return w
}

// Len returns the number of stored elements, or -1 when Values is not a
// slice.
func (f *Field) Len() int {
	v := reflect.ValueOf(f.Values)
	if v.Kind() != reflect.Slice {
		return -1
	}
	return v.Len()
}

// ElemType returns the Go element type name of Values, e.g. "uint32".
func (f *Field) ElemType() string {
	t := reflect.TypeOf(f.Values)
	if t == nil {
		return "nil"
	}
	if t.Kind() != reflect.Slice {
		return t.String()
	}
	return t.Elem().String()
}

// String returns a short description for logs.
func (f *Field) String() string {
	return fmt.Sprintf("%s(%s%v)", f.Name, f.Tag, f.Dims)
}

// Block is an ordered field map. Field order is the insertion order of the
// reader and is preserved by every stage.
type Block struct {
	fields []*Field
	index  map[string]int
}

// New builds a block from fields, rejecting duplicate names.
func New(fields ...*Field) (*Block, error) {
	b := &Block{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if err := b.Add(f); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// MustNew is New for literals in tests and examples.
func MustNew(fields ...*Field) *Block {
	b, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return b
}

// Add appends a field. Names must be unique.
func (b *Block) Add(f *Field) error {
	if f == nil {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "nil field")
	}
	if _, ok := b.index[f.Name]; ok {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "duplicate field name").
			WithDetail("field", f.Name)
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	b.index[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
	return nil
}

// Set replaces the field with the same name in place, or appends it.
func (b *Block) Set(f *Field) {
	if i, ok := b.index[f.Name]; ok {
		b.fields[i] = f
		return
	}
	_ = b.Add(f)
}

// Get returns the named field.
func (b *Block) Get(name string) (*Field, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.fields[i], true
}

// Delete removes the named field and reports whether it was present.
func (b *Block) Delete(name string) bool {
	i, ok := b.index[name]
	if !ok {
		return false
	}
	b.fields = append(b.fields[:i:i], b.fields[i+1:]...)
	delete(b.index, name)
	for j := i; j < len(b.fields); j++ {
		b.index[b.fields[j].Name] = j
	}
	return true
}

// Len returns the number of fields.
func (b *Block) Len() int {
	return len(b.fields)
}

// Names returns field names in order.
func (b *Block) Names() []string {
	names := make([]string, len(b.fields))
	for i, f := range b.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns the fields in order. The slice is a copy; the fields are
// shared.
func (b *Block) Fields() []*Field {
	out := make([]*Field, len(b.fields))
	copy(out, b.fields)
	return out
}

// Clone returns an independent block structure sharing field contents.
func (b *Block) Clone() *Block {
	c := &Block{
		fields: make([]*Field, len(b.fields)),
		index:  make(map[string]int, len(b.fields)),
	}
	copy(c.fields, b.fields)
	for k, v := range b.index {
		c.index[k] = v
	}
	return c
}
