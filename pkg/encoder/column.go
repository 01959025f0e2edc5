package encoder

import (
	"math"
	"unicode/utf8"

	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Column is the typed buffer of one output column. Exactly one of Ints,
// Floats or Strs is used, chosen by the descriptor's kind. Vector columns
// store their elements flattened in event order.
type Column struct {
	Name       string
	Descriptor dtype.Descriptor

	Ints   []int64
	Floats []float64
	Strs   []string
}

// NewColumn allocates a buffer sized for events rows.
func NewColumn(name string, desc dtype.Descriptor, events int) *Column {
	c := &Column{Name: name, Descriptor: desc}
	n := events * desc.Elements()
	switch desc.Type.Kind() {
	case dtype.KindInt, dtype.KindUint:
		c.Ints = make([]int64, 0, n)
	case dtype.KindFloat:
		c.Floats = make([]float64, 0, n)
	case dtype.KindString:
		c.Strs = make([]string, 0, n)
	}
	return c
}

// Len returns the number of stored elements.
func (c *Column) Len() int {
	switch c.Descriptor.Type.Kind() {
	case dtype.KindInt, dtype.KindUint:
		return len(c.Ints)
	case dtype.KindFloat:
		return len(c.Floats)
	case dtype.KindString:
		return len(c.Strs)
	}
	return 0
}

// Rows returns the number of complete rows stored.
func (c *Column) Rows() int {
	return c.Len() / c.Descriptor.Elements()
}

// AppendInt stores an integer element. The value must fit the column's
// output type exactly.
func (c *Column) AppendInt(v int64) error {
	t := c.Descriptor.Type
	switch t.Kind() {
	case dtype.KindInt:
		bits := t.Bits()
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if bits == 64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		if v < lo || v > hi {
			return c.overflow(v)
		}
	case dtype.KindUint:
		if v < 0 || v > int64(1)<<t.Bits()-1 {
			return c.overflow(v)
		}
	default:
		return c.mismatch("int64")
	}
	c.Ints = append(c.Ints, v)
	return nil
}

// AppendFloat stores a float element. Narrowing to f4 rounds to the nearest
// representable value but a finite value that would become infinite is
// rejected.
func (c *Column) AppendFloat(v float64) error {
	t := c.Descriptor.Type
	if t.Kind() != dtype.KindFloat {
		return c.mismatch("float64")
	}
	if t.Bits() == 32 {
		f := float32(v)
		if math.IsInf(float64(f), 0) && !math.IsInf(v, 0) {
			return c.overflow(v)
		}
		v = float64(f)
	}
	c.Floats = append(c.Floats, v)
	return nil
}

// AppendString stores a string element of at most the column's fixed width
// in characters.
func (c *Column) AppendString(s string) error {
	t := c.Descriptor.Type
	if t.Kind() != dtype.KindString {
		return c.mismatch("string")
	}
	if n := utf8.RuneCountInString(s); n > t.Width() {
		return recoerrors.New(recoerrors.ErrorTypeValueOverflow, "string longer than column width").
			WithDetail("column", c.Name).
			WithDetail("width", t.Width()).
			WithDetail("length", n)
	}
	c.Strs = append(c.Strs, s)
	return nil
}

// Value returns the portable value of row i: int64, float64 or string for
// scalar columns and []any for vector columns.
func (c *Column) Value(i int) any {
	if !c.Descriptor.IsVector() {
		return c.element(i)
	}
	n := c.Descriptor.Length
	out := make([]any, n)
	for j := 0; j < n; j++ {
		out[j] = c.element(i*n + j)
	}
	return out
}

func (c *Column) element(i int) any {
	switch c.Descriptor.Type.Kind() {
	case dtype.KindInt, dtype.KindUint:
		return c.Ints[i]
	case dtype.KindFloat:
		return c.Floats[i]
	case dtype.KindString:
		return c.Strs[i]
	}
	return nil
}

func (c *Column) overflow(v any) error {
	return recoerrors.New(recoerrors.ErrorTypeValueOverflow, "value does not fit column type").
		WithDetail("column", c.Name).
		WithDetail("type", c.Descriptor.Type.String()).
		WithDetail("value", v)
}

func (c *Column) mismatch(goType string) error {
	return recoerrors.New(recoerrors.ErrorTypeUnsupportedValueType, "value kind does not match column type").
		WithDetail("column", c.Name).
		WithDetail("type", c.Descriptor.Type.String()).
		WithDetail("go_type", goType)
}
