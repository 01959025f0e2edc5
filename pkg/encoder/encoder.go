// Package encoder re-encodes a validated block into typed column buffers
// following the schema, applying the per-value coercion rules.
//
// Scalar coercion is narrow: float64 becomes a float, int32 and
// int64 become integers, strings stay strings. Any other scalar element type
// is rejected. Vector values are taken element by element into the column's
// output type. No value is ever truncated or wrapped.
package encoder

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

type options struct {
	logger *zap.Logger
}

// Option configures Encode.
type Option func(*options)

// WithLogger sets the logger for per-column debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Encode fills one buffer per schema column from b. b must be the block
// returned by schema.Infer together with s.
func Encode(b *block.Block, s *schema.Schema, opts ...Option) (*RecordSet, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	columns := make([]*Column, 0, s.Len())
	for _, sc := range s.Columns() {
		f, ok := b.Get(sc.Name)
		if !ok {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "schema column missing from block").
				WithDetail("field", sc.Name)
		}
		if f.Events() != s.Events() || f.Len() != s.Events()*sc.Descriptor.Elements() {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "field does not match schema").
				WithDetail("field", sc.Name).
				WithDetail("dims", f.Dims).
				WithDetail("descriptor", sc.Descriptor.String())
		}

		c := NewColumn(sc.Name, sc.Descriptor, s.Events())
		var err error
		if sc.Descriptor.IsVector() {
			err = fillVector(c, f)
		} else {
			err = fillScalar(c, f)
		}
		if err != nil {
			return nil, err
		}
		o.logger.Debug("encoded column",
			zap.String("column", c.Name),
			zap.String("type", c.Descriptor.String()),
			zap.Int("elements", c.Len()))
		columns = append(columns, c)
	}

	return NewRecordSet(s, columns)
}

func fillScalar(c *Column, f *block.Field) error {
	switch vals := f.Values.(type) {
	case []float64:
		return eachFloat(c, vals)
	case []int32:
		return eachInt(c, vals)
	case []int64:
		return eachInt(c, vals)
	case []string:
		return eachString(c, vals)
	default:
		return recoerrors.New(recoerrors.ErrorTypeUnsupportedValueType, "no coercion rule for scalar value").
			WithDetail("field", f.Name).
			WithDetail("go_type", f.ElemType())
	}
}

func fillVector(c *Column, f *block.Field) error {
	switch vals := f.Values.(type) {
	case []int8:
		return eachInt(c, vals)
	case []int16:
		return eachInt(c, vals)
	case []int32:
		return eachInt(c, vals)
	case []int64:
		return eachInt(c, vals)
	case []uint8:
		return eachInt(c, vals)
	case []uint16:
		return eachInt(c, vals)
	case []uint32:
		return eachInt(c, vals)
	case []float32:
		return eachFloat(c, vals)
	case []float64:
		return eachFloat(c, vals)
	case []string:
		return eachString(c, vals)
	default:
		return recoerrors.New(recoerrors.ErrorTypeUnsupportedValueType, "no coercion rule for vector element").
			WithDetail("field", f.Name).
			WithDetail("go_type", f.ElemType())
	}
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
}

func eachInt[T integer](c *Column, vals []T) error {
	for i, v := range vals {
		if err := c.AppendInt(int64(v)); err != nil {
			return atEvent(err, c, i)
		}
	}
	return nil
}

func eachFloat[T ~float32 | ~float64](c *Column, vals []T) error {
	for i, v := range vals {
		if err := c.AppendFloat(float64(v)); err != nil {
			return atEvent(err, c, i)
		}
	}
	return nil
}

func eachString(c *Column, vals []string) error {
	for i, v := range vals {
		if err := c.AppendString(v); err != nil {
			return atEvent(err, c, i)
		}
	}
	return nil
}

// atEvent adds the event index of element i to a column error.
func atEvent(err error, c *Column, i int) error {
	if e, ok := err.(*recoerrors.Error); ok {
		return e.WithDetail("event", i/c.Descriptor.Elements())
	}
	return err
}
