package schema

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

type options struct {
	logger     *zap.Logger
	transforms *Transforms
}

// Option configures Infer.
type Option func(*options)

// WithLogger sets the logger used for per-field debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransforms replaces the default transform registry. A nil registry
// disables transforms.
func WithTransforms(t *Transforms) Option {
	return func(o *options) {
		o.transforms = t
	}
}

// Infer applies registered transforms to a copy of b, classifies every
// field as scalar or fixed-length vector, maps its source type to an output
// type, and checks that all fields agree on the event count.
//
// It returns the schema and the transformed block the encoder must read
// from. b itself is not modified.
func Infer(b *block.Block, opts ...Option) (*Schema, *block.Block, error) {
	o := options{
		logger:     zap.NewNop(),
		transforms: DefaultTransforms(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if b == nil || b.Len() == 0 {
		return nil, nil, recoerrors.New(recoerrors.ErrorTypeValidation, "block has no fields").
			WithDetail("reason", "EmptyBlock")
	}

	out := b.Clone()
	for _, f := range out.Fields() {
		fn, ok := o.transforms.Lookup(f.Name)
		if !ok {
			continue
		}
		nf, err := fn(f)
		if err != nil {
			return nil, nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "transform failed").
				WithDetail("field", f.Name)
		}
		if nf != f {
			o.logger.Debug("collapsed composite field",
				zap.String("field", f.Name),
				zap.String("from", f.String()),
				zap.String("to", nf.String()))
			out.Set(nf)
		}
	}

	fields := out.Fields()
	columns := make([]Column, 0, len(fields))
	for _, f := range fields {
		desc, err := describe(f)
		if err != nil {
			return nil, nil, err
		}
		o.logger.Debug("field is being cast",
			zap.String("field", f.Name),
			zap.String("source_type", f.Tag),
			zap.String("output_type", desc.String()))
		columns = append(columns, Column{Name: f.Name, Descriptor: desc})
	}

	first := fields[0]
	for _, f := range fields[1:] {
		if f.Events() != first.Events() {
			return nil, nil, recoerrors.New(recoerrors.ErrorTypeInconsistentEventCount, "fields have different event counts").
				WithDetail("expected_field", first.Name).
				WithDetail("expected_events", first.Events()).
				WithDetail("field", f.Name).
				WithDetail("events", f.Events())
		}
	}

	s, err := New(first.Events(), columns...)
	if err != nil {
		return nil, nil, err
	}
	return s, out, nil
}

// describe classifies one field and resolves its output descriptor.
func describe(f *block.Field) (dtype.Descriptor, error) {
	rank := f.Rank()
	if rank < 1 || rank > 2 {
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "field is neither scalar nor vector per event").
			WithDetail("field", f.Name).
			WithDetail("dims", f.Dims)
	}
	want := 1
	for _, d := range f.Dims {
		if d < 0 {
			return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "negative dimension").
				WithDetail("field", f.Name).
				WithDetail("dims", f.Dims)
		}
		want *= d
	}
	if rank == 2 && f.Dims[1] == 0 {
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "zero-length vector").
			WithDetail("field", f.Name).
			WithDetail("dims", f.Dims)
	}
	if got := f.Len(); got != want {
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedShape, "value count does not match dims").
			WithDetail("field", f.Name).
			WithDetail("dims", f.Dims).
			WithDetail("values", got)
	}

	st, err := dtype.ParseSourceType(f.Tag)
	if err != nil {
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedSourceType, "source type has no output mapping").
			WithDetail("field", f.Name).
			WithDetail("source_type", f.Tag)
	}
	if got := f.ElemType(); got != st.Storage() {
		return dtype.Descriptor{}, recoerrors.New(recoerrors.ErrorTypeUnsupportedValueType, "values do not match source type").
			WithDetail("field", f.Name).
			WithDetail("source_type", f.Tag).
			WithDetail("storage", st.Storage()).
			WithDetail("values", got)
	}

	if rank == 1 {
		return dtype.Scalar(st.Output()), nil
	}
	return dtype.Vector(st.Output(), f.Dims[1]), nil
}
