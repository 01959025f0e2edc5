package block

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

func TestNewScalarAndVector(t *testing.T) {
	s := NewScalar("energy", "float64", []float64{1.5, 2.5, 3.5})
	assert.Equal(t, []int{3}, s.Dims)
	assert.Equal(t, 3, s.Events())
	assert.Equal(t, 1, s.Width())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "float64", s.ElemType())

	v := NewVector("runid", "int32", [][]int32{{12, 7}, {12, 8}})
	assert.Equal(t, []int{2, 2}, v.Dims)
	assert.Equal(t, 2, v.Events())
	assert.Equal(t, 2, v.Width())
	assert.Equal(t, []int32{12, 7, 12, 8}, v.Values)
}

func TestField_LenOfNonSlice(t *testing.T) {
	f := &Field{Name: "x", Values: 42}
	assert.Equal(t, -1, f.Len())
	assert.Equal(t, "int", f.ElemType())
	assert.Equal(t, "nil", (&Field{}).ElemType())
}

func TestBlock_OrderAndLookup(t *testing.T) {
	b := MustNew(
		NewScalar("a", "int32", []int32{1}),
		NewScalar("b", "int32", []int32{2}),
		NewScalar("c", "int32", []int32{3}),
	)

	assert.Equal(t, []string{"a", "b", "c"}, b.Names())
	f, ok := b.Get("b")
	require.True(t, ok)
	assert.Equal(t, []int32{2}, f.Values)

	_, ok = b.Get("missing")
	assert.False(t, ok)
}

func TestBlock_DuplicateName(t *testing.T) {
	_, err := New(
		NewScalar("a", "int32", []int32{1}),
		NewScalar("a", "int32", []int32{2}),
	)
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))
}

func TestBlock_DeleteReindexes(t *testing.T) {
	b := MustNew(
		NewScalar("a", "int32", []int32{1}),
		NewScalar("b", "int32", []int32{2}),
		NewScalar("c", "int32", []int32{3}),
	)

	assert.True(t, b.Delete("a"))
	assert.False(t, b.Delete("a"))
	assert.Equal(t, []string{"b", "c"}, b.Names())

	f, ok := b.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", f.Name)
}

func TestBlock_SetKeepsPosition(t *testing.T) {
	b := MustNew(
		NewScalar("a", "int32", []int32{1}),
		NewScalar("b", "int32", []int32{2}),
	)
	b.Set(NewScalar("a", "<U32", []string{"x"}))
	b.Set(NewScalar("z", "int32", []int32{9}))

	assert.Equal(t, []string{"a", "b", "z"}, b.Names())
	f, _ := b.Get("a")
	assert.Equal(t, "<U32", f.Tag)
}

func TestBlock_CloneIsIndependent(t *testing.T) {
	b := MustNew(
		NewScalar("a", "int32", []int32{1}),
		NewScalar("b", "int32", []int32{2}),
	)
	c := b.Clone()
	c.Delete("a")

	assert.Equal(t, []string{"a", "b"}, b.Names())
	assert.Equal(t, []string{"b"}, c.Names())
}

type stubReader struct{}

func (stubReader) Read(context.Context, string) (*Block, error) { return MustNew(), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", func(*zap.Logger) Reader { return stubReader{} }, ".stub"))

	err := r.Register("stub", func(*zap.Logger) Reader { return stubReader{} })
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeConfig))

	format, err := r.Detect("/data/run.STUB")
	require.NoError(t, err)
	assert.Equal(t, "stub", format)

	_, err = r.Detect("/data/run.bin")
	assert.Error(t, err)

	reader, err := r.Create("stub", nil)
	require.NoError(t, err)
	b, err := reader.Read(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	_, err = r.Create("nope", nil)
	assert.Error(t, err)
	assert.Equal(t, []string{"stub"}, r.Formats())
}
