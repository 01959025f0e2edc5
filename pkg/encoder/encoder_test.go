package encoder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/filter"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

func infer(t *testing.T, b *block.Block) (*schema.Schema, *block.Block) {
	t.Helper()
	s, out, err := schema.Infer(b)
	require.NoError(t, err)
	return s, out
}

func TestEncode_RunIDRows(t *testing.T) {
	b := block.MustNew(
		block.NewVector("runid", "int32", [][]int32{{12, 7}, {12, 8}}),
		block.NewScalar("ev", "int32", []int32{0, 1}),
		block.NewScalar("timestamp", "float64", []float64{1, 2}),
	)
	filtered := filter.Apply(b, filter.DefaultSkipList(), nil)
	s, out := infer(t, filtered)

	rs, err := Encode(out, s, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, 2, rs.NumRows())
	assert.Equal(t, []Row{{"12_7", int64(0)}, {"12_8", int64(1)}}, rs.Rows())
}

func TestEncode_ScalarsAndVectors(t *testing.T) {
	b := block.MustNew(
		block.NewScalar("energy", "float64", []float64{0.5, 1.25}),
		block.NewScalar("id", "int64", []int64{1 << 40, -3}),
		block.NewScalar("tag", "s", []string{"alpha", "beta"}),
		block.NewVector("amps", "int16", [][]int16{{1, -2, 3}, {4, 5, -6}}),
		block.NewVector("pos", "e", [][]float64{{0.1, 0.2}, {0.3, 0.4}}),
		block.NewVector("hits", "uint32", [][]uint32{{7}, {math.MaxUint32}}),
	)
	s, out := infer(t, b)

	rs, err := Encode(out, s)
	require.NoError(t, err)

	row := rs.Row(1)
	assert.Equal(t, 1.25, row[0])
	assert.Equal(t, int64(-3), row[1])
	assert.Equal(t, "beta", row[2])
	assert.Equal(t, []any{int64(4), int64(5), int64(-6)}, row[3])
	assert.Equal(t, []any{float64(float32(0.3)), float64(float32(0.4))}, row[4])
	assert.Equal(t, []any{int64(math.MaxUint32)}, row[5])
}

func TestEncode_RowsMatchRowByRow(t *testing.T) {
	b := block.MustNew(
		block.NewScalar("a", "int32", []int32{1, 2, 3}),
		block.NewVector("v", "float64", [][]float64{{1, 2}, {3, 4}, {5, 6}}),
	)
	s, out := infer(t, b)
	rs, err := Encode(out, s)
	require.NoError(t, err)

	rows := rs.Rows()
	require.Len(t, rows, 3)
	for i := range rows {
		assert.Equal(t, rs.Row(i), rows[i])
	}
}

func TestEncode_UnsupportedScalarValues(t *testing.T) {
	tests := []struct {
		name  string
		field *block.Field
	}{
		{"uint32", block.NewScalar("x", "uint32", []uint32{1})},
		{"int16", block.NewScalar("x", "int16", []int16{1})},
		{"int8", block.NewScalar("x", "int8", []int8{1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, out := infer(t, block.MustNew(tt.field))
			rs, err := Encode(out, s)
			require.Error(t, err)
			assert.Nil(t, rs)
			assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedValueType))

			var e *recoerrors.Error
			require.ErrorAs(t, err, &e)
			goType, _ := e.Detail("go_type")
			assert.Equal(t, tt.name, goType)
		})
	}
}

func TestEncode_StringTooLong(t *testing.T) {
	s, out := infer(t, block.MustNew(block.NewScalar("tag", "s", []string{"ok", "much-too-long-label"})))
	_, err := Encode(out, s)
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValueOverflow))

	var e *recoerrors.Error
	require.ErrorAs(t, err, &e)
	event, _ := e.Detail("event")
	assert.Equal(t, 1, event)
}

func TestEncode_FloatOverflowsF4(t *testing.T) {
	s, out := infer(t, block.MustNew(block.NewScalar("x", "f", []float64{1e300})))
	_, err := Encode(out, s)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValueOverflow))
}

func TestEncode_MissingColumn(t *testing.T) {
	s, err := schema.New(1, schema.Column{Name: "gone", Descriptor: dtype.Scalar(dtype.Int32Out)})
	require.NoError(t, err)
	_, err = Encode(block.MustNew(), s)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))
}

func TestColumn_AppendInt(t *testing.T) {
	tests := []struct {
		out  dtype.OutputType
		ok   []int64
		fail []int64
	}{
		{dtype.Int16Out, []int64{math.MinInt16, math.MaxInt16}, []int64{math.MinInt16 - 1, math.MaxInt16 + 1}},
		{dtype.Int32Out, []int64{math.MinInt32, math.MaxInt32}, []int64{math.MinInt32 - 1, math.MaxInt32 + 1}},
		{dtype.Int64Out, []int64{math.MinInt64, math.MaxInt64}, nil},
		{dtype.Uint32Out, []int64{0, math.MaxUint32}, []int64{-1, math.MaxUint32 + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.out.String(), func(t *testing.T) {
			c := NewColumn("x", dtype.Scalar(tt.out), 2)
			for _, v := range tt.ok {
				assert.NoError(t, c.AppendInt(v))
			}
			for _, v := range tt.fail {
				assert.True(t, recoerrors.IsType(c.AppendInt(v), recoerrors.ErrorTypeValueOverflow))
			}
			assert.Equal(t, tt.ok, c.Ints)
		})
	}
}

func TestColumn_KindMismatch(t *testing.T) {
	c := NewColumn("x", dtype.Scalar(dtype.Int32Out), 1)
	assert.True(t, recoerrors.IsType(c.AppendFloat(1.5), recoerrors.ErrorTypeUnsupportedValueType))
	assert.True(t, recoerrors.IsType(c.AppendString("a"), recoerrors.ErrorTypeUnsupportedValueType))

	f := NewColumn("y", dtype.Scalar(dtype.Float64Out), 1)
	assert.True(t, recoerrors.IsType(f.AppendInt(1), recoerrors.ErrorTypeUnsupportedValueType))
}

func TestColumn_Float32Rounding(t *testing.T) {
	c := NewColumn("x", dtype.Scalar(dtype.Float32Out), 2)
	require.NoError(t, c.AppendFloat(0.1))
	require.NoError(t, c.AppendFloat(math.Inf(1)))
	assert.Equal(t, float64(float32(0.1)), c.Value(0))
	assert.True(t, math.IsInf(c.Value(1).(float64), 1))
}

func TestNewRecordSet_Validates(t *testing.T) {
	s, err := schema.New(2, schema.Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int32Out)})
	require.NoError(t, err)

	c := NewColumn("a", dtype.Scalar(dtype.Int32Out), 2)
	require.NoError(t, c.AppendInt(1))
	_, err = NewRecordSet(s, []*Column{c})
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))

	require.NoError(t, c.AppendInt(2))
	rs, err := NewRecordSet(s, []*Column{c})
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}, {int64(2)}}, rs.Rows())

	wrong := NewColumn("b", dtype.Scalar(dtype.Int32Out), 0)
	_, err = NewRecordSet(s, []*Column{wrong})
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))
}
