package dtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

func TestParseSourceType_Mapping(t *testing.T) {
	tests := []struct {
		tag    string
		output string
	}{
		{"s", "U12"},
		{"d", "i4"},
		{"f", "f4"},
		{"e", "f4"},
		{"uint32", "u4"},
		{"int32", "i4"},
		{"float64", "f8"},
		{"int64", "i8"},
		{"int16", "i2"},
		{"int8", "i4"},
		{"<U32", "U12"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			st, err := ParseSourceType(tt.tag)
			require.NoError(t, err)
			assert.True(t, st.Valid())
			assert.Equal(t, tt.tag, st.String())
			assert.Equal(t, tt.output, st.Output().String())
		})
	}
}

func TestParseSourceType_Unsupported(t *testing.T) {
	for _, tag := range []string{"float32", "uint8", "bool", "", "i4", "<U12"} {
		t.Run(tag, func(t *testing.T) {
			st, err := ParseSourceType(tag)
			require.Error(t, err)
			assert.Equal(t, Invalid, st)
			assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedSourceType))
			assert.Equal(t, InvalidOutput, st.Output())
		})
	}
}

func TestSourceTypes_AllMapped(t *testing.T) {
	types := SourceTypes()
	assert.Len(t, types, 11)
	for _, st := range types {
		assert.NotEqual(t, InvalidOutput, st.Output(), st.String())
		assert.NotEmpty(t, st.Storage(), st.String())
	}
}

func TestOutputType_Properties(t *testing.T) {
	assert.Equal(t, KindInt, Int16Out.Kind())
	assert.Equal(t, 16, Int16Out.Bits())
	assert.Equal(t, KindUint, Uint32Out.Kind())
	assert.Equal(t, 4, Float32Out.ItemSize())
	assert.Equal(t, 8, Int64Out.ItemSize())
	assert.Equal(t, KindString, String12.Kind())
	assert.Equal(t, 12, String12.Width())
	assert.Equal(t, 48, String12.ItemSize())
}

func TestDescriptor_StringRoundTrip(t *testing.T) {
	for _, d := range []Descriptor{
		Scalar(Float32Out),
		Scalar(String12),
		Vector(Int32Out, 4),
		Vector(Uint32Out, 8),
	} {
		parsed, err := ParseDescriptor(d.String())
		require.NoError(t, err, d.String())
		assert.Equal(t, d, parsed)
	}

	assert.Equal(t, "i4[4]", Vector(Int32Out, 4).String())
	assert.Equal(t, 4, Vector(Int32Out, 4).Elements())
	assert.Equal(t, 1, Scalar(Int32Out).Elements())
}

func TestParseDescriptor_Malformed(t *testing.T) {
	for _, s := range []string{"i4[", "i4[0]", "i4[x]", "q8", "U12[2"} {
		_, err := ParseDescriptor(s)
		assert.Error(t, err, s)
	}
}
