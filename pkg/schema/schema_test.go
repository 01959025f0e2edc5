package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

func TestNew(t *testing.T) {
	s, err := New(4,
		Column{Name: "ev", Descriptor: dtype.Scalar(dtype.Int32Out)},
		Column{Name: "pos", Descriptor: dtype.Vector(dtype.Float32Out, 3)},
	)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Events())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "pos", s.Column(1).Name)

	cols := s.Columns()
	cols[0].Name = "changed"
	assert.Equal(t, "ev", s.Column(0).Name)

	_, _, ok := s.Lookup("missing")
	assert.False(t, ok)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(1,
		Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int32Out)},
		Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int64Out)},
	)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))

	_, err = New(1, Column{Name: "a"})
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))

	_, err = New(-1)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeValidation))
}

func TestSchema_Equal(t *testing.T) {
	a, _ := New(2, Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int32Out)})
	b, _ := New(2, Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int32Out)})
	c, _ := New(3, Column{Name: "a", Descriptor: dtype.Scalar(dtype.Int32Out)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"runid", "ev", "pos"}, []string{"U12", "i4", "f4[3]"})
	want := "Names: | runid | ev | pos   | \n" +
		"Types: | U12   | i4 | f4[3] | \n"
	assert.Equal(t, want, got)
}

func TestFormatTable_Empty(t *testing.T) {
	assert.Equal(t, "Names: | \nTypes: | \n", FormatTable(nil, nil))
}

func TestSchema_Table(t *testing.T) {
	s, err := New(1,
		Column{Name: "energy", Descriptor: dtype.Scalar(dtype.Float64Out)},
		Column{Name: "x", Descriptor: dtype.Scalar(dtype.String12)},
	)
	require.NoError(t, err)
	assert.Equal(t, "Names: | energy | x   | \nTypes: | f8     | U12 | \n", s.Table())
}
