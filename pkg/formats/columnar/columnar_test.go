package columnar

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/compression"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

func testRecordSet(t *testing.T) *encoder.RecordSet {
	t.Helper()
	b := block.MustNew(
		block.NewVector("runid", "int32", [][]int32{{12, 7}, {12, 8}, {13, 1}}),
		block.NewScalar("ev", "int32", []int32{0, 1, -2}),
		block.NewScalar("energy", "float64", []float64{0.5, -1.25, 3e10}),
		block.NewScalar("big", "int64", []int64{1 << 40, 0, -1}),
		block.NewScalar("comment", "s", []string{"ok", "", "héllo wörld"}),
		block.NewVector("pos(3)", "e", [][]float64{{1, 2, 3}, {0.5, 0.25, 0.125}, {-1, -2, -3}}),
		block.NewVector("amps", "int16", [][]int16{{1, -1}, {32767, -32768}, {0, 0}}),
		block.NewVector("hits", "uint32", [][]uint32{{4294967295}, {0}, {7}}),
		block.NewVector("trig", "int8", [][]int8{{1, 2}, {3, 4}, {-5, -6}}),
	)
	s, out, err := schema.Infer(b)
	require.NoError(t, err)
	rs, err := encoder.Encode(out, s)
	require.NoError(t, err)
	return rs
}

func roundTrip(t *testing.T, rs *encoder.RecordSet, config *WriterConfig) *encoder.RecordSet {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, config)
	require.NoError(t, err)
	require.NoError(t, w.Write(rs))
	require.NoError(t, w.Close())

	assert.Equal(t, config.Format, w.Format())
	assert.Equal(t, int64(rs.NumRows()), w.RecordsWritten())
	assert.Equal(t, int64(buf.Len()), w.BytesWritten())

	got, err := ReadAll(&buf, config.Format)
	require.NoError(t, err)
	return got
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		format      Format
		compression string
	}{
		{Arrow, ""},
		{Arrow, "zstd"},
		{Arrow, "lz4"},
		{Parquet, "snappy"},
		{Parquet, "zstd"},
		{Avro, ""},
		{Avro, "deflate"},
		{NPY, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.format)+"/"+tt.compression, func(t *testing.T) {
			rs := testRecordSet(t)
			// batch size 2 splits the three rows across batches
			got := roundTrip(t, rs, &WriterConfig{Format: tt.format, Compression: tt.compression, BatchSize: 2})

			assert.True(t, rs.Schema().Equal(got.Schema()), "schema: %s", got.Schema().Table())
			assert.Equal(t, rs.Rows(), got.Rows())
		})
	}
}

func TestRoundTrip_VectorColumns(t *testing.T) {
	const events = 10001
	energy := make([]float64, events)
	v := make([][]int32, events)
	for i := range v {
		energy[i] = float64(i) / 4
		v[i] = []int32{int32(i), -int32(i), 1 << 30, int32(i % 7)}
	}
	b := block.MustNew(
		block.NewScalar("energy", "float64", energy),
		block.NewVector("v", "int32", v),
	)
	s, out, err := schema.Infer(b)
	require.NoError(t, err)
	rs, err := encoder.Encode(out, s)
	require.NoError(t, err)

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			// the default batch size puts the last event in a second batch
			got := roundTrip(t, rs, &WriterConfig{Format: format})

			assert.Equal(t, []string{"f8", "i4[4]"}, got.Schema().Types())
			require.Equal(t, events, got.NumRows())
			assert.Equal(t, rs.Row(0), got.Row(0))
			assert.Equal(t, rs.Row(events-1), got.Row(events-1))
			assert.Equal(t, encoder.Row{2500.0, []any{int64(10000), int64(-10000), int64(1 << 30), int64(4)}}, got.Row(10000))
		})
	}
}

func TestRoundTrip_NoRows(t *testing.T) {
	b := block.MustNew(
		block.NewScalar("ev", "int32", []int32{}),
		block.NewScalar("comment", "s", []string{}),
	)
	s, out, err := schema.Infer(b)
	require.NoError(t, err)
	rs, err := encoder.Encode(out, s)
	require.NoError(t, err)

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			got := roundTrip(t, rs, &WriterConfig{Format: format, BatchSize: 10})
			assert.Equal(t, 0, got.NumRows())
			assert.Equal(t, []string{"ev", "comment"}, got.Schema().Names())
		})
	}
}

func TestNewWriter_Errors(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, &WriterConfig{Format: "orc"})
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeConfig))

	for _, config := range []*WriterConfig{
		{Format: Arrow, Compression: "snappy"},
		{Format: Parquet, Compression: "lzo"},
		{Format: Avro, Compression: "zstd"},
		{Format: NPY, Compression: "gzip"},
	} {
		_, err := NewWriter(&bytes.Buffer{}, config)
		assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeConfig), config.Format)
	}
}

func TestWriter_SingleUse(t *testing.T) {
	rs := testRecordSet(t)
	for _, format := range Formats() {
		w, err := NewWriter(&bytes.Buffer{}, &WriterConfig{Format: format})
		require.NoError(t, err)
		require.NoError(t, w.Write(rs))
		assert.Error(t, w.Write(rs), format)
	}
}

func TestNPYHeader(t *testing.T) {
	rs := testRecordSet(t)
	header := npyHeader(rs.Schema())

	assert.Equal(t, 0, len(header)%npyAlignment)
	assert.Equal(t, byte('\n'), header[len(header)-1])
	assert.True(t, strings.HasPrefix(string(header), npyMagic+"\x01\x00"))

	text := string(header)
	assert.Contains(t, text, "('runid', '<U12')")
	assert.Contains(t, text, "('pos(3)', '<f4', (3,))")
	assert.Contains(t, text, "('hits', '<u4', (1,))")
	assert.Contains(t, text, "'shape': (3,)")
}

func TestParseNPYHeader(t *testing.T) {
	s, err := parseNPYHeader(`{'descr': [('it\'s', '<i8'), ('v', '<f8', (2,))], 'fortran_order': False, 'shape': (5,), }`)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Events())
	assert.Equal(t, []string{"it's", "v"}, s.Names())
	assert.Equal(t, []string{"i8", "f8[2]"}, s.Types())

	_, err = parseNPYHeader(`{'descr': '<f8', 'fortran_order': False, 'shape': (5,), }`)
	assert.Error(t, err)

	_, err = parseNPYHeader(`{'descr': [('a', '<i4')], 'fortran_order': False, 'shape': (5, 2), }`)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedShape))

	_, err = parseNPYHeader(`{'descr': [('a', '<i1')], 'fortran_order': False, 'shape': (5,), }`)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedSourceType))
}

func TestNPYReader_NotNPY(t *testing.T) {
	_, err := ReadAll(strings.NewReader("PAR1 not numpy"), NPY)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeData))
}

func TestAvroColumns_Sanitized(t *testing.T) {
	rs := testRecordSet(t)
	cols := avroColumns(rs.Schema())
	assert.Equal(t, "pos_3_", cols[5].Field)
	assert.Equal(t, "pos(3)", cols[5].Name)
	assert.Equal(t, "f4[3]", cols[5].Dtype)
}

func TestDetectPath(t *testing.T) {
	tests := []struct {
		path   string
		format Format
		algo   compression.Algorithm
		ok     bool
	}{
		{"out/events.arrow", Arrow, compression.None, true},
		{"events.PARQUET", Parquet, compression.None, true},
		{"events.npy.zst", NPY, compression.Zstd, true},
		{"events.avro.gz", Avro, compression.Gzip, true},
		{"events.csv", "", compression.None, false},
	}
	for _, tt := range tests {
		format, algo, ok := DetectPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.format, format, tt.path)
		assert.Equal(t, tt.algo, algo, tt.path)
	}
}

func TestReadFile_Compressed(t *testing.T) {
	rs := testRecordSet(t)
	path := filepath.Join(t.TempDir(), "events.npy.zst")

	f, err := os.Create(path)
	require.NoError(t, err)
	cw, err := compression.NewWriter(f, compression.Zstd, compression.Default)
	require.NoError(t, err)
	w, err := NewWriter(cw, &WriterConfig{Format: NPY})
	require.NoError(t, err)
	require.NoError(t, w.Write(rs))
	require.NoError(t, w.Close())
	require.NoError(t, cw.Close())
	require.NoError(t, f.Close())

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rs.Rows(), got.Rows())
}

func TestGetFormatInfo(t *testing.T) {
	for _, f := range Formats() {
		info := GetFormatInfo(f)
		require.NotNil(t, info)
		got, ok := FormatFromExtension(info.FileExtension)
		assert.True(t, ok)
		assert.Equal(t, f, got)
	}
	assert.Nil(t, GetFormatInfo("orc"))
}
