package textdump

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/recoconv/pkg/block"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

func dump(rows ...string) string {
	header := []string{
		"files: run_12",
		"run  ev  pos(3)  grid(2,2)  comment",
		"%d %d %12.4e %12.4e %12.4e %f %f %f %f %s",
		"",
		"",
		"",
	}
	return strings.Join(append(header, rows...), "\n") + "\n"
}

func TestReader_Decode(t *testing.T) {
	src := dump(
		"12  0  1.0e+00  2.0e+00  3.0e+00  1.0  2.0  3.0  4.0  ok",
		"",
		"12  1  -1.5e+00  0.0e+00  2.5e-01  5.0  6.0  7.0  8.0  late",
	)

	b, err := NewReader(zaptest.NewLogger(t)).Decode(context.Background(), strings.NewReader(src))
	require.NoError(t, err)

	// grid(2,2) is two-dimensional and is not loaded
	assert.Equal(t, []string{"run", "ev", "pos(3)", "comment"}, b.Names())

	run, _ := b.Get("run")
	assert.Equal(t, "d", run.Tag)
	assert.Equal(t, []int{2}, run.Dims)
	assert.Equal(t, []int32{12, 12}, run.Values)

	pos, _ := b.Get("pos(3)")
	assert.Equal(t, "e", pos.Tag)
	assert.Equal(t, []int{2, 3}, pos.Dims)
	assert.Equal(t, []float64{1, 2, 3, -1.5, 0, 0.25}, pos.Values)

	comment, _ := b.Get("comment")
	assert.Equal(t, "s", comment.Tag)
	assert.Equal(t, []string{"ok", "late"}, comment.Values)
}

func TestReader_MixedTypesRejected(t *testing.T) {
	src := strings.Join([]string{
		"files",
		"v(2)",
		"%d %f",
		"", "", "",
		"1  2.0",
	}, "\n")

	_, err := NewReader(nil).Decode(context.Background(), strings.NewReader(src))
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeUnsupportedSourceType))
}

func TestReader_ShortRow(t *testing.T) {
	_, err := NewReader(nil).Decode(context.Background(), strings.NewReader(dump("12  0  1.0")))
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeData))
}

func TestReader_BadNumber(t *testing.T) {
	_, err := NewReader(nil).Decode(context.Background(),
		strings.NewReader(dump("x  0  1  2  3  1  2  3  4  ok")))
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeData))
}

func TestReader_TruncatedHeader(t *testing.T) {
	_, err := NewReader(nil).Decode(context.Background(), strings.NewReader("files\nrun\n"))
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeData))
}

func TestFormatTag(t *testing.T) {
	assert.Equal(t, "d", formatTag("%5d"))
	assert.Equal(t, "e", formatTag("%12.4e"))
	assert.Equal(t, "f", formatTag("%.3f"))
	assert.Equal(t, "s", formatTag("%s"))
	assert.Equal(t, "%x", formatTag("%x"))
}

func TestRead_ViaRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged_all.txt")
	require.NoError(t, os.WriteFile(path, []byte(dump("12  0  1  2  3  1  2  3  4  ok")), 0o600))

	reader, err := block.OpenReader("", path, nil)
	require.NoError(t, err)
	b, err := reader.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Len())
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, block.ReaderFormats(), "textdump")

	for _, name := range []string{"merged_all.txt", "merged_all.dat"} {
		_, err := block.OpenReader("", name, nil)
		assert.NoError(t, err, name)
	}

	r, err := block.OpenReader("textdump", "merged_all.dump", nil)
	require.NoError(t, err)
	assert.IsType(t, &Reader{}, r)
}
