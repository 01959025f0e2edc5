package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recoconv/pkg/config"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
)

const recoBlock = `{"fields": [
  {"name": "runid", "dtype": "int32", "values": [[12, 7], [12, 7], [12, 8]]},
  {"name": "ev", "dtype": "int32", "values": [0, 1, 0]},
  {"name": "timestamp", "dtype": "float64", "values": [1.0, 2.0, 3.0]},
  {"name": "energy", "dtype": "float64", "values": [1.5, 2.25, 3.0]}
]}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "reco.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestConfirmOverwrite(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		want    bool
		prompts int
	}{
		{"yes", "y\n", true, 1},
		{"no", "n\n", false, 1},
		{"upper case", "Y\n", true, 1},
		{"asks again", "maybe\n\nn\n", false, 3},
		{"end of input", "", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirmOverwrite(strings.NewReader(tt.stdin), &out, "out/run.npy")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.prompts, strings.Count(out.String(), "Proceed? (y/n): "))
			assert.Contains(t, out.String(), "A file already exists at 'out/run.npy'")
		})
	}

	var out bytes.Buffer
	_, _ = confirmOverwrite(strings.NewReader("maybe\nn\n"), &out, "x")
	assert.Contains(t, out.String(), "Invalid input: 'maybe'")
}

func TestConvertCmd(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)
	output := filepath.Join(dir, "run.arrow")
	report := filepath.Join(dir, "report.json")

	out, err := execute(t, "", "convert", input, output, "--report", report, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 events (3 columns) to "+output)
	assert.Contains(t, out, "Names: | runid | ev | energy | ")
	assert.FileExists(t, report)

	rs, err := columnar.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"runid", "ev", "energy"}, rs.Schema().Names())
}

func TestConvertCmd_Flags(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)
	output := filepath.Join(dir, "run.out")

	_, err := execute(t, "", "convert", input, output,
		"--format", "npy", "--compress", "zstd", "--skip", "timestamp,energy")
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	magic := make([]byte, 4)
	_, err = f.Read(magic)
	require.NoError(t, err)
	// zstd frame magic
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, magic)

	out, err := execute(t, "", "inspect", output, "--format", "npy", "--compress", "zstd")
	require.NoError(t, err)
	assert.Contains(t, out, "Format: NumPy structured array\n")
	assert.Contains(t, out, "Records: 3\n")
	assert.Contains(t, out, "Names: | runid | ev | \n")
}

func TestConvertCmd_ExistingOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)
	output := filepath.Join(dir, "run.npy")
	require.NoError(t, os.WriteFile(output, []byte("old"), 0o600))

	out, err := execute(t, "n\n", "convert", input, output)
	require.NoError(t, err)
	assert.Contains(t, out, "Proceed? (y/n): ")
	assert.Contains(t, out, "Aborting.")
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	out, err = execute(t, "y\n", "convert", input, output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 events")

	require.NoError(t, os.WriteFile(output, []byte("old"), 0o600))
	out, err = execute(t, "", "convert", input, output, "--yes")
	require.NoError(t, err)
	assert.NotContains(t, out, "Proceed?")
	rs, err := columnar.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 3, rs.NumRows())
}

func TestConvertCmd_PathChecks(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)

	_, err := execute(t, "", "convert", filepath.Join(dir, "missing.json"), filepath.Join(dir, "run.arrow"))
	require.Error(t, err)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeFile))
	assert.Contains(t, userMessage(err), "no file exists at input path")

	_, err = execute(t, "", "convert", input, filepath.Join(dir, "nope", "run.arrow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path of output file")
}

func TestConvertCmd_ConversionFailure(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, `{"fields": [
  {"name": "ev", "dtype": "int32", "values": [0, 1, 2]},
  {"name": "energy", "dtype": "float64", "values": [1.5, 2.25]}
]}`)
	output := filepath.Join(dir, "run.arrow")

	_, err := execute(t, "", "convert", input, output)
	require.Error(t, err)
	msg := userMessage(err)
	assert.True(t, strings.HasPrefix(msg, "Fields disagree on the number of events: "))
	assert.True(t, strings.HasSuffix(msg, "Aborting."))
	assert.NoFileExists(t, output)
}

func TestSchemaCmd(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)

	out, err := execute(t, "", "schema", input)
	require.NoError(t, err)
	assert.Equal(t,
		"Events: 3\nDropped: timestamp\nNames: | runid | ev | energy | \nTypes: | U12   | i4 | f8     | \n",
		out)
}

func TestSchemaCmd_InputFormat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "merged_all.dump")
	dump := strings.Join([]string{
		"files: run_12",
		"run  ev  energy",
		"%d %d %f",
		"", "", "",
		"12  0  1.5",
		"12  1  2.25",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(input, []byte(dump), 0o600))

	_, err := execute(t, "", "schema", input)
	require.Error(t, err)

	out, err := execute(t, "", "schema", input, "--input-format", "textdump")
	require.NoError(t, err)
	assert.Equal(t,
		"Events: 2\nNames: | run | ev | energy | \nTypes: | i4  | i4 | f4     | \n",
		out)

	output := filepath.Join(dir, "run.npy")
	_, err = execute(t, "", "convert", input, output, "--input-format", "textdump")
	require.NoError(t, err)
	rs, err := columnar.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.NumRows())
}

func TestInspectCmd(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, recoBlock)
	output := filepath.Join(dir, "run.parquet.gz")

	_, err := execute(t, "", "convert", input, output)
	require.NoError(t, err)

	out, err := execute(t, "", "inspect", output, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Format: Apache Parquet\n")
	assert.Contains(t, out, "Records: 3\n")
	assert.Contains(t, out, "[12_7 0 1.5]\n")
}

func TestConfigInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recoconv.yaml")

	out, err := execute(t, "", "config", "init", path, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(config.NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = execute(t, "", "config", "init", path)
	assert.True(t, recoerrors.IsType(err, recoerrors.ErrorTypeFile))

	_, err = execute(t, "", "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "recoconv v"+version)
}
