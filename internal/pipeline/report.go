package pipeline

import (
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/recoconv/pkg/compression"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
)

// Timings holds the wall time of each stage.
type Timings struct {
	Read   time.Duration
	Filter time.Duration
	Infer  time.Duration
	Encode time.Duration
	Write  time.Duration
	Total  time.Duration
}

// MarshalJSON renders durations as strings such as "1.5ms".
func (t Timings) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		StageRead:   t.Read.String(),
		StageFilter: t.Filter.String(),
		StageInfer:  t.Infer.String(),
		StageEncode: t.Encode.String(),
		StageWrite:  t.Write.String(),
		"total":     t.Total.String(),
	})
}

// ColumnReport describes one output column
type ColumnReport struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Report summarizes a finished conversion.
type Report struct {
	Input       string                `json:"input"`
	Output      string                `json:"output"`
	Format      columnar.Format       `json:"format"`
	Compression compression.Algorithm `json:"stream_compression"`
	Events      int                   `json:"events"`
	Columns     []ColumnReport        `json:"columns"`
	Dropped     []string              `json:"dropped"`
	Bytes       int64                 `json:"bytes_written"`
	Timings     Timings               `json:"timings"`
	CompletedAt time.Time             `json:"completed_at"`
	// Table is the names/types diagnostic table of the schema
	Table string `json:"-"`
}

func newReport(p *Prepared, output string, format columnar.Format, algo compression.Algorithm, written int64, timings Timings) *Report {
	cols := p.Schema.Columns()
	columns := make([]ColumnReport, len(cols))
	for i, c := range cols {
		columns[i] = ColumnReport{Name: c.Name, Type: c.Descriptor.String()}
	}
	dropped := p.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	return &Report{
		Input:       p.Input,
		Output:      output,
		Format:      format,
		Compression: algo,
		Events:      p.Schema.Events(),
		Columns:     columns,
		Dropped:     dropped,
		Bytes:       written,
		Timings:     timings,
		CompletedAt: time.Now().UTC(),
		Table:       p.Schema.Table(),
	}
}

// WriteReport writes r as indented JSON to path.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeInternal, "failed to encode report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write report").
			WithDetail("path", path)
	}
	return nil
}
