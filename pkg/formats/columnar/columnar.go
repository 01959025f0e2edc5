// Package columnar persists encoded record sets as self-describing columnar
// files and reads them back.
//
// Every format records each column's descriptor ("i4", "f4[3]", "U12") so a
// reader recovers the exact schema: Arrow and Parquet through field metadata,
// Avro through OCF file metadata and NPY through its structured dtype header.
package columnar

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/recoconv/pkg/compression"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Format represents a columnar storage format
type Format string

const (
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
	// NPY is a NumPy structured array file
	NPY Format = "npy"
)

// DtypeKey is the metadata key holding a column's descriptor.
const DtypeKey = "recoconv.dtype"

// Writer persists record sets.
type Writer interface {
	// Write writes every row of rs. It may be called once per writer.
	Write(rs *encoder.RecordSet) error
	// Close finalizes the file. The underlying io.Writer is not closed.
	Close() error
	// Format returns the columnar format
	Format() Format
	// BytesWritten returns bytes written
	BytesWritten() int64
	// RecordsWritten returns records written
	RecordsWritten() int64
}

// Reader reads a record set back.
type Reader interface {
	// Read returns the whole record set.
	Read() (*encoder.RecordSet, error)
	// Format returns the columnar format
	Format() Format
}

// WriterConfig configures columnar writers
type WriterConfig struct {
	Format Format
	// Compression is the format's internal codec: "zstd" or "lz4" for
	// Arrow, "snappy", "zstd", "gzip" or "brotli" for Parquet, "snappy" or
	// "deflate" for Avro. Empty or "none" disables it. NPY has no codec.
	Compression string
	// BatchSize is the number of rows per Arrow record batch, Parquet row
	// group or Avro append.
	BatchSize int
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:    Arrow,
		BatchSize: 10000,
	}
}

// NewWriter creates a new columnar writer
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultWriterConfig().BatchSize
	}

	cw := &countingWriter{w: w}
	switch config.Format {
	case Arrow:
		return newArrowWriter(cw, config)
	case Parquet:
		return newParquetWriter(cw, config)
	case Avro:
		return newAvroWriter(cw, config)
	case NPY:
		return newNPYWriter(cw, config)
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported columnar format").
			WithDetail("format", string(config.Format))
	}
}

// NewReader creates a new columnar reader. The whole stream is read into
// memory.
func NewReader(r io.Reader, format Format) (Reader, error) {
	switch format {
	case Arrow:
		return newArrowReader(r)
	case Parquet:
		return newParquetReader(r)
	case Avro:
		return newAvroReader(r)
	case NPY:
		return newNPYReader(r)
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported columnar format").
			WithDetail("format", string(format))
	}
}

// ReadAll reads a record set of the given format from r.
func ReadAll(r io.Reader, format Format) (*encoder.RecordSet, error) {
	reader, err := NewReader(r, format)
	if err != nil {
		return nil, err
	}
	return reader.Read()
}

// ReadFile reads a local record file. The format and any outer stream
// compression are detected from the file name, e.g. "events.parquet.zst".
func ReadFile(path string) (*encoder.RecordSet, error) {
	format, algo, ok := DetectPath(path)
	if !ok {
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "cannot detect record file format").
			WithDetail("path", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to open record file").
			WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.NewReader(f, algo)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ReadAll(r, format)
}

// DetectPath returns the format and outer compression implied by a file
// name's extensions.
func DetectPath(path string) (Format, compression.Algorithm, bool) {
	name := strings.ToLower(filepath.Base(path))
	algo := compression.FromExtension(filepath.Ext(name))
	if algo != compression.None {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	format, ok := FormatFromExtension(filepath.Ext(name))
	return format, algo, ok
}

// FormatFromExtension maps a file extension such as ".parquet" to its
// format.
func FormatFromExtension(ext string) (Format, bool) {
	for _, f := range Formats() {
		if GetFormatInfo(f).FileExtension == strings.ToLower(ext) {
			return f, true
		}
	}
	return "", false
}

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{Arrow, Parquet, Avro, NPY}
}

// FormatInfo provides information about columnar formats
type FormatInfo struct {
	Format           Format
	Name             string
	Description      string
	FileExtension    string
	MIMEType         string
	SupportsCompress bool
}

// GetFormatInfo returns information about a columnar format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Arrow:
		return &FormatInfo{
			Format:           Arrow,
			Name:             "Apache Arrow",
			Description:      "Arrow IPC file with fixed-size list vector columns",
			FileExtension:    ".arrow",
			MIMEType:         "application/vnd.apache.arrow.file",
			SupportsCompress: true,
		}
	case Parquet:
		return &FormatInfo{
			Format:           Parquet,
			Name:             "Apache Parquet",
			Description:      "Columnar storage format optimized for analytics",
			FileExtension:    ".parquet",
			MIMEType:         "application/x-parquet",
			SupportsCompress: true,
		}
	case Avro:
		return &FormatInfo{
			Format:           Avro,
			Name:             "Apache Avro",
			Description:      "Row-oriented object container file",
			FileExtension:    ".avro",
			MIMEType:         "application/x-avro",
			SupportsCompress: true,
		}
	case NPY:
		return &FormatInfo{
			Format:           NPY,
			Name:             "NumPy structured array",
			Description:      "Packed little-endian records with a structured dtype header",
			FileExtension:    ".npy",
			MIMEType:         "application/octet-stream",
			SupportsCompress: false,
		}
	default:
		return nil
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// batches calls fn with consecutive [lo, hi) row ranges of at most size
// rows. A record set with no rows yields one empty range.
func batches(rows, size int, fn func(lo, hi int) error) error {
	if rows == 0 {
		return fn(0, 0)
	}
	for lo := 0; lo < rows; lo += size {
		hi := min(lo+size, rows)
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}
