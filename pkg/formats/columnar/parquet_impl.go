package columnar

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/recoconv/pkg/encoder"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	writer         *countingWriter
	config         *WriterConfig
	codec          compress.Compression
	pool           memory.Allocator
	fileWriter     *pqarrow.FileWriter
	recordsWritten int64
}

func newParquetWriter(w *countingWriter, config *WriterConfig) (*parquetWriter, error) {
	codec, err := getParquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return &parquetWriter{
		writer: w,
		config: config,
		codec:  codec,
		pool:   memory.NewGoAllocator(),
	}, nil
}

func (pw *parquetWriter) Write(rs *encoder.RecordSet) error {
	if pw.fileWriter != nil {
		return recoerrors.New(recoerrors.ErrorTypeValidation, "Parquet writer already written")
	}
	arrowSchema := toParquetSchema(rs.Schema())

	props := parquet.NewWriterProperties(
		parquet.WithCompression(pw.codec),
		parquet.WithAllocator(pw.pool),
	)
	// the stored Arrow schema keeps the dtype metadata
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pw.pool),
		pqarrow.WithStoreSchema(),
	)
	fw, err := pqarrow.NewFileWriter(arrowSchema, pw.writer, props, arrowProps)
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to create Parquet writer")
	}
	pw.fileWriter = fw

	return batches(rs.NumRows(), pw.config.BatchSize, func(lo, hi int) error {
		if hi == lo {
			return nil
		}
		rec, err := buildRecord(pw.pool, arrowSchema, rs, lo, hi)
		if err != nil {
			return err
		}
		defer rec.Release()

		if err := fw.Write(rec); err != nil {
			return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to write row group")
		}
		pw.recordsWritten += int64(hi - lo)
		return nil
	})
}

func (pw *parquetWriter) Close() error {
	if pw.fileWriter == nil {
		return nil
	}
	if err := pw.fileWriter.Close(); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) BytesWritten() int64 {
	return pw.writer.n
}

func (pw *parquetWriter) RecordsWritten() int64 {
	return pw.recordsWritten
}

// parquetReader implements Reader for Parquet format
type parquetReader struct {
	data []byte
}

func newParquetReader(r io.Reader) (*parquetReader, error) {
	// Parquet footers need a seekable reader
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeFile, "failed to read Parquet data")
	}
	return &parquetReader{data: data}, nil
}

// Read decodes one row group at a time. Nested columns spanning several
// row groups cannot be read as a single table.
func (pr *parquetReader) Read() (*encoder.RecordSet, error) {
	pool := memory.NewGoAllocator()
	rdr, err := file.NewParquetReader(bytes.NewReader(pr.data),
		file.WithReadProps(parquet.NewReaderProperties(pool)))
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to open Parquet file")
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, pool)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read Parquet schema")
	}
	as, err := fr.Schema()
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read Parquet schema")
	}

	chunks := make([][]arrow.Array, as.NumFields())
	defer func() {
		for _, col := range chunks {
			for _, c := range col {
				c.Release()
			}
		}
	}()

	leaves := make([]int, rdr.MetaData().Schema.NumColumns())
	for i := range leaves {
		leaves[i] = i
	}

	ctx := context.Background()
	for rg := 0; rg < rdr.NumRowGroups(); rg++ {
		if rdr.RowGroup(rg).NumRows() == 0 {
			continue
		}
		tbl, err := fr.ReadRowGroups(ctx, leaves, []int{rg})
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read Parquet row group").
				WithDetail("row_group", rg)
		}
		for j := range chunks {
			for _, c := range tbl.Column(j).Data().Chunks() {
				c.Retain()
				chunks[j] = append(chunks[j], c)
			}
		}
		tbl.Release()
	}
	return fromArrow(as, chunks)
}

func (pr *parquetReader) Format() Format {
	return Parquet
}

func getParquetCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	default:
		return compress.Codecs.Uncompressed, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported Parquet compression").
			WithDetail("compression", name)
	}
}
