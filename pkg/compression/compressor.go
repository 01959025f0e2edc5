// Package compression wraps record file streams with an outer compression
// codec.
//
// # Algorithm Selection
//
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip: Wide compatibility, good compression
//   - Deflate: Raw deflate stream without gzip framing
//
// # Basic Usage
//
//	w, err := compression.NewWriter(file, compression.Zstd, compression.Default)
//	// write the record file to w
//	err = w.Close() // flushes the codec, file stays open
//
// Readers pick the algorithm from the file name with FromExtension.
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var extensions = map[Algorithm]string{
	Gzip:    ".gz",
	Snappy:  ".sz",
	LZ4:     ".lz4",
	Zstd:    ".zst",
	S2:      ".s2",
	Deflate: ".deflate",
}

// Algorithms returns every supported algorithm except None.
func Algorithms() []Algorithm {
	return []Algorithm{Gzip, Snappy, LZ4, Zstd, S2, Deflate}
}

// ParseAlgorithm resolves an algorithm name. The empty string means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" || a == None {
		return None, nil
	}
	if _, ok := extensions[a]; !ok {
		return None, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", name)
	}
	return a, nil
}

// Extension returns the file name suffix for an algorithm, "" for None.
func (a Algorithm) Extension() string {
	return extensions[a]
}

// FromExtension returns the algorithm a file suffix such as ".zst" implies,
// or None.
func FromExtension(ext string) Algorithm {
	ext = strings.ToLower(ext)
	for a, e := range extensions {
		if e == ext {
			return a
		}
	}
	return None
}

// ParseLevel resolves a level name: fastest, default, better or best.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported compression level").
			WithDetail("level", name)
	}
}

// NewWriter wraps w with a compressing writer. Closing the returned writer
// flushes the codec but does not close w.
func NewWriter(w io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to create gzip writer")
		}
		return gw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to configure lz4 writer")
		}
		return lw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to create zstd writer")
		}
		return enc, nil
	case S2:
		return s2.NewWriter(w, s2WriterOptions(level)...), nil
	case Deflate:
		fw, err := flate.NewWriter(w, mapDeflateLevel(level))
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "failed to create deflate writer")
		}
		return fw, nil
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(algo))
	}
}

// NewReader wraps r with a decompressing reader. Closing the returned
// reader releases codec resources but does not close r.
func NewReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to read gzip header")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeData, "failed to create zstd reader")
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	default:
		return nil, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(algo))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func s2WriterOptions(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}
