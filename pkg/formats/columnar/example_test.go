package columnar_test

import (
	"bytes"
	"fmt"
	"log"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/compression"
	"github.com/ajitpratap0/recoconv/pkg/encoder"
	"github.com/ajitpratap0/recoconv/pkg/formats/columnar"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

func exampleRecords() *encoder.RecordSet {
	b := block.MustNew(
		block.NewVector("runid", "int32", [][]int32{{12, 7}, {12, 8}}),
		block.NewScalar("energy", "float64", []float64{1.5, 2.25}),
	)
	s, out, err := schema.Infer(b)
	if err != nil {
		log.Fatal(err)
	}
	rs, err := encoder.Encode(out, s)
	if err != nil {
		log.Fatal(err)
	}
	return rs
}

// Example writes the same records in every format and reads them back.
func Example() {
	rs := exampleRecords()

	for _, format := range columnar.Formats() {
		var buf bytes.Buffer
		w, err := columnar.NewWriter(&buf, &columnar.WriterConfig{Format: format})
		if err != nil {
			log.Fatal(err)
		}
		if err := w.Write(rs); err != nil {
			log.Fatal(err)
		}
		if err := w.Close(); err != nil {
			log.Fatal(err)
		}

		back, err := columnar.ReadAll(&buf, format)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %v %v\n", format, back.Schema().Types(), back.Row(1))
	}

	// Output:
	// arrow: [U12 f8] [12_8 2.25]
	// parquet: [U12 f8] [12_8 2.25]
	// avro: [U12 f8] [12_8 2.25]
	// npy: [U12 f8] [12_8 2.25]
}

// Example_streamCompression wraps a record file in an outer zstd stream, as
// the converter does for names such as "events.parquet.zst".
func Example_streamCompression() {
	rs := exampleRecords()
	format, algo, _ := columnar.DetectPath("events.parquet.zst")

	var buf bytes.Buffer
	zw, err := compression.NewWriter(&buf, algo, compression.Best)
	if err != nil {
		log.Fatal(err)
	}
	w, err := columnar.NewWriter(zw, &columnar.WriterConfig{Format: format, Compression: "snappy"})
	if err != nil {
		log.Fatal(err)
	}
	if err := w.Write(rs); err != nil {
		log.Fatal(err)
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		log.Fatal(err)
	}

	zr, err := compression.NewReader(&buf, algo)
	if err != nil {
		log.Fatal(err)
	}
	defer zr.Close()
	back, err := columnar.ReadAll(zr, format)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(format, algo, back.NumRows())

	// Output:
	// parquet zstd 2
}
