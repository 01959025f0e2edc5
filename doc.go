// Package recoconv converts per-run reconstruction blocks into strongly
// typed columnar record files.
//
// A block is a set of named measurement fields, each an array holding one
// scalar or one fixed-width vector per event. recoconv turns it into one
// homogeneous record per event:
//
//  1. Field Filter drops the fields of the skip list.
//  2. Schema Inferer collapses composite identifiers (runid becomes "run_event"
//     strings), classifies every field as scalar or vector, maps source types
//     to output types and rejects blocks whose fields disagree on the event
//     count.
//  3. Record Encoder re-encodes every value into its column without silent
//     truncation or wrapping.
//  4. The record set is written as Arrow IPC, Parquet, Avro or a NumPy
//     structured array, optionally stream-compressed, to a local path, S3 or
//     GCS. Nothing is left at the output location unless the write commits.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/recoconv/internal/pipeline"
//	    "github.com/ajitpratap0/recoconv/pkg/logger"
//	)
//
//	conv := pipeline.NewConverter(pipeline.DefaultOptions(), logger.Get())
//	report, err := conv.Convert(context.Background(), "reco.json", "out/reco_events.arrow")
//
// or from the command line:
//
//	recoconv convert reco.json out/reco_events.arrow
//	recoconv schema merged_all.txt
//	recoconv inspect out/reco_events.arrow -n 5
//
// # Key Packages
//
//	pkg/block              - In-memory blocks and the reader registry
//	pkg/block/jsonblock    - JSON block documents
//	pkg/block/textdump     - Legacy merged_all.txt text dumps
//	pkg/dtype              - Source and output type tables
//	pkg/filter             - Skip list filtering
//	pkg/schema             - Schema inference and the diagnostic table
//	pkg/encoder            - Column buffers and value coercion
//	pkg/formats/columnar   - Arrow, Parquet, Avro and NPY files
//	pkg/compression        - Stream compression codecs
//	pkg/storage            - Local, S3 and GCS output targets
//	pkg/config             - Layered configuration
//	pkg/errors             - Structured error handling
//	pkg/logger             - Structured logging
//	pkg/metrics            - Prometheus run metrics
//	pkg/observability      - Stage tracing and process sampling
//
// # Configuration
//
// Settings come from defaults, an optional YAML file (--config), RECOCONV_*
// environment variables and command-line flags, in increasing precedence.
// ${VAR_NAME} references in the YAML file are expanded.
//
//	recoconv config init recoconv.yaml
package recoconv
