// Package errors provides examples of structured error handling in recoconv.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/recoconv/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeUnsupportedShape, "field has more than two dimensions").
		WithDetail("field", "waveform").
		WithDetail("dims", []int{10, 3, 2})

	fmt.Println(err.Error())

	// Output:
	// unsupported_shape: field has more than two dimensions (dims=[10 3 2], field=waveform)
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read block").
		WithDetail("path", "merged_all.json")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err.Error())

	// Output:
	// This is a file error
	// file: failed to read block (path=merged_all.json): unexpected EOF
}

// ExampleIsConversionError shows how the CLI separates data errors from
// environment errors.
func ExampleIsConversionError() {
	dataErr := errors.New(errors.ErrorTypeInconsistentEventCount, "fields disagree on event count")
	cfgErr := errors.New(errors.ErrorTypeConfig, "unknown output format")

	fmt.Println(errors.IsConversionError(dataErr))
	fmt.Println(errors.IsConversionError(cfgErr))

	// Output:
	// true
	// false
}
