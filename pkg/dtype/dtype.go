// Package dtype defines the closed set of source types a block field may
// carry and the output column types they map to.
//
// The mapping table is the enumeration itself: every SourceType variant
// knows its output type, and a tag that does not parse into a variant is
// reported as ErrorTypeUnsupportedSourceType instead of falling back to a
// default.
//
//	st, err := dtype.ParseSourceType("int32")
//	out := st.Output() // dtype.Int32Out ("i4")
package dtype

import (
	"fmt"
	"strconv"
	"strings"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// SourceType identifies the raw storage representation of a field.
type SourceType int

const (
	// Invalid is the zero value and never maps to an output type.
	Invalid SourceType = iota
	// FormatString is the text-dump "%s" format.
	FormatString
	// FormatInt is the text-dump "%d" format.
	FormatInt
	// FormatFloat is the text-dump "%f" format.
	FormatFloat
	// FormatExp is the text-dump "%e" format.
	FormatExp
	// Uint32 is a 4-byte unsigned integer array.
	Uint32
	// Int32 is a 4-byte signed integer array.
	Int32
	// Float64 is an 8-byte float array.
	Float64
	// Int64 is an 8-byte signed integer array.
	Int64
	// Int16 is a 2-byte signed integer array.
	Int16
	// Int8 is a 1-byte signed integer array.
	Int8
	// Unicode32 is a 32-character unicode string array.
	Unicode32
)

// Kind is the storage class of a value, shared by source and output types.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

type sourceInfo struct {
	tag     string
	output  OutputType
	storage string
}

var sourceTable = map[SourceType]sourceInfo{
	FormatString: {tag: "s", output: String12, storage: "string"},
	FormatInt:    {tag: "d", output: Int32Out, storage: "int32"},
	FormatFloat:  {tag: "f", output: Float32Out, storage: "float64"},
	FormatExp:    {tag: "e", output: Float32Out, storage: "float64"},
	Uint32:       {tag: "uint32", output: Uint32Out, storage: "uint32"},
	Int32:        {tag: "int32", output: Int32Out, storage: "int32"},
	Float64:      {tag: "float64", output: Float64Out, storage: "float64"},
	Int64:        {tag: "int64", output: Int64Out, storage: "int64"},
	Int16:        {tag: "int16", output: Int16Out, storage: "int16"},
	Int8:         {tag: "int8", output: Int32Out, storage: "int8"},
	Unicode32:    {tag: "<U32", output: String12, storage: "string"},
}

var sourceByTag = func() map[string]SourceType {
	m := make(map[string]SourceType, len(sourceTable))
	for st, info := range sourceTable {
		m[info.tag] = st
	}
	return m
}()

// SourceTypes returns every supported source type in declaration order.
func SourceTypes() []SourceType {
	out := make([]SourceType, 0, len(sourceTable))
	for st := FormatString; st <= Unicode32; st++ {
		out = append(out, st)
	}
	return out
}

// ParseSourceType resolves a source type tag.
func ParseSourceType(tag string) (SourceType, error) {
	st, ok := sourceByTag[tag]
	if !ok {
		return Invalid, recoerrors.New(recoerrors.ErrorTypeUnsupportedSourceType, "source type has no output mapping").
			WithDetail("source_type", tag)
	}
	return st, nil
}

// String returns the source type tag.
func (t SourceType) String() string {
	if info, ok := sourceTable[t]; ok {
		return info.tag
	}
	return "invalid"
}

// Valid reports whether t is a member of the enumeration.
func (t SourceType) Valid() bool {
	_, ok := sourceTable[t]
	return ok
}

// Output returns the output type t maps to. It returns InvalidOutput for
// Invalid.
func (t SourceType) Output() OutputType {
	return sourceTable[t].output
}

// Storage returns the Go element type name a field of this source type
// holds its values in, e.g. "int32" for FormatInt.
func (t SourceType) Storage() string {
	return sourceTable[t].storage
}

// OutputType is a primitive column type of the output record file, named
// after its NumPy type code.
type OutputType int

const (
	InvalidOutput OutputType = iota
	Int16Out
	Int32Out
	Int64Out
	Uint32Out
	Float32Out
	Float64Out
	String12
)

type outputInfo struct {
	code  string
	kind  Kind
	bits  int
	width int
}

var outputTable = map[OutputType]outputInfo{
	Int16Out:   {code: "i2", kind: KindInt, bits: 16},
	Int32Out:   {code: "i4", kind: KindInt, bits: 32},
	Int64Out:   {code: "i8", kind: KindInt, bits: 64},
	Uint32Out:  {code: "u4", kind: KindUint, bits: 32},
	Float32Out: {code: "f4", kind: KindFloat, bits: 32},
	Float64Out: {code: "f8", kind: KindFloat, bits: 64},
	String12:   {code: "U12", kind: KindString, width: 12},
}

// ParseOutputType resolves a NumPy-style type code such as "i4" or "U12".
func ParseOutputType(code string) (OutputType, error) {
	for ot, info := range outputTable {
		if info.code == code {
			return ot, nil
		}
	}
	return InvalidOutput, recoerrors.New(recoerrors.ErrorTypeValidation, "unknown output type code").
		WithDetail("code", code)
}

func (t OutputType) String() string {
	if info, ok := outputTable[t]; ok {
		return info.code
	}
	return "invalid"
}

// Kind returns the storage class of the output type.
func (t OutputType) Kind() Kind {
	return outputTable[t].kind
}

// Bits returns the bit width of numeric output types, 0 for strings.
func (t OutputType) Bits() int {
	return outputTable[t].bits
}

// Width returns the fixed character width of string output types, 0 for
// numeric types.
func (t OutputType) Width() int {
	return outputTable[t].width
}

// ItemSize returns the number of bytes one element occupies in a packed
// little-endian record. Strings are stored as UCS-4 code points.
func (t OutputType) ItemSize() int {
	info := outputTable[t]
	if info.kind == KindString {
		return info.width * 4
	}
	return info.bits / 8
}

// Descriptor is the output type of one schema column: a primitive type and,
// for vector columns, the fixed number of elements per event.
type Descriptor struct {
	Type   OutputType
	Length int
}

// Scalar builds a scalar descriptor.
func Scalar(t OutputType) Descriptor {
	return Descriptor{Type: t}
}

// Vector builds a fixed-length vector descriptor.
func Vector(t OutputType, length int) Descriptor {
	return Descriptor{Type: t, Length: length}
}

// IsVector reports whether the descriptor describes a fixed-length vector.
func (d Descriptor) IsVector() bool {
	return d.Length > 0
}

// Elements returns the number of elements stored per event.
func (d Descriptor) Elements() int {
	if d.Length > 0 {
		return d.Length
	}
	return 1
}

// String renders "i4" for scalars and "i4[4]" for vectors.
func (d Descriptor) String() string {
	if d.Length > 0 {
		return fmt.Sprintf("%s[%d]", d.Type, d.Length)
	}
	return d.Type.String()
}

// ParseDescriptor is the inverse of Descriptor.String.
func ParseDescriptor(s string) (Descriptor, error) {
	code := s
	length := 0
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return Descriptor{}, recoerrors.New(recoerrors.ErrorTypeValidation, "malformed type descriptor").
				WithDetail("descriptor", s)
		}
		n, err := strconv.Atoi(s[i+1 : len(s)-1])
		if err != nil || n <= 0 {
			return Descriptor{}, recoerrors.New(recoerrors.ErrorTypeValidation, "malformed vector length").
				WithDetail("descriptor", s)
		}
		code, length = s[:i], n
	}
	t, err := ParseOutputType(code)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Type: t, Length: length}, nil
}
