package schema

import (
	"reflect"
	"strconv"

	"github.com/ajitpratap0/recoconv/pkg/block"
	"github.com/ajitpratap0/recoconv/pkg/dtype"
)

// RunIDField is the composite run identifier field.
const RunIDField = "runid"

// CollapseRunID joins a two-element integer vector per event into a single
// "a_b" string per event. Fields of any other shape or element type are
// returned unchanged.
func CollapseRunID(f *block.Field) (*block.Field, error) {
	if f.Rank() != 2 || f.Dims[1] != 2 {
		return f, nil
	}
	v := reflect.ValueOf(f.Values)
	n := f.Dims[0]
	if v.Kind() != reflect.Slice || v.Len() != 2*n {
		return f, nil
	}

	var format func(reflect.Value) string
	switch v.Type().Elem().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		format = func(x reflect.Value) string { return strconv.FormatInt(x.Int(), 10) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		format = func(x reflect.Value) string { return strconv.FormatUint(x.Uint(), 10) }
	default:
		return f, nil
	}

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = format(v.Index(2*i)) + "_" + format(v.Index(2*i+1))
	}
	return &block.Field{
		Name:   f.Name,
		Tag:    dtype.Unicode32.String(),
		Dims:   []int{n},
		Values: ids,
	}, nil
}
