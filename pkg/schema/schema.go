// Package schema derives the fixed row layout of the output record file from
// a filtered block.
//
// A Schema is an ordered list of (name, descriptor) columns plus the event
// count shared by every column. It is built once per conversion by Infer and
// is read-only afterwards.
package schema

import (
	"github.com/ajitpratap0/recoconv/pkg/dtype"
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Column is one named, typed column of the output record set.
type Column struct {
	Name       string
	Descriptor dtype.Descriptor
}

// Schema is the ordered row layout of a record set.
type Schema struct {
	columns []Column
	index   map[string]int
	events  int
}

// New builds a schema from columns in order. Column names must be unique
// and descriptors valid.
func New(events int, columns ...Column) (*Schema, error) {
	if events < 0 {
		return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "negative event count").
			WithDetail("events", events)
	}
	s := &Schema{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		events:  events,
	}
	for i, c := range columns {
		if _, dup := s.index[c.Name]; dup {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "duplicate column name").
				WithDetail("column", c.Name)
		}
		if c.Descriptor.Type.Kind() == dtype.KindInvalid || c.Descriptor.Length < 0 {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "invalid column descriptor").
				WithDetail("column", c.Name)
		}
		s.columns[i] = c
		s.index[c.Name] = i
	}
	return s, nil
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Events returns the validated event count.
func (s *Schema) Events() int {
	return s.events
}

// Columns returns a copy of the columns in order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Column returns the i-th column.
func (s *Schema) Column(i int) Column {
	return s.columns[i]
}

// Lookup returns the named column and its position.
func (s *Schema) Lookup(name string) (Column, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, -1, false
	}
	return s.columns[i], i, true
}

// Names returns column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Types returns descriptor strings in column order.
func (s *Schema) Types() []string {
	types := make([]string, len(s.columns))
	for i, c := range s.columns {
		types[i] = c.Descriptor.String()
	}
	return types
}

// Table renders the diagnostic names/types table.
func (s *Schema) Table() string {
	return FormatTable(s.Names(), s.Types())
}

// Equal reports whether two schemas have the same columns in the same order
// and the same event count.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.events != o.events || len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}
