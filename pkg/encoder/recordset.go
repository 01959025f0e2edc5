package encoder

import (
	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
	"github.com/ajitpratap0/recoconv/pkg/schema"
)

// Row is one event: a portable value per schema column, in schema order.
type Row []any

// RecordSet is a complete, typed, column-oriented record set. Every column
// holds exactly Schema().Events() rows.
type RecordSet struct {
	schema  *schema.Schema
	columns []*Column
}

// NewRecordSet assembles a record set from filled columns. Columns must
// match the schema by position, name and descriptor, and be complete.
func NewRecordSet(s *schema.Schema, columns []*Column) (*RecordSet, error) {
	if len(columns) != s.Len() {
		return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "column count does not match schema").
			WithDetail("schema", s.Len()).
			WithDetail("columns", len(columns))
	}
	for i, c := range columns {
		want := s.Column(i)
		if c.Name != want.Name || c.Descriptor != want.Descriptor {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "column does not match schema").
				WithDetail("column", c.Name).
				WithDetail("expected", want.Name+" "+want.Descriptor.String()).
				WithDetail("got", c.Name+" "+c.Descriptor.String())
		}
		if c.Len() != s.Events()*c.Descriptor.Elements() {
			return nil, recoerrors.New(recoerrors.ErrorTypeValidation, "column is incomplete").
				WithDetail("column", c.Name).
				WithDetail("events", s.Events()).
				WithDetail("elements", c.Len())
		}
	}
	return &RecordSet{schema: s, columns: columns}, nil
}

// Schema returns the record set's schema.
func (r *RecordSet) Schema() *schema.Schema {
	return r.schema
}

// NumRows returns the number of events.
func (r *RecordSet) NumRows() int {
	return r.schema.Events()
}

// Columns returns the column buffers in schema order. The buffers are
// shared and must not be modified.
func (r *RecordSet) Columns() []*Column {
	out := make([]*Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// Column returns the i-th column buffer.
func (r *RecordSet) Column(i int) *Column {
	return r.columns[i]
}

// Row assembles event i.
func (r *RecordSet) Row(i int) Row {
	row := make(Row, len(r.columns))
	for j, c := range r.columns {
		row[j] = c.Value(i)
	}
	return row
}

// Rows assembles every event in order.
func (r *RecordSet) Rows() []Row {
	rows := make([]Row, r.NumRows())
	for i := range rows {
		rows[i] = r.Row(i)
	}
	return rows
}
