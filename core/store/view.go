package store

import "github.com/asaidimu/go-scoss/core/schema"

// View is a read-only snapshot of the records that passed a table's filters.
// It is never updated when the table's filters change.
type View struct {
	rows []schema.Document
}

// Len returns the number of records in the view.
func (v *View) Len() int { return len(v.rows) }

// Records returns copies of the view's records.
func (v *View) Records() []schema.Document {
	out := make([]schema.Document, len(v.rows))
	for i, row := range v.rows {
		out[i] = copyDocument(row)
	}
	return out
}

func copyDocument(row schema.Document) schema.Document {
	cp := make(schema.Document, len(row))
	for k, val := range row {
		cp[k] = val
	}
	return cp
}

// First returns a copy of the first record, if any.
func (v *View) First() (schema.Document, bool) {
	if len(v.rows) == 0 {
		return nil, false
	}
	return copyDocument(v.rows[0]), true
}

// Iterator walks a view in order.
type Iterator struct {
	view *View
	pos  int
}

// Iterator returns an iterator positioned before the first record.
func (v *View) Iterator() *Iterator {
	return &Iterator{view: v}
}

// Next returns the next record and false once the view is exhausted. The
// returned record is shared with the table and must not be modified.
func (it *Iterator) Next() (schema.Document, bool) {
	if it.pos >= len(it.view.rows) {
		return nil, false
	}
	row := it.view.rows[it.pos]
	it.pos++
	return row, true
}
