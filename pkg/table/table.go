// Package table provides the immutable, typed, in-memory tabular dataset
// consumed by the composition pipeline. Tables are created once per input
// load or aggregation cycle; transformations always allocate new tables.
package table

import (
	"fmt"
	"time"
)

// Type is the inferred semantic type of a column.
type Type string

const (
	Numeric     Type = "numeric"
	Currency    Type = "currency"
	Percentage  Type = "percentage"
	Date        Type = "date"
	Categorical Type = "categorical"
	Text        Type = "text"
)

// Column pairs a unique name with its inferred type.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Value is a single normalized cell. Num is authoritative for
// numeric/currency/percentage columns, Time for date columns, and Raw for
// categorical/text columns. Raw always preserves the trimmed source text.
type Value struct {
	Raw  string
	Num  float64
	Time time.Time
	Null bool
}

// Number builds a numeric cell.
func Number(f float64) Value {
	return Value{Raw: fmt.Sprintf("%v", f), Num: f}
}

// String builds a text cell.
func String(s string) Value {
	return Value{Raw: s}
}

// DateValue builds a date cell.
func DateValue(t time.Time) Value {
	return Value{Raw: t.Format("2006-01-02"), Time: t}
}

// NullValue builds an empty cell.
func NullValue() Value {
	return Value{Null: true}
}

// Table is an ordered set of named, typed columns with ordered rows.
// It is immutable once constructed.
type Table struct {
	name  string
	cols  []Column
	index map[string]int
	rows  [][]Value
}

// New constructs a table, validating unique column names and uniform row
// width. The slices are copied; callers keep ownership of their inputs.
func New(name string, cols []Column, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("table %q: column %d has empty name", name, i)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", name, c.Name)
		}
		index[c.Name] = i
	}
	copied := make([][]Value, len(rows))
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("table %q: row %d has %d cells, want %d", name, i, len(r), len(cols))
		}
		copied[i] = append([]Value(nil), r...)
	}
	return &Table{
		name:  name,
		cols:  append([]Column(nil), cols...),
		index: index,
		rows:  copied,
	}, nil
}

// Name returns the table's source name (typically the sheet name).
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the ordered column metadata.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnIndex resolves a column name to its position.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Column returns metadata for a column by position.
func (t *Table) Column(i int) Column { return t.cols[i] }

// Value returns the cell at (row, col).
func (t *Table) Value(row, col int) Value { return t.rows[row][col] }

// Row returns a copy of one row.
func (t *Table) Row(i int) []Value {
	return append([]Value(nil), t.rows[i]...)
}

// Select produces a new table containing the named columns in the given
// order. Unknown names are reported with the offending column.
func (t *Table) Select(names []string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for i, n := range names {
		ci, ok := t.index[n]
		if !ok {
			return nil, fmt.Errorf("table %q: unknown column %q", t.name, n)
		}
		idx[i] = ci
		cols[i] = t.cols[ci]
	}
	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		out := make([]Value, len(idx))
		for i, ci := range idx {
			out[i] = row[ci]
		}
		rows[r] = out
	}
	return New(t.name, cols, rows)
}
