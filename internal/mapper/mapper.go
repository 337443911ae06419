// Package mapper resolves a component's declared data binding against a
// typed table, producing the component-ready data slice. Resolution
// applies, in order: column selection, AND-combined filter predicates,
// stable sort with nulls last, optional grouped aggregation, and purely
// presentational formatting.
package mapper

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Aggregation operators.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// Rules carries processing defaults that apply when a binding leaves them
// unspecified.
type Rules struct {
	DefaultFormat deck.Format
}

// Slice is the resolved, component-ready view of a table. Rows hold
// normalized values; Formatted holds the presentation strings derived
// from them. Both share the same shape.
type Slice struct {
	Columns   []table.Column
	Rows      [][]table.Value
	Formatted [][]string
}

// NumRows returns the row count.
func (s *Slice) NumRows() int { return len(s.Rows) }

// NumCols returns the column count.
func (s *Slice) NumCols() int { return len(s.Columns) }

// ColumnIndex resolves a column name within the slice.
func (s *Slice) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Resolver resolves bindings. It is safe for concurrent use; the
// expression cache is shared across render passes.
type Resolver struct {
	eval evaluator
	log  zerolog.Logger
}

// NewResolver constructs a Resolver with the given logger.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{log: logger}
}

// Resolve validates and executes a binding against a table. Unresolvable
// column names and filter chains that eliminate every row surface as
// UNSATISFIED_BINDING errors for the engine to isolate per component.
func (r *Resolver) Resolve(b deck.Binding, t *table.Table, rules Rules) (*Slice, error) {
	if missing := missingColumns(b, t); len(missing) > 0 {
		return nil, deckerr.Errorf(deckerr.UnsatisfiedBinding,
			"binding references missing column(s) %s in table %q",
			strings.Join(missing, ", "), t.Name())
	}

	selected := selectedColumns(b, t)

	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}

	rows, err := r.applyFilters(t, rows, b.Filters)
	if err != nil {
		return nil, deckerr.Wrap(deckerr.UnsatisfiedBinding, err, "filter execution failed")
	}
	if len(rows) == 0 && t.NumRows() > 0 {
		return nil, deckerr.Errorf(deckerr.UnsatisfiedBinding,
			"filters matched no rows in table %q", t.Name())
	}

	if b.SortBy != "" {
		sortRows(t, rows, b.SortBy, b.SortDir)
	}

	slice, err := materialize(t, rows, selected)
	if err != nil {
		return nil, err
	}

	if b.Aggregate != "" {
		slice, err = aggregate(slice, b.GroupBy, b.Aggregate)
		if err != nil {
			return nil, err
		}
	}

	format := b.Format
	if format == (deck.Format{}) {
		format = rules.DefaultFormat
	}
	slice.Formatted = formatSlice(slice, format)
	return slice, nil
}

// missingColumns returns binding column references absent from the table,
// deduplicated in first-mention order.
func missingColumns(b deck.Binding, t *table.Table) []string {
	var missing []string
	seen := map[string]bool{}
	for _, name := range b.ReferencedColumns() {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := t.ColumnIndex(name); !ok {
			missing = append(missing, strconv.Quote(name))
		}
	}
	return missing
}

// selectedColumns decides the output column order: explicit columns win,
// then chart axes, then the whole table.
func selectedColumns(b deck.Binding, t *table.Table) []string {
	if len(b.Columns) > 0 {
		return b.Columns
	}
	var names []string
	if b.XAxis != "" {
		names = append(names, b.XAxis)
	}
	names = append(names, b.YAxis...)
	if len(names) > 0 {
		return names
	}
	cols := t.Columns()
	names = make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// sortRows stably sorts row indices by one column. Nulls sort last in
// both directions; comparisons use normalized values.
func sortRows(t *table.Table, rows []int, by, dir string) {
	ci, ok := t.ColumnIndex(by)
	if !ok {
		return
	}
	colType := t.Column(ci).Type
	desc := dir == "descending"
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := t.Value(rows[i], ci), t.Value(rows[j], ci)
		if a.Null || b.Null {
			return !a.Null && b.Null
		}
		less := lessValue(a, b, colType)
		if desc {
			return lessValue(b, a, colType)
		}
		return less
	})
}

func lessValue(a, b table.Value, t table.Type) bool {
	switch t {
	case table.Numeric, table.Currency, table.Percentage:
		return a.Num < b.Num
	case table.Date:
		return a.Time.Before(b.Time)
	default:
		return strings.ToLower(a.Raw) < strings.ToLower(b.Raw)
	}
}

// materialize copies the selected columns of the surviving rows into a
// new slice; the source table is never mutated.
func materialize(t *table.Table, rows []int, names []string) (*Slice, error) {
	cols := make([]table.Column, len(names))
	idx := make([]int, len(names))
	for i, n := range names {
		ci, ok := t.ColumnIndex(n)
		if !ok {
			return nil, deckerr.Errorf(deckerr.UnsatisfiedBinding,
				"binding references missing column(s) %q in table %q", n, t.Name())
		}
		cols[i] = t.Column(ci)
		idx[i] = ci
	}
	out := make([][]table.Value, len(rows))
	for r, row := range rows {
		vals := make([]table.Value, len(idx))
		for i, ci := range idx {
			vals[i] = t.Value(row, ci)
		}
		out[r] = vals
	}
	return &Slice{Columns: cols, Rows: out}, nil
}

// aggregate groups the slice by the designated column and reduces every
// numeric column with the operator. An empty groupBy reduces the whole
// slice to a single "Total" row. Group order is first-seen, keeping
// output deterministic for identical input.
func aggregate(s *Slice, groupBy, op string) (*Slice, error) {
	gi := -1
	if groupBy != "" {
		var ok bool
		gi, ok = s.ColumnIndex(groupBy)
		if !ok {
			return nil, deckerr.Errorf(deckerr.UnsatisfiedBinding, "group column %q not in selection", groupBy)
		}
	}

	var numericIdx []int
	for i, c := range s.Columns {
		if i == gi {
			continue
		}
		switch c.Type {
		case table.Numeric, table.Currency, table.Percentage:
			numericIdx = append(numericIdx, i)
		default:
			if op == AggCount {
				numericIdx = append(numericIdx, i)
			}
		}
	}
	if len(numericIdx) == 0 {
		return nil, deckerr.Errorf(deckerr.UnsatisfiedBinding,
			"aggregation %q needs at least one numeric column in the selection", op)
	}

	groupKey := func(row []table.Value) string {
		if gi < 0 {
			return "Total"
		}
		return row[gi].Raw
	}

	var order []string
	grouped := map[string][][]table.Value{}
	for _, row := range s.Rows {
		k := groupKey(row)
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], row)
	}

	var cols []table.Column
	if gi >= 0 {
		cols = append(cols, s.Columns[gi])
	} else {
		cols = append(cols, table.Column{Name: "group", Type: table.Categorical})
	}
	for _, i := range numericIdx {
		ct := table.Numeric
		if op != AggCount {
			ct = s.Columns[i].Type
		}
		cols = append(cols, table.Column{Name: s.Columns[i].Name, Type: ct})
	}

	rows := make([][]table.Value, 0, len(order))
	for _, k := range order {
		members := grouped[k]
		out := make([]table.Value, 0, len(cols))
		out = append(out, table.String(k))
		for _, i := range numericIdx {
			out = append(out, table.Number(reduce(members, i, op)))
		}
		rows = append(rows, out)
	}
	return &Slice{Columns: cols, Rows: rows}, nil
}

// ReduceColumn applies one aggregation operator across a full table
// column. The second return is false when the column does not exist.
func ReduceColumn(t *table.Table, column, op string) (float64, bool) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return 0, false
	}
	rows := make([][]table.Value, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		rows = append(rows, t.Row(i))
	}
	return reduce(rows, idx, op), true
}

func reduce(rows [][]table.Value, col int, op string) float64 {
	if op == AggCount {
		n := 0
		for _, row := range rows {
			if !row[col].Null {
				n++
			}
		}
		return float64(n)
	}
	var vals []float64
	for _, row := range rows {
		if !row[col].Null {
			vals = append(vals, row[col].Num)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	switch op {
	case AggSum, AggMean:
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		if op == AggMean {
			return sum / float64(len(vals))
		}
		return sum
	case AggMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case AggMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	return 0
}
