package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Filter operators. Filters in a binding chain are AND-combined, so the
// order of independent filters never changes the result set.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpExpression  = "expression"
)

// evaluator compiles and caches expression predicates, keyed by source
// text. Compiled programs are reused across rows and render passes.
type evaluator struct {
	cache sync.Map // expression string → *vm.Program
}

func (e *evaluator) isTrue(expression string, env map[string]any) (bool, error) {
	program, err := e.compile(expression, env)
	if err != nil {
		return false, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	if result == nil {
		return false, nil
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q evaluated to %T, expected bool", expression, result)
	}
	return b, nil
}

func (e *evaluator) compile(expression string, env map[string]any) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// rowEnv exposes one row to expression predicates: column name → native
// value (float64 for numeric family, time.Time for dates, string
// otherwise, nil when null). Columns addressable this way must carry
// identifier-safe names.
func rowEnv(t *table.Table, row int) map[string]any {
	env := make(map[string]any, t.NumCols())
	for c := 0; c < t.NumCols(); c++ {
		col := t.Column(c)
		v := t.Value(row, c)
		if v.Null {
			env[col.Name] = nil
			continue
		}
		switch col.Type {
		case table.Numeric, table.Currency, table.Percentage:
			env[col.Name] = v.Num
		case table.Date:
			env[col.Name] = v.Time
		default:
			env[col.Name] = v.Raw
		}
	}
	return env
}

// matchRow evaluates one non-expression predicate against a row. Null
// cells match only not_equals; comparisons operate on normalized values,
// never on formatted output.
func matchRow(t *table.Table, row int, f deck.Filter) (bool, error) {
	ci, ok := t.ColumnIndex(f.Column)
	if !ok {
		return false, fmt.Errorf("unknown filter column %q", f.Column)
	}
	col := t.Column(ci)
	v := t.Value(row, ci)
	if v.Null {
		return f.Op == OpNotEquals, nil
	}

	switch col.Type {
	case table.Numeric, table.Currency, table.Percentage:
		want, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil {
			return false, fmt.Errorf("filter value %q is not numeric for column %q", f.Value, f.Column)
		}
		switch f.Op {
		case OpEquals:
			return v.Num == want, nil
		case OpNotEquals:
			return v.Num != want, nil
		case OpGreaterThan:
			return v.Num > want, nil
		case OpLessThan:
			return v.Num < want, nil
		case OpContains:
			return strings.Contains(v.Raw, f.Value), nil
		}
	case table.Date:
		want, err := parseFilterDate(f.Value)
		if err != nil {
			return false, fmt.Errorf("filter value %q is not a date for column %q", f.Value, f.Column)
		}
		switch f.Op {
		case OpEquals:
			return v.Time.Equal(want), nil
		case OpNotEquals:
			return !v.Time.Equal(want), nil
		case OpGreaterThan:
			return v.Time.After(want), nil
		case OpLessThan:
			return v.Time.Before(want), nil
		case OpContains:
			return strings.Contains(v.Raw, f.Value), nil
		}
	default:
		have := strings.ToLower(v.Raw)
		want := strings.ToLower(strings.TrimSpace(f.Value))
		switch f.Op {
		case OpEquals:
			return have == want, nil
		case OpNotEquals:
			return have != want, nil
		case OpGreaterThan:
			return have > want, nil
		case OpLessThan:
			return have < want, nil
		case OpContains:
			return strings.Contains(have, want), nil
		}
	}
	return false, fmt.Errorf("unknown filter op %q", f.Op)
}

func parseFilterDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02", "01/02/2006", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// applyFilters returns the row indices that pass every predicate.
func (r *Resolver) applyFilters(t *table.Table, rows []int, filters []deck.Filter) ([]int, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	out := make([]int, 0, len(rows))
	for _, row := range rows {
		pass := true
		for _, f := range filters {
			var (
				ok  bool
				err error
			)
			if f.Op == OpExpression {
				ok, err = r.eval.isTrue(f.Expression, rowEnv(t, row))
			} else {
				ok, err = matchRow(t, row, f)
			}
			if err != nil {
				return nil, err
			}
			if !ok {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, row)
		}
	}
	return out, nil
}
