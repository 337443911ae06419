package mapper

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("Sales",
		[]table.Column{
			{Name: "company", Type: table.Categorical},
			{Name: "region", Type: table.Categorical},
			{Name: "revenue", Type: table.Currency},
		},
		[][]table.Value{
			{table.String("A"), table.String("north"), table.Number(100)},
			{table.String("B"), table.String("south"), table.Number(200)},
			{table.String("C"), table.String("north"), table.Number(50)},
			{table.String("D"), table.String("south"), table.Number(400)},
		},
	)
	require.NoError(t, err)
	return tbl
}

func resolver() *Resolver {
	return NewResolver(zerolog.Nop())
}

func TestResolve_SelectsColumnsInBindingOrder(t *testing.T) {
	s, err := resolver().Resolve(deck.Binding{Columns: []string{"revenue", "company"}}, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 2, s.NumCols())
	require.Equal(t, "revenue", s.Columns[0].Name)
	require.Equal(t, 4, s.NumRows())
	require.Equal(t, 100.0, s.Rows[0][0].Num)
}

func TestResolve_MissingColumnIsUnsatisfied(t *testing.T) {
	_, err := resolver().Resolve(deck.Binding{Columns: []string{"company", "rev"}}, salesTable(t), Rules{})
	require.Error(t, err)
	require.Equal(t, deckerr.UnsatisfiedBinding, deckerr.CodeOf(err))
	require.Contains(t, err.Error(), `"rev"`)
}

func TestResolve_FiltersAreConjunctive(t *testing.T) {
	r := resolver()
	filters := []deck.Filter{
		{Column: "region", Op: OpEquals, Value: "south"},
		{Column: "revenue", Op: OpGreaterThan, Value: "250"},
	}
	b := deck.Binding{Columns: []string{"company", "revenue"}, Filters: filters, SortBy: "revenue"}
	s, err := r.Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 1, s.NumRows())
	require.Equal(t, "D", s.Rows[0][0].Raw)

	// Same result with the independent filters swapped.
	b.Filters = []deck.Filter{filters[1], filters[0]}
	s2, err := r.Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, s.Rows, s2.Rows)
}

func TestResolve_EmptyFilterResultIsUnsatisfied(t *testing.T) {
	b := deck.Binding{
		Columns: []string{"company"},
		Filters: []deck.Filter{{Column: "region", Op: OpEquals, Value: "west"}},
	}
	_, err := resolver().Resolve(b, salesTable(t), Rules{})
	require.Error(t, err)
	require.Equal(t, deckerr.UnsatisfiedBinding, deckerr.CodeOf(err))
}

func TestResolve_ExpressionFilter(t *testing.T) {
	b := deck.Binding{
		Columns: []string{"company", "revenue"},
		Filters: []deck.Filter{{Op: OpExpression, Expression: `revenue > 100 && region == "south"`}},
	}
	s, err := resolver().Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 2, s.NumRows())
	require.Equal(t, "B", s.Rows[0][0].Raw)
	require.Equal(t, "D", s.Rows[1][0].Raw)
}

func TestResolve_SortStableNullsLast(t *testing.T) {
	tbl, err := table.New("t",
		[]table.Column{{Name: "name", Type: table.Text}, {Name: "score", Type: table.Numeric}},
		[][]table.Value{
			{table.String("a"), table.Number(2)},
			{table.String("b"), table.NullValue()},
			{table.String("c"), table.Number(1)},
			{table.String("d"), table.Number(2)},
		},
	)
	require.NoError(t, err)

	b := deck.Binding{Columns: []string{"name"}, SortBy: "score", SortDir: "descending"}
	s, err := resolver().Resolve(b, tbl, Rules{})
	require.NoError(t, err)
	names := []string{s.Rows[0][0].Raw, s.Rows[1][0].Raw, s.Rows[2][0].Raw, s.Rows[3][0].Raw}
	// Ties keep input order (a before d); the null row sorts last.
	require.Equal(t, []string{"a", "d", "c", "b"}, names)
}

func TestResolve_GroupedAggregation(t *testing.T) {
	b := deck.Binding{
		Columns:   []string{"region", "revenue"},
		GroupBy:   "region",
		Aggregate: AggSum,
	}
	s, err := resolver().Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 2, s.NumRows())
	require.Equal(t, "north", s.Rows[0][0].Raw)
	require.Equal(t, 150.0, s.Rows[0][1].Num)
	require.Equal(t, "south", s.Rows[1][0].Raw)
	require.Equal(t, 600.0, s.Rows[1][1].Num)
}

func TestResolve_AggregateWithoutGroupByTotals(t *testing.T) {
	b := deck.Binding{Columns: []string{"revenue"}, Aggregate: AggMean}
	s, err := resolver().Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 1, s.NumRows())
	require.Equal(t, "Total", s.Rows[0][0].Raw)
	require.Equal(t, 187.5, s.Rows[0][1].Num)
}

func TestResolve_FormattingDoesNotAffectValues(t *testing.T) {
	b := deck.Binding{
		Columns: []string{"company", "revenue"},
		SortBy:  "revenue",
		SortDir: "descending",
		Format:  deck.Format{CurrencySymbol: "€"},
	}
	s, err := resolver().Resolve(b, salesTable(t), Rules{})
	require.NoError(t, err)
	require.Equal(t, 400.0, s.Rows[0][1].Num)
	require.Equal(t, "€400.00", s.Formatted[0][1])
}

func TestFormatValue(t *testing.T) {
	f := deck.Format{Decimals: 1}
	require.Equal(t, "12.5%", FormatValue(table.Value{Num: 0.125}, table.Percentage, f))
	require.Equal(t, "$1,234.50", FormatValue(table.Value{Num: 1234.5}, table.Currency, deck.Format{}))
	require.Equal(t, "1,234,567", FormatValue(table.Value{Num: 1234567}, table.Numeric, deck.Format{ThousandsSep: true}))
	require.Equal(t, "", FormatValue(table.NullValue(), table.Numeric, deck.Format{}))

	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "09 Mar 2024", FormatValue(table.DateValue(day), table.Date, deck.Format{DateFormat: "02 Jan 2006"}))
}
