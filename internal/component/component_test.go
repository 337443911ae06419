package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

var bounds = surface.Bounds{Width: 720, Height: 540}

func slice() *mapper.Slice {
	return &mapper.Slice{
		Columns: []table.Column{
			{Name: "company", Type: table.Categorical},
			{Name: "revenue", Type: table.Currency},
		},
		Rows: [][]table.Value{
			{table.String("A"), table.Number(100)},
			{table.String("B"), table.Number(400)},
			{table.String("C"), table.Number(250)},
		},
		Formatted: [][]string{
			{"A", "$100.00"},
			{"B", "$400.00"},
			{"C", "$250.00"},
		},
	}
}

func pos() deck.Position {
	return deck.Position{Left: 40, Top: 40, Width: 400, Height: 300}
}

func TestRegistry_KindsStableSorted(t *testing.T) {
	r := Builtin()
	require.Equal(t, []string{"chart", "image", "summary", "table", "text"}, r.Kinds())
}

func TestRegistry_ThirdPartyRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register("gauge", NewText)
	_, ok := r.Lookup("gauge")
	require.True(t, ok)
	_, ok = r.Lookup("table")
	require.False(t, ok)
}

func TestPositionDefects_OutOfBounds(t *testing.T) {
	c, err := NewTable(deck.ComponentConfig{
		Kind:     "table",
		Position: deck.Position{Left: 700, Top: 0, Width: 100, Height: 50},
		Binding:  deck.Binding{Columns: []string{"a"}},
	}, Env{})
	require.NoError(t, err)
	defects := c.Validate(bounds)
	require.Len(t, defects, 1)
	require.Contains(t, defects[0], "exceeds surface bounds")
}

func TestTable_RendersHeaderAndBody(t *testing.T) {
	c, err := NewTable(deck.ComponentConfig{
		Kind:     "table",
		Position: pos(),
		Binding:  deck.Binding{Columns: []string{"company", "revenue"}},
	}, Env{Branding: deck.Branding{Colors: []string{"#112233"}}})
	require.NoError(t, err)
	require.Empty(t, c.Validate(bounds))

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, slice()))

	ops := rec.Log()
	require.Len(t, ops, 1)
	require.Equal(t, "table", ops[0].Op)
	require.Equal(t, []string{"company", "revenue"}, ops[0].Table.Headers)
	require.Len(t, ops[0].Table.Rows, 3)
	require.Equal(t, "#112233", ops[0].Table.HeaderFill)
}

func TestChart_SeriesFromYAxis(t *testing.T) {
	c, err := NewChart(deck.ComponentConfig{
		Kind:     "chart",
		Position: pos(),
		Options:  map[string]string{"chart_type": "bar"},
		Binding:  deck.Binding{XAxis: "company", YAxis: []string{"revenue"}},
	}, Env{})
	require.NoError(t, err)
	require.Empty(t, c.Validate(bounds))

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, slice()))

	ops := rec.Log()
	require.Len(t, ops, 1)
	require.Equal(t, surface.Bar, ops[0].Chart.Type)
	require.Equal(t, []string{"A", "B", "C"}, ops[0].Chart.Categories)
	require.Len(t, ops[0].Chart.Series, 1)
	require.Equal(t, []float64{100, 400, 250}, ops[0].Chart.Series[0].Values)
}

func TestChart_ValidateRequiresAxes(t *testing.T) {
	c, err := NewChart(deck.ComponentConfig{Kind: "chart", Position: pos(),
		Options: map[string]string{"chart_type": "donut"}}, Env{})
	require.NoError(t, err)
	defects := c.Validate(bounds)
	require.Len(t, defects, 3)
}

func TestText_PlaceholderSubstitution(t *testing.T) {
	c, err := NewText(deck.ComponentConfig{
		Kind:     "text",
		Position: pos(),
		Options:  map[string]string{"text": "{report_name} | {row_count} rows | {nope}"},
	}, Env{Vars: map[string]string{"report_name": "Q1 Sales"}})
	require.NoError(t, err)

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, slice()))

	ops := rec.Log()
	require.Len(t, ops, 1)
	require.Equal(t, "Q1 Sales | 3 rows |", ops[0].Runs[0].Text)
}

func TestImage_LogoPlaceholder(t *testing.T) {
	c, err := NewImage(deck.ComponentConfig{
		Kind:     "image",
		Position: pos(),
		Options:  map[string]string{"path": "{logo}"},
	}, Env{Branding: deck.Branding{Logo: "assets/logo.png"}})
	require.NoError(t, err)
	require.Empty(t, c.Validate(bounds))

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, nil))
	require.Equal(t, "assets/logo.png", rec.Log()[0].Image.Path)
}

func TestSummary_TopN(t *testing.T) {
	c, err := NewSummary(deck.ComponentConfig{
		Kind:     "summary",
		Position: pos(),
		Options:  map[string]string{"mode": "top", "count": "2"},
	}, Env{})
	require.NoError(t, err)
	require.Empty(t, c.Validate(bounds))

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, slice()))

	runs := rec.Log()[0].Runs
	require.Len(t, runs, 2)
	require.Equal(t, "• 1. B: $400.00", runs[0].Text)
	require.Equal(t, "• 2. C: $250.00", runs[1].Text)
}

func TestSummary_Trend(t *testing.T) {
	c, err := NewSummary(deck.ComponentConfig{
		Kind:     "summary",
		Position: pos(),
		Options:  map[string]string{"mode": "trend"},
	}, Env{})
	require.NoError(t, err)

	rec := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(rec, slice()))

	runs := rec.Log()[0].Runs
	require.Len(t, runs, 3)
	require.Contains(t, runs[0].Text, "Started at $100.00")
	require.Contains(t, runs[1].Text, "rose to $250.00")
	require.Contains(t, runs[2].Text, "+150.0%")
}

func TestSummary_ValidateRequiresBinding(t *testing.T) {
	c, err := NewSummary(deck.ComponentConfig{Kind: "summary", Position: pos()}, Env{})
	require.NoError(t, err)
	defects := c.Validate(bounds)
	require.Len(t, defects, 1)
	require.Contains(t, defects[0], "data_binding")
}

func TestSummary_RenderWithoutDataErrors(t *testing.T) {
	c, err := NewSummary(deck.ComponentConfig{Kind: "summary", Position: pos(),
		Binding: deck.Binding{Sheet: "sales"}}, Env{})
	require.NoError(t, err)

	rec := surface.NewRecorder(bounds)
	require.Error(t, c.Render(rec, nil))
	require.Empty(t, rec.Log())
}

func TestTable_ValidateAcceptsSheetOnlyBinding(t *testing.T) {
	c, err := NewTable(deck.ComponentConfig{Kind: "table", Position: pos(),
		Binding: deck.Binding{Sheet: "sales"}}, Env{})
	require.NoError(t, err)
	require.Empty(t, c.Validate(bounds))
}

func TestRender_Idempotent(t *testing.T) {
	c, err := NewChart(deck.ComponentConfig{
		Kind:     "chart",
		Position: pos(),
		Binding:  deck.Binding{XAxis: "company", YAxis: []string{"revenue"}},
	}, Env{})
	require.NoError(t, err)

	first := surface.NewRecorder(bounds)
	second := surface.NewRecorder(bounds)
	require.NoError(t, c.Render(first, slice()))
	require.NoError(t, c.Render(second, slice()))
	require.Equal(t, first.Log(), second.Log())
}

func TestRender_SurfaceErrorPropagates(t *testing.T) {
	c, err := NewTable(deck.ComponentConfig{
		Kind:     "table",
		Position: pos(),
		Binding:  deck.Binding{Columns: []string{"company"}},
	}, Env{})
	require.NoError(t, err)

	rec := surface.NewRecorder(bounds)
	rec.FailOp = "table"
	rec.FailErr = errors.New("backend rejected draw")
	require.Error(t, c.Render(rec, slice()))
}
