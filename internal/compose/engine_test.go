package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TurtleWithGlasses/deckgen/internal/component"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

var bounds = surface.Bounds{Width: 720, Height: 540}

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("sales", []table.Column{
		{Name: "company", Type: table.Categorical},
		{Name: "revenue", Type: table.Currency},
	}, [][]table.Value{
		{table.String("Acme"), table.Number(1200)},
		{table.String("Bolt"), table.Number(800)},
	})
	require.NoError(t, err)
	return tbl
}

func twoSlideTemplate() *deck.Template {
	return &deck.Template{
		ID:   "quarterly",
		Name: "Quarterly Review",
		Branding: deck.Branding{
			Colors: []string{"#112233", "#445566"},
			Fonts:  deck.Fonts{Heading: "Inter", Body: "Inter"},
		},
		Slides: []deck.Slide{
			{
				Index: 0,
				Title: "Overview",
				Components: []deck.ComponentConfig{
					{
						Kind:     "text",
						Position: deck.Position{Left: 40, Top: 20, Width: 640, Height: 60},
						Options:  map[string]string{"text": "{report_name} | {row_count} rows"},
						Binding:  deck.Binding{Sheet: "sales", Columns: []string{"company"}},
					},
					{
						Kind:     "table",
						Position: deck.Position{Left: 40, Top: 100, Width: 640, Height: 300},
						Binding:  deck.Binding{Sheet: "sales", Columns: []string{"company", "revenue"}},
					},
				},
			},
			{
				Index: 1,
				Title: "By Company",
				Components: []deck.ComponentConfig{
					{
						Kind:     "chart",
						Position: deck.Position{Left: 40, Top: 40, Width: 600, Height: 400},
						Options:  map[string]string{"chart_type": "bar"},
						Binding:  deck.Binding{Sheet: "sales", XAxis: "company", YAxis: []string{"revenue"}},
					},
				},
			},
		},
	}
}

func TestEngine_RenderHappyPath(t *testing.T) {
	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)

	res, err := eng.Render(twoSlideTemplate(), map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)
	require.Equal(t, 2, res.Slides)
	require.NotEmpty(t, res.PassID)
	require.Empty(t, res.Diagnostics)

	// Slide 0 drew the text and the table; slide 1 drew the chart.
	require.Len(t, rec.OpsFor(0), 2)
	ops := rec.OpsFor(1)
	require.Len(t, ops, 1)
	require.Equal(t, "chart", ops[0].Op)
	require.Equal(t, []string{"Acme", "Bolt"}, ops[0].Chart.Categories)
}

func TestEngine_MissingColumnIsolatedToComponent(t *testing.T) {
	// The table carries "rev", not "revenue": the table and chart
	// components fail to bind while the text component still draws.
	tbl, err := table.New("sales", []table.Column{
		{Name: "company", Type: table.Categorical},
		{Name: "rev", Type: table.Currency},
	}, [][]table.Value{
		{table.String("Acme"), table.Number(1200)},
	})
	require.NoError(t, err)

	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)

	res, rerr := eng.Render(twoSlideTemplate(), map[string]*table.Table{"sales": tbl}, rec)
	require.NoError(t, rerr)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		require.Equal(t, deckerr.UnsatisfiedBinding, d.Code)
		require.Equal(t, SeverityWarning, d.Severity)
		require.Contains(t, d.Message, "revenue")
	}
	require.Equal(t, 0, res.Diagnostics[0].SlideIndex)
	require.Equal(t, 1, res.Diagnostics[0].ComponentIndex)
	require.Equal(t, 1, res.Diagnostics[1].SlideIndex)

	// Slide 0's text component drew; slide 1 is empty but present.
	require.Len(t, rec.OpsFor(0), 1)
	require.Empty(t, rec.OpsFor(1))
}

func TestEngine_StructuralFailureDrawsNothing(t *testing.T) {
	tpl := twoSlideTemplate()
	tpl.Slides[0].Components[1].Position = deck.Position{Left: 700, Top: 0, Width: 100, Height: 50}

	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)

	res, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.Nil(t, res)
	require.Equal(t, deckerr.Structural, deckerr.CodeOf(err))

	var derr *deckerr.Error
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Defects, 1)
	require.Contains(t, derr.Defects[0], "slide 0 component 1")
	require.Empty(t, rec.Log())
}

func TestEngine_ValidateCollectsAllDefects(t *testing.T) {
	tpl := twoSlideTemplate()
	tpl.Slides[1].Index = 0
	tpl.Slides[1].Components[0].Kind = "waterfall"
	tpl.Slides[0].Components[0].Position.Width = 0

	eng := New(component.Builtin())
	defects := eng.Validate(tpl, bounds)
	require.GreaterOrEqual(t, len(defects), 3)
}

func TestEngine_UnknownSheetDiagnostic(t *testing.T) {
	tpl := twoSlideTemplate()
	tpl.Slides[1].Components[0].Binding.Sheet = "margins"

	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)
	res, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, deckerr.UnsatisfiedBinding, res.Diagnostics[0].Code)
	require.Contains(t, res.Diagnostics[0].Message, "margins")
}

func TestEngine_SurfaceFaultIsolated(t *testing.T) {
	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)
	rec.FailOp = "chart"
	rec.FailErr = errOverflow

	res, err := eng.Render(twoSlideTemplate(), map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, deckerr.RenderSurface, res.Diagnostics[0].Code)
	require.Equal(t, 1, res.Diagnostics[0].SlideIndex)
	require.Len(t, rec.OpsFor(0), 2)
}

var errOverflow = deckerr.E(deckerr.RenderSurface, "shape overflows drawable area")

func TestEngine_SlidesRenderInIndexOrder(t *testing.T) {
	tpl := twoSlideTemplate()
	tpl.Slides[0], tpl.Slides[1] = tpl.Slides[1], tpl.Slides[0]

	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)
	_, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)

	log := rec.Log()
	require.Equal(t, "begin_slide", log[0].Op)
	require.Equal(t, 0, log[0].Slide)
	require.Equal(t, "Overview", log[0].Title)
}

func TestEngine_IdempotentRenders(t *testing.T) {
	fixed := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	eng := New(component.Builtin(), WithClock(fixed))

	tables := map[string]*table.Table{"sales": salesTable(t)}
	first := surface.NewRecorder(bounds)
	second := surface.NewRecorder(bounds)

	r1, err := eng.Render(twoSlideTemplate(), tables, first)
	require.NoError(t, err)
	r2, err := eng.Render(twoSlideTemplate(), tables, second)
	require.NoError(t, err)

	require.Equal(t, first.Log(), second.Log())
	require.Equal(t, r1.Diagnostics, r2.Diagnostics)
	require.NotEqual(t, r1.PassID, r2.PassID)
}

func TestEngine_CallerVarsReachTextComponents(t *testing.T) {
	tpl := &deck.Template{
		ID:   "p",
		Name: "Periods",
		Slides: []deck.Slide{{
			Index: 0,
			Title: "Trend",
			Components: []deck.ComponentConfig{{
				Kind:     "text",
				Position: deck.Position{Left: 40, Top: 20, Width: 600, Height: 60},
				Options:  map[string]string{"text": "{report_name}: {period_label}"},
			}},
		}},
	}

	eng := New(component.Builtin(), WithVars(map[string]string{"period_label": "Q1 vs Q2"}))
	rec := surface.NewRecorder(bounds)
	_, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)

	ops := rec.OpsFor(0)
	require.Len(t, ops, 1)
	require.Equal(t, "Periods: Q1 vs Q2", ops[0].Runs[0].Text)
}

func TestEngine_BindinglessSummaryRejectedAtValidation(t *testing.T) {
	tpl := &deck.Template{
		ID:   "s",
		Name: "Summary Only",
		Slides: []deck.Slide{{
			Index: 0,
			Title: "Highlights",
			Components: []deck.ComponentConfig{{
				Kind:     "summary",
				Position: deck.Position{Left: 40, Top: 40, Width: 600, Height: 400},
			}},
		}},
	}

	eng := New(component.Builtin())
	defects := eng.Validate(tpl, bounds)
	require.Len(t, defects, 1)
	require.Contains(t, defects[0], "data_binding")

	rec := surface.NewRecorder(bounds)
	_, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.Error(t, err)
	require.Equal(t, deckerr.Structural, deckerr.CodeOf(err))
	require.Empty(t, rec.Log())
}

func TestEngine_SheetOnlyBindingResolvesWholeTable(t *testing.T) {
	tpl := &deck.Template{
		ID:   "w",
		Name: "Whole Table",
		Slides: []deck.Slide{{
			Index: 0,
			Title: "All Rows",
			Components: []deck.ComponentConfig{
				{
					Kind:     "text",
					Position: deck.Position{Left: 40, Top: 20, Width: 600, Height: 60},
					Options:  map[string]string{"text": "{row_count} rows"},
					Binding:  deck.Binding{Sheet: "sales"},
				},
				{
					Kind:     "summary",
					Position: deck.Position{Left: 40, Top: 100, Width: 600, Height: 300},
					Binding:  deck.Binding{Sheet: "sales"},
				},
			},
		}},
	}

	eng := New(component.Builtin())
	rec := surface.NewRecorder(bounds)
	res, err := eng.Render(tpl, map[string]*table.Table{"sales": salesTable(t)}, rec)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)

	ops := rec.OpsFor(0)
	require.Len(t, ops, 2)
	require.Equal(t, "2 rows", ops[0].Runs[0].Text)
	require.Contains(t, ops[1].Runs[0].Text, "Acme")
}
