package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/TurtleWithGlasses/deckgen/internal/infer"
	"github.com/TurtleWithGlasses/deckgen/internal/period"
	"github.com/TurtleWithGlasses/deckgen/internal/runtime"
	"github.com/TurtleWithGlasses/deckgen/internal/security"
	"github.com/TurtleWithGlasses/deckgen/internal/xlsxio"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
)

func writeSalesWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", "sales"))
	rows := [][]any{
		{"company", "revenue"},
		{"Acme", "$1,200.00"},
		{"Bolt", "$800.00"},
		{"Core", "$950.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("sales", cell, &row))
	}
	path := filepath.Join(dir, "sales.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func newServiceForTest(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)

	loader := xlsxio.NewLoader(infer.New(infer.Options{}, zerolog.Nop()), zerolog.Nop())
	mgr := xlsxio.NewManager(loader, time.Minute, time.Minute, nil, sec, time.Now)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	limits := runtime.NewLimits(2, 2)
	return NewService(mgr, limits, sec, zerolog.Nop()), dir
}

func openSales(t *testing.T, svc *Service, dir string) string {
	t.Helper()
	out, err := svc.OpenDataset(context.Background(), OpenDatasetInput{Path: writeSalesWorkbook(t, dir)})
	require.NoError(t, err)
	return out.DatasetID
}

func TestOpenListClose(t *testing.T) {
	svc, dir := newServiceForTest(t)

	out, err := svc.OpenDataset(context.Background(), OpenDatasetInput{Path: writeSalesWorkbook(t, dir)})
	require.NoError(t, err)
	require.Equal(t, []string{"sales"}, out.Sheets)

	structure, err := svc.ListStructure(context.Background(), ListStructureInput{DatasetID: out.DatasetID})
	require.NoError(t, err)
	require.Len(t, structure.Sheets, 1)
	require.Equal(t, 3, structure.Sheets[0].RowCount)
	require.Equal(t, "currency", structure.Sheets[0].Columns[1].Type)

	closed, err := svc.CloseDataset(context.Background(), CloseDatasetInput{DatasetID: out.DatasetID})
	require.NoError(t, err)
	require.True(t, closed.Success)

	_, err = svc.ListStructure(context.Background(), ListStructureInput{DatasetID: out.DatasetID})
	require.Equal(t, deckerr.InvalidHandle, deckerr.CodeOf(err))
}

func TestPreviewTable_CursorPagination(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	first, err := svc.PreviewTable(context.Background(), PreviewTableInput{DatasetID: id, Sheet: "sales", Rows: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"company", "revenue"}, first.Headers)
	require.Len(t, first.Rows, 2)
	require.Equal(t, "$1,200.00", first.Rows[0][1])
	require.True(t, first.Meta.Truncated)
	require.NotEmpty(t, first.Meta.NextCursor)

	second, err := svc.PreviewTable(context.Background(), PreviewTableInput{Cursor: first.Meta.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	require.Equal(t, "Core", second.Rows[0][0])
	require.False(t, second.Meta.Truncated)
	require.Empty(t, second.Meta.NextCursor)
}

func TestPreviewTable_BadSheetAndCursor(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	_, err := svc.PreviewTable(context.Background(), PreviewTableInput{DatasetID: id, Sheet: "margins"})
	require.Equal(t, deckerr.InvalidSheet, deckerr.CodeOf(err))

	_, err = svc.PreviewTable(context.Background(), PreviewTableInput{Cursor: "!!!"})
	require.Equal(t, deckerr.CursorInvalid, deckerr.CodeOf(err))
}

func TestProfileColumns(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	out, err := svc.ProfileColumns(context.Background(), ProfileColumnsInput{DatasetID: id, Sheet: "sales"})
	require.NoError(t, err)
	require.Len(t, out.Columns, 2)

	rev := out.Columns[1]
	require.Equal(t, "currency", rev.Type)
	require.Equal(t, 3, rev.NonNull)
	require.NotNil(t, rev.Min)
	require.Equal(t, 800.0, *rev.Min)
	require.Equal(t, 1200.0, *rev.Max)
}

func renderTemplate() deck.Template {
	return deck.Template{
		ID:   "qr",
		Name: "Quarterly",
		Slides: []deck.Slide{{
			Index: 0,
			Title: "Revenue",
			Components: []deck.ComponentConfig{{
				Kind:     "table",
				Position: deck.Position{Left: 0, Top: 36, Width: 400, Height: 200},
				Binding:  deck.Binding{Sheet: "sales", Columns: []string{"company", "revenue"}},
			}},
		}},
	}
}

func TestValidateTemplate(t *testing.T) {
	svc, _ := newServiceForTest(t)

	ok, err := svc.ValidateTemplate(context.Background(), ValidateTemplateInput{Template: renderTemplate()})
	require.NoError(t, err)
	require.True(t, ok.Valid)

	bad := renderTemplate()
	bad.Slides[0].Components[0].Kind = "gauge"
	res, err := svc.ValidateTemplate(context.Background(), ValidateTemplateInput{Template: bad})
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Contains(t, res.Defects[0], "unknown kind")
}

func TestRenderDeck_WritesWorkbook(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	outPath := filepath.Join(dir, "deck.xlsx")
	out, err := svc.RenderDeck(context.Background(), RenderDeckInput{
		DatasetID:  id,
		Template:   renderTemplate(),
		OutputPath: outPath,
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Slides)
	require.Empty(t, out.Diagnostics)

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	got, err := f.GetCellValue("Slide 1", "A1")
	require.NoError(t, err)
	require.Equal(t, "Revenue", got)
}

func TestRenderDeck_OutputOutsideAllowList(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	_, err := svc.RenderDeck(context.Background(), RenderDeckInput{
		DatasetID:  id,
		Template:   renderTemplate(),
		OutputPath: filepath.Join(t.TempDir(), "deck.xlsx"),
	})
	require.Equal(t, deckerr.PermissionDenied, deckerr.CodeOf(err))
}

func TestAggregatePeriods_AdoptsSyntheticDataset(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	out, err := svc.AggregatePeriods(context.Background(), AggregatePeriodsInput{
		Periods: []PeriodInput{
			{Label: "Q1", DatasetID: id, Sheet: "sales", Start: "2026-01-01", End: "2026-03-31"},
			{Label: "Q2", DatasetID: id, Sheet: "sales"},
		},
		Metrics: []period.Metric{{Name: "total", Column: "revenue", Op: "sum"}},
	})
	require.NoError(t, err)
	require.Equal(t, "periods", out.Sheet)
	require.Len(t, out.Sets, 2)
	require.Equal(t, 2950.0, out.Sets[0].Values["total"])
	require.Equal(t, period.TrendFlat, out.Trends["total"].Direction)

	// The synthetic dataset previews like any other table.
	preview, err := svc.PreviewTable(context.Background(), PreviewTableInput{DatasetID: out.DatasetID, Sheet: "periods"})
	require.NoError(t, err)
	require.Equal(t, []string{"period_label", "total"}, preview.Headers)
	require.Equal(t, "Q1", preview.Rows[0][0])
}

func TestAggregatePeriods_BadDate(t *testing.T) {
	svc, dir := newServiceForTest(t)
	id := openSales(t, svc, dir)

	_, err := svc.AggregatePeriods(context.Background(), AggregatePeriodsInput{
		Periods: []PeriodInput{{Label: "Q1", DatasetID: id, Sheet: "sales", Start: "yesterday"}},
		Metrics: []period.Metric{{Name: "total", Column: "revenue", Op: "sum"}},
	})
	require.Equal(t, deckerr.Validation, deckerr.CodeOf(err))
}
