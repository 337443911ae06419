// Package xlsxdeck renders a composed deck into an xlsx workbook, one
// sheet per slide. Surface coordinates are mapped onto a fixed cell
// grid; charts are backed by a hidden data sheet so excelize can
// reference their series by range.
package xlsxdeck

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
)

// Cell grid scale: one column per 48 surface units, one row per 18.
const (
	colUnit = 48.0
	rowUnit = 18.0
)

const dataSheet = "_chartdata"

// Writer implements surface.Surface on an excelize workbook.
type Writer struct {
	f       *excelize.File
	bounds  surface.Bounds
	sheet   string
	dataRow int
	charts  int
}

// NewWriter constructs a Writer with the given drawable bounds.
func NewWriter(bounds surface.Bounds) (*Writer, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(dataSheet); err != nil {
		_ = f.Close()
		return nil, deckerr.Wrap(deckerr.WriteFailed, err, "create data sheet")
	}
	if err := f.SetSheetVisible(dataSheet, false); err != nil {
		_ = f.Close()
		return nil, deckerr.Wrap(deckerr.WriteFailed, err, "hide data sheet")
	}
	return &Writer{f: f, bounds: bounds, dataRow: 1}, nil
}

func (w *Writer) Bounds() surface.Bounds { return w.bounds }

// BeginSlide opens a new sheet for the slide. The first slide replaces
// the workbook's default sheet.
func (w *Writer) BeginSlide(index int, title, layout string) error {
	name := fmt.Sprintf("Slide %d", index+1)
	if w.sheet == "" {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "rename sheet")
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "create sheet")
	}
	w.sheet = name
	if title != "" {
		if err := w.f.SetCellStr(name, "A1", title); err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "set slide title")
		}
		style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
		if err == nil {
			_ = w.f.SetCellStyle(name, "A1", "A1", style)
		}
	}
	return nil
}

// anchor maps a surface rect to its top-left cell name.
func (w *Writer) anchor(r surface.Rect) (string, error) {
	col := int(r.Left/colUnit) + 1
	row := int(r.Top/rowUnit) + 1
	return excelize.CoordinatesToCellName(col, row)
}

func (w *Writer) checkRect(r surface.Rect) error {
	if !r.FitsIn(w.bounds) {
		return deckerr.Errorf(deckerr.RenderSurface, "rect %+v exceeds surface bounds", r)
	}
	return nil
}

// PlaceRect fills the covered cell range with the shape's fill color.
func (w *Writer) PlaceRect(r surface.Rect, style surface.ShapeStyle) error {
	if err := w.checkRect(r); err != nil {
		return err
	}
	if style.FillColor == "" {
		return nil
	}
	topLeft, err := w.anchor(r)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	bottomRight, err := excelize.CoordinatesToCellName(
		int((r.Left+r.Width)/colUnit)+1, int((r.Top+r.Height)/rowUnit)+1)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	styleID, err := w.f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{strings.TrimPrefix(style.FillColor, "#")}},
	})
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "fill style")
	}
	return w.f.SetCellStyle(w.sheet, topLeft, bottomRight, styleID)
}

// DrawTable writes the header and body rows starting at the rect anchor,
// with a styled header row.
func (w *Writer) DrawTable(r surface.Rect, spec surface.TableSpec) error {
	if err := w.checkRect(r); err != nil {
		return err
	}
	startCol := int(r.Left/colUnit) + 1
	startRow := int(r.Top/rowUnit) + 1

	header := make([]any, len(spec.Headers))
	for i, h := range spec.Headers {
		header[i] = h
	}
	cell, err := excelize.CoordinatesToCellName(startCol, startRow)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	if err := w.f.SetSheetRow(w.sheet, cell, &header); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "write header")
	}
	if spec.HeaderFill != "" {
		last, cerr := excelize.CoordinatesToCellName(startCol+len(spec.Headers)-1, startRow)
		styleID, serr := w.f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "FFFFFF", Family: spec.FontFamily},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{strings.TrimPrefix(spec.HeaderFill, "#")}},
		})
		if cerr == nil && serr == nil {
			_ = w.f.SetCellStyle(w.sheet, cell, last, styleID)
		}
	}

	for i, row := range spec.Rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(startCol, startRow+1+i)
		if err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
		}
		if err := w.f.SetSheetRow(w.sheet, cell, &vals); err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "write row")
		}
	}
	return nil
}

var chartTypes = map[surface.ChartType]excelize.ChartType{
	surface.Bar:    excelize.Bar,
	surface.Column: excelize.Col,
	surface.Line:   excelize.Line,
	surface.Pie:    excelize.Pie,
}

// DrawChart stages categories and series on the hidden data sheet, then
// anchors an excelize chart referencing those ranges.
func (w *Writer) DrawChart(r surface.Rect, spec surface.ChartSpec) error {
	if err := w.checkRect(r); err != nil {
		return err
	}
	xlType, ok := chartTypes[spec.Type]
	if !ok {
		return deckerr.Errorf(deckerr.RenderSurface, "unsupported chart type %q", spec.Type)
	}
	if len(spec.Series) == 0 {
		return deckerr.E(deckerr.RenderSurface, "chart has no series")
	}

	catRow := w.dataRow
	cats := make([]any, 0, len(spec.Categories)+1)
	cats = append(cats, "categories")
	for _, c := range spec.Categories {
		cats = append(cats, c)
	}
	cell, err := excelize.CoordinatesToCellName(1, catRow)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "stage categories")
	}
	if err := w.f.SetSheetRow(dataSheet, cell, &cats); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "stage categories")
	}

	catRange, err := rangeRef(dataSheet, 2, catRow, len(spec.Categories))
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "category range")
	}

	series := make([]excelize.ChartSeries, 0, len(spec.Series))
	for i, s := range spec.Series {
		row := catRow + 1 + i
		vals := make([]any, 0, len(s.Values)+1)
		vals = append(vals, s.Name)
		for _, v := range s.Values {
			vals = append(vals, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "stage series")
		}
		if err := w.f.SetSheetRow(dataSheet, cell, &vals); err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "stage series")
		}
		nameRef, err := cellRef(dataSheet, 1, row)
		if err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "series name ref")
		}
		valRange, err := rangeRef(dataSheet, 2, row, len(s.Values))
		if err != nil {
			return deckerr.Wrap(deckerr.RenderSurface, err, "series range")
		}
		series = append(series, excelize.ChartSeries{
			Name:       nameRef,
			Categories: catRange,
			Values:     valRange,
		})
	}
	w.dataRow += len(spec.Series) + 2
	w.charts++

	anchor, err := w.anchor(r)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	chart := &excelize.Chart{
		Type:   xlType,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: spec.Title}},
		Legend: excelize.ChartLegend{Position: "bottom", ShowLegendKey: spec.ShowLegend},
		Dimension: excelize.ChartDimension{
			Width:  uint(r.Width),
			Height: uint(r.Height),
		},
	}
	if err := w.f.AddChart(w.sheet, anchor, chart); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "add chart")
	}
	return nil
}

// DrawText writes the concatenated runs into the anchor cell as rich text.
func (w *Writer) DrawText(r surface.Rect, runs []surface.TextRun, style surface.TextStyle) error {
	if err := w.checkRect(r); err != nil {
		return err
	}
	anchor, err := w.anchor(r)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	rich := make([]excelize.RichTextRun, 0, len(runs))
	for _, run := range runs {
		font := &excelize.Font{
			Bold:   run.Bold,
			Family: style.FontFamily,
			Color:  strings.TrimPrefix(style.Color, "#"),
		}
		if run.Size > 0 {
			font.Size = run.Size
		}
		rich = append(rich, excelize.RichTextRun{Text: run.Text, Font: font})
	}
	if err := w.f.SetCellRichText(w.sheet, anchor, rich); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "set text")
	}
	if style.Align != "" {
		styleID, err := w.f.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{Horizontal: style.Align},
		})
		if err == nil {
			_ = w.f.SetCellStyle(w.sheet, anchor, anchor, styleID)
		}
	}
	return nil
}

// DrawImage anchors the picture file at the rect position.
func (w *Writer) DrawImage(r surface.Rect, spec surface.ImageSpec) error {
	if err := w.checkRect(r); err != nil {
		return err
	}
	if spec.Path == "" {
		return deckerr.E(deckerr.RenderSurface, "image has no path")
	}
	anchor, err := w.anchor(r)
	if err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "anchor")
	}
	opts := &excelize.GraphicOptions{AltText: spec.AltText}
	if err := w.f.AddPicture(w.sheet, anchor, spec.Path, opts); err != nil {
		return deckerr.Wrap(deckerr.RenderSurface, err, "add picture")
	}
	return nil
}

// SaveAs writes the workbook to disk.
func (w *Writer) SaveAs(path string) error {
	if err := w.f.SaveAs(path); err != nil {
		return deckerr.Wrap(deckerr.WriteFailed, err, "save deck")
	}
	return nil
}

// Close releases the underlying workbook resources.
func (w *Writer) Close() error {
	return w.f.Close()
}

// File exposes the underlying workbook for tests.
func (w *Writer) File() *excelize.File { return w.f }

func cellRef(sheet string, col, row int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row, true)
	if err != nil {
		return "", err
	}
	return sheet + "!" + cell, nil
}

func rangeRef(sheet string, startCol, row, n int) (string, error) {
	if n == 0 {
		n = 1
	}
	first, err := excelize.CoordinatesToCellName(startCol, row, true)
	if err != nil {
		return "", err
	}
	last, err := excelize.CoordinatesToCellName(startCol+n-1, row, true)
	if err != nil {
		return "", err
	}
	return sheet + "!" + first + ":" + last, nil
}
