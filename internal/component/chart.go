package component

import (
	"fmt"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// chartTypes are the supported sub-variants, selected by the chart_type
// option tag rather than by distinct component kinds.
var chartTypes = map[string]surface.ChartType{
	"bar":    surface.Bar,
	"column": surface.Column,
	"line":   surface.Line,
	"pie":    surface.Pie,
}

// defaultPalette colors series when branding supplies none.
var defaultPalette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Chart renders the x_axis column as categories and each y_axis column
// as one series. Pie charts use only the first series.
type Chart struct {
	cfg deck.ComponentConfig
	env Env
}

// NewChart is the factory for the "chart" kind.
func NewChart(cfg deck.ComponentConfig, env Env) (Component, error) {
	return &Chart{cfg: cfg, env: env}, nil
}

func (c *Chart) chartType() string {
	t := c.cfg.Options["chart_type"]
	if t == "" {
		t = "column"
	}
	return t
}

func (c *Chart) Validate(bounds surface.Bounds) []string {
	defects := positionDefects("chart", c.cfg.Position, bounds)
	if _, ok := chartTypes[c.chartType()]; !ok {
		defects = append(defects, fmt.Sprintf("chart: unknown chart_type %q (want bar, column, line, or pie)", c.chartType()))
	}
	if c.cfg.Binding.XAxis == "" {
		defects = append(defects, "chart: data_binding.x_axis must name the category column")
	}
	if len(c.cfg.Binding.YAxis) == 0 {
		defects = append(defects, "chart: data_binding.y_axis must name at least one series column")
	}
	return defects
}

func (c *Chart) Render(s surface.Surface, data *mapper.Slice) error {
	xi, ok := data.ColumnIndex(c.cfg.Binding.XAxis)
	if !ok {
		return fmt.Errorf("chart: category column %q missing from resolved slice", c.cfg.Binding.XAxis)
	}

	categories := make([]string, data.NumRows())
	for r := range data.Rows {
		categories[r] = data.Formatted[r][xi]
	}

	var series []surface.Series
	for _, name := range c.cfg.Binding.YAxis {
		yi, ok := data.ColumnIndex(name)
		if !ok {
			return fmt.Errorf("chart: series column %q missing from resolved slice", name)
		}
		if t := data.Columns[yi].Type; t != table.Numeric && t != table.Currency && t != table.Percentage {
			return fmt.Errorf("chart: series column %q is %s, not numeric", name, t)
		}
		values := make([]float64, data.NumRows())
		for r := range data.Rows {
			values[r] = data.Rows[r][yi].Num
		}
		series = append(series, surface.Series{Name: name, Values: values})
	}

	kind := chartTypes[c.chartType()]
	if kind == surface.Pie && len(series) > 1 {
		series = series[:1]
	}

	palette := c.env.Branding.Colors
	if len(palette) == 0 {
		palette = defaultPalette
	}
	colors := make([]string, len(series))
	for i := range series {
		colors[i] = palette[i%len(palette)]
	}

	return s.DrawChart(rect(c.cfg.Position), surface.ChartSpec{
		Type:       kind,
		Title:      c.cfg.Options["title"],
		Categories: categories,
		Series:     series,
		Colors:     colors,
		ShowLegend: kind != surface.Pie || len(categories) <= 8,
	})
}
