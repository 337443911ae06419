package component

import (
	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
)

// Table renders a resolved slice as a grid with a header row. With an
// empty slice it still draws the headers, so a filtered-out dataset
// leaves a visibly empty table rather than a missing one.
type Table struct {
	cfg deck.ComponentConfig
	env Env
}

// NewTable is the factory for the "table" kind.
func NewTable(cfg deck.ComponentConfig, env Env) (Component, error) {
	return &Table{cfg: cfg, env: env}, nil
}

func (c *Table) Validate(bounds surface.Bounds) []string {
	defects := positionDefects("table", c.cfg.Position, bounds)
	if c.cfg.Binding.IsZero() {
		defects = append(defects, "table: data_binding must name a sheet or at least one column")
	}
	return defects
}

func (c *Table) Render(s surface.Surface, data *mapper.Slice) error {
	headers := make([]string, data.NumCols())
	for i, col := range data.Columns {
		headers[i] = col.Name
	}
	fill := c.cfg.Style["header_fill"]
	if fill == "" {
		fill = brandColor(c.env.Branding, 0)
	}
	return s.DrawTable(rect(c.cfg.Position), surface.TableSpec{
		Headers:    headers,
		Rows:       data.Formatted,
		HeaderFill: fill,
		FontFamily: c.env.Branding.Fonts.Body,
	})
}
