package component

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Summary derives top-N, bottom-N, or trend bullet lines from the
// resolved slice. Every bullet is computed from the data; no free-form
// text is generated.
type Summary struct {
	cfg deck.ComponentConfig
	env Env
}

// NewSummary is the factory for the "summary" kind.
func NewSummary(cfg deck.ComponentConfig, env Env) (Component, error) {
	return &Summary{cfg: cfg, env: env}, nil
}

func (c *Summary) mode() string {
	m := c.cfg.Options["mode"]
	if m == "" {
		m = "top"
	}
	return m
}

func (c *Summary) count() int {
	if n, err := strconv.Atoi(c.cfg.Options["count"]); err == nil && n > 0 {
		return n
	}
	return 3
}

func (c *Summary) Validate(bounds surface.Bounds) []string {
	defects := positionDefects("summary", c.cfg.Position, bounds)
	if c.cfg.Binding.IsZero() {
		defects = append(defects, "summary: data_binding must name a sheet or at least one column")
	}
	switch c.mode() {
	case "top", "bottom", "trend":
	default:
		defects = append(defects, fmt.Sprintf("summary: unknown mode %q (want top, bottom, or trend)", c.mode()))
	}
	return defects
}

// pickColumns finds the label and value columns: explicit options first,
// then the first categorical/text and first numeric column of the slice.
func (c *Summary) pickColumns(data *mapper.Slice) (label, value int, err error) {
	label, value = -1, -1
	if name := c.cfg.Options["label_column"]; name != "" {
		if i, ok := data.ColumnIndex(name); ok {
			label = i
		}
	}
	if name := c.cfg.Options["value_column"]; name != "" {
		if i, ok := data.ColumnIndex(name); ok {
			value = i
		}
	}
	for i, col := range data.Columns {
		switch col.Type {
		case table.Numeric, table.Currency, table.Percentage:
			if value < 0 {
				value = i
			}
		default:
			if label < 0 {
				label = i
			}
		}
	}
	if value < 0 {
		return 0, 0, fmt.Errorf("summary: resolved slice has no numeric column")
	}
	if label < 0 {
		label = value
	}
	return label, value, nil
}

func (c *Summary) bullets(data *mapper.Slice) ([]string, error) {
	label, value, err := c.pickColumns(data)
	if err != nil {
		return nil, err
	}

	type entry struct {
		label string
		text  string
		num   float64
	}
	entries := make([]entry, 0, data.NumRows())
	for r := range data.Rows {
		if data.Rows[r][value].Null {
			continue
		}
		entries = append(entries, entry{
			label: data.Formatted[r][label],
			text:  data.Formatted[r][value],
			num:   data.Rows[r][value].Num,
		})
	}
	if len(entries) == 0 {
		return []string{"No data"}, nil
	}

	switch c.mode() {
	case "trend":
		first, last := entries[0], entries[len(entries)-1]
		if len(entries) < 2 {
			return []string{fmt.Sprintf("%s: %s", first.label, first.text)}, nil
		}
		direction := "held flat at"
		switch {
		case last.num > first.num:
			direction = "rose to"
		case last.num < first.num:
			direction = "fell to"
		}
		lines := []string{
			fmt.Sprintf("Started at %s (%s)", first.text, first.label),
			fmt.Sprintf("%s %s %s (%s)", valueName(data, value), direction, last.text, last.label),
		}
		if first.num != 0 {
			pct := (last.num - first.num) / first.num * 100
			lines = append(lines, fmt.Sprintf("Net change %+.1f%% over %d points", pct, len(entries)))
		}
		return lines, nil
	case "bottom":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	default: // top
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].num > entries[j].num })
	}

	n := c.count()
	if n > len(entries) {
		n = len(entries)
	}
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, entries[i].label, entries[i].text)
	}
	return lines, nil
}

func valueName(data *mapper.Slice, value int) string {
	return data.Columns[value].Name
}

func (c *Summary) Render(s surface.Surface, data *mapper.Slice) error {
	if data == nil {
		return fmt.Errorf("summary: no resolved data, data_binding must name a sheet or columns")
	}
	lines, err := c.bullets(data)
	if err != nil {
		return err
	}
	runs := make([]surface.TextRun, 0, len(lines)+1)
	if title := c.cfg.Options["title"]; title != "" {
		runs = append(runs, surface.TextRun{Text: title, Bold: true, Size: 20})
	}
	for _, line := range lines {
		runs = append(runs, surface.TextRun{Text: "• " + line, Size: 16})
	}
	return s.DrawText(rect(c.cfg.Position), runs, surface.TextStyle{
		FontFamily: c.env.Branding.Fonts.Body,
		Color:      c.cfg.Style["color"],
	})
}
