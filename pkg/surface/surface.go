// Package surface defines the abstract output target that components
// render against: a bounded 2D surface with draw primitives for
// rectangles, tables, charts, text, and images. Concrete document-writer
// backends implement Surface; the composition core never opens or writes
// files itself.
package surface

// Bounds is the drawable extent of a surface in surface units.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a placed rectangle in surface units.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FitsIn reports whether the rectangle lies entirely inside the bounds.
func (r Rect) FitsIn(b Bounds) bool {
	return r.Left >= 0 && r.Top >= 0 && r.Width > 0 && r.Height > 0 &&
		r.Left+r.Width <= b.Width && r.Top+r.Height <= b.Height
}

// ChartType selects the chart sub-variant by tag.
type ChartType string

const (
	Bar    ChartType = "bar"
	Column ChartType = "column"
	Line   ChartType = "line"
	Pie    ChartType = "pie"
)

// Series is one named value series of a chart.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// ChartSpec describes a chart draw instruction.
type ChartSpec struct {
	Type       ChartType `json:"type"`
	Title      string    `json:"title,omitempty"`
	Categories []string  `json:"categories"`
	Series     []Series  `json:"series"`
	Colors     []string  `json:"colors,omitempty"`
	ShowLegend bool      `json:"show_legend"`
}

// TableSpec describes a table draw instruction. Rows hold formatted,
// presentation-ready strings.
type TableSpec struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	HeaderFill string     `json:"header_fill,omitempty"`
	FontFamily string     `json:"font_family,omitempty"`
}

// TextRun is a fragment of styled text.
type TextRun struct {
	Text string  `json:"text"`
	Bold bool    `json:"bold,omitempty"`
	Size float64 `json:"size,omitempty"`
}

// TextStyle applies to a whole text block.
type TextStyle struct {
	FontFamily string `json:"font_family,omitempty"`
	Color      string `json:"color,omitempty"`
	Align      string `json:"align,omitempty"`
}

// ImageSpec describes an image draw instruction.
type ImageSpec struct {
	Path    string `json:"path"`
	AltText string `json:"alt_text,omitempty"`
}

// ShapeStyle styles a placed rectangle.
type ShapeStyle struct {
	FillColor string `json:"fill_color,omitempty"`
	LineColor string `json:"line_color,omitempty"`
}

// Surface is the capability contract a document-writer backend must
// provide. Implementations return errors instead of panicking so the
// engine can isolate surface faults per component.
type Surface interface {
	Bounds() Bounds
	BeginSlide(index int, title, layout string) error
	PlaceRect(r Rect, style ShapeStyle) error
	DrawTable(r Rect, spec TableSpec) error
	DrawChart(r Rect, spec ChartSpec) error
	DrawText(r Rect, runs []TextRun, style TextStyle) error
	DrawImage(r Rect, spec ImageSpec) error
}
